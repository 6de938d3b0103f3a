// Package config loads run settings from an optional YAML file and the
// environment, on top of built-in defaults.
//
// Precedence, lowest to highest: defaults, YAML file, environment, command
// line flags (applied by the cli package after Load).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dropsync/internal/artifact"
	"github.com/roach88/dropsync/internal/pipeline"
	"github.com/roach88/dropsync/internal/store"
)

// DefaultTable is the destination table when none is configured.
const DefaultTable = "airdrop_recipients"

// Environment variables read by ApplyEnv.
const (
	EnvArtifactsDir = "MERKLE_TREE_PATH"
	EnvDatabaseURL  = "DATABASE_URL"
	EnvPostgresURL  = "POSTGRES_URL"
	EnvTable        = "TABLE_NAME"
	EnvProgram      = "PROGRAM_ID"
	EnvBase         = "BASE"
	EnvMint         = "MINT"
	EnvMetricsFile  = "DROPSYNC_METRICS_FILE"
)

// Config is the complete run configuration.
type Config struct {
	ArtifactsDir string           `yaml:"artifacts_dir"`
	DatabaseURL  string           `yaml:"database_url"`
	Table        string           `yaml:"table"`
	CreateTable  bool             `yaml:"create_table"`
	MetricsFile  string           `yaml:"metrics_file"`
	Identities   IdentitiesConfig `yaml:"identities"`
	Connect      ConnectConfig    `yaml:"connect"`
	Upload       UploadConfig     `yaml:"upload"`
}

// IdentitiesConfig holds the base58 inputs to key derivation.
type IdentitiesConfig struct {
	Program string `yaml:"program"`
	Base    string `yaml:"base"`
	Mint    string `yaml:"mint"`
}

// ConnectConfig bounds connection setup.
type ConnectConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// UploadConfig tunes chunking, retries and pacing.
type UploadConfig struct {
	ChunkSize         int           `yaml:"chunk_size"`
	MaxAttempts       int           `yaml:"max_attempts"`
	ChunkTimeout      time.Duration `yaml:"chunk_timeout"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	TimeoutRetryDelay time.Duration `yaml:"timeout_retry_delay"`
	ChunkPause        time.Duration `yaml:"chunk_pause"`
	ArtifactPause     time.Duration `yaml:"artifact_pause"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Table: DefaultTable,
		Connect: ConnectConfig{
			Timeout:      store.DefaultConnectTimeout,
			ProbeTimeout: store.DefaultProbeTimeout,
		},
		Upload: UploadConfig{
			ChunkSize:         store.DefaultChunkSize,
			MaxAttempts:       store.DefaultMaxAttempts,
			ChunkTimeout:      store.DefaultChunkTimeout,
			RetryDelay:        store.DefaultRetryDelay,
			TimeoutRetryDelay: store.DefaultTimeoutRetryDelay,
			ChunkPause:        store.DefaultChunkPause,
			ArtifactPause:     pipeline.DefaultArtifactPause,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path (if path
// is non-empty) and then the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// Parse decodes YAML onto cfg. Keys absent from data keep their current
// values; unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment variables. DATABASE_URL wins over
// POSTGRES_URL when both are set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.ArtifactsDir, EnvArtifactsDir)
	set(&c.DatabaseURL, EnvPostgresURL)
	set(&c.DatabaseURL, EnvDatabaseURL)
	set(&c.Table, EnvTable)
	set(&c.Identities.Program, EnvProgram)
	set(&c.Identities.Base, EnvBase)
	set(&c.Identities.Mint, EnvMint)
	set(&c.MetricsFile, EnvMetricsFile)
}

// Validate checks everything needed to derive keys. Store settings are
// checked only when needStore is set, so validate and derive can run
// without a database.
func (c *Config) Validate(needStore bool) error {
	var problems []string

	if _, err := c.ParseIdentities(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Upload.ChunkSize < 1 {
		problems = append(problems, "upload.chunk_size must be at least 1")
	} else if c.Upload.ChunkSize > store.MaxChunkSize {
		problems = append(problems, fmt.Sprintf("upload.chunk_size must be at most %d", store.MaxChunkSize))
	}
	if c.Upload.MaxAttempts < 1 {
		problems = append(problems, "upload.max_attempts must be at least 1")
	}
	for name, d := range map[string]time.Duration{
		"connect.timeout":       c.Connect.Timeout,
		"connect.probe_timeout": c.Connect.ProbeTimeout,
		"upload.chunk_timeout":  c.Upload.ChunkTimeout,
	} {
		if d <= 0 {
			problems = append(problems, name+" must be positive")
		}
	}
	for name, d := range map[string]time.Duration{
		"upload.retry_delay":         c.Upload.RetryDelay,
		"upload.timeout_retry_delay": c.Upload.TimeoutRetryDelay,
		"upload.chunk_pause":         c.Upload.ChunkPause,
		"upload.artifact_pause":      c.Upload.ArtifactPause,
	} {
		if d < 0 {
			problems = append(problems, name+" must not be negative")
		}
	}

	if needStore {
		if c.DatabaseURL == "" {
			problems = append(problems, fmt.Sprintf("database_url is required (or set %s)", EnvDatabaseURL))
		} else if d, _, err := store.ParseAddress(c.DatabaseURL); err != nil {
			problems = append(problems, err.Error())
		} else if limit := d.MaxChunkSize(); c.Upload.ChunkSize <= store.MaxChunkSize && c.Upload.ChunkSize > limit {
			problems = append(problems, fmt.Sprintf("upload.chunk_size must be at most %d for %s", limit, d.Name))
		}
		if _, err := store.QuoteTable(c.Table); err != nil {
			problems = append(problems, "table: "+err.Error())
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ParseIdentities decodes the program, base and mint identities.
func (c *Config) ParseIdentities() (artifact.Identities, error) {
	var ids artifact.Identities
	fields := []struct {
		name, value, env string
		dst              *artifact.Pubkey
	}{
		{"program", c.Identities.Program, EnvProgram, &ids.Program},
		{"base", c.Identities.Base, EnvBase, &ids.Base},
		{"mint", c.Identities.Mint, EnvMint, &ids.Mint},
	}
	for _, f := range fields {
		if f.value == "" {
			return ids, fmt.Errorf("identities.%s is required (or set %s)", f.name, f.env)
		}
		pk, err := artifact.ParsePubkey(f.value)
		if err != nil {
			return ids, fmt.Errorf("identities.%s: %w", f.name, err)
		}
		*f.dst = pk
	}
	return ids, nil
}

// PipelineConfig converts the configuration into what pipeline.New takes.
func (c *Config) PipelineConfig() (pipeline.Config, error) {
	ids, err := c.ParseIdentities()
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		Address:     c.DatabaseURL,
		Table:       c.Table,
		Identities:  ids,
		CreateTable: c.CreateTable,
		Connect:     c.ConnectOptions(),
		Upload: store.UploadOptions{
			ChunkSize:         c.Upload.ChunkSize,
			MaxAttempts:       c.Upload.MaxAttempts,
			ChunkTimeout:      c.Upload.ChunkTimeout,
			RetryDelay:        c.Upload.RetryDelay,
			TimeoutRetryDelay: c.Upload.TimeoutRetryDelay,
			ChunkPause:        c.Upload.ChunkPause,
		},
		ArtifactPause: c.Upload.ArtifactPause,
	}, nil
}

// ConnectOptions returns the connector timeouts.
func (c *Config) ConnectOptions() store.ConnectOptions {
	return store.ConnectOptions{
		ConnectTimeout: c.Connect.Timeout,
		ProbeTimeout:   c.Connect.ProbeTimeout,
	}
}
