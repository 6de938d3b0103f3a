package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario describes an end-to-end sync run: the artifact files to place in
// a fresh directory, rows to seed into the destination, and what the run
// must report.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Artifacts are written into the scan directory before the first run.
	Artifacts []ArtifactFixture `yaml:"artifacts"`

	// Seed lists rows inserted before the first run.
	Seed []SeedStep `yaml:"seed,omitempty"`

	// Runs is how many times the pipeline runs over the same directory and
	// destination. Zero means one.
	Runs int `yaml:"runs,omitempty"`

	// ChunkSize overrides the upload chunk size. Zero keeps the default.
	ChunkSize int `yaml:"chunk_size,omitempty"`

	// NoCreateTable leaves the destination table uncreated.
	NoCreateTable bool `yaml:"no_create_table,omitempty"`

	// Expect is checked against the summary of the last run.
	Expect Expectation `yaml:"expect"`

	// Rows are checked against the destination after the last run.
	Rows []RowExpectation `yaml:"rows,omitempty"`
}

// ArtifactFixture is one file in the scan directory. Unless Raw is set, the
// file is a well-formed artifact with Entries entries and the listed
// defects applied.
type ArtifactFixture struct {
	File    string `yaml:"file"`
	Version uint64 `yaml:"version"`
	Entries int    `yaml:"entries"`

	// Raw, when set, is written verbatim instead of an encoded artifact.
	Raw string `yaml:"raw,omitempty"`

	// DeclaredNodes overrides max_num_nodes.
	DeclaredNodes *uint64 `yaml:"declared_nodes,omitempty"`

	// MaxTotalClaim sets max_total_claim.
	MaxTotalClaim uint64 `yaml:"max_total_claim,omitempty"`

	// TamperProof flips a bit in this entry's first proof sibling.
	TamperProof *int `yaml:"tamper_proof,omitempty"`

	// DropProof removes this entry's proof.
	DropProof *int `yaml:"drop_proof,omitempty"`
}

// SeedStep pre-inserts the first Entries rows of the artifact with the
// given version, under that version's key.
type SeedStep struct {
	Version uint64 `yaml:"version"`
	Entries int    `yaml:"entries"`
}

// Expectation lists summary fields to check. Nil fields are not checked.
type Expectation struct {
	// Error is the scan error code the run must fail with.
	Error string `yaml:"error,omitempty"`

	FilesFound   *int   `yaml:"files_found,omitempty"`
	FilesValid   *int   `yaml:"files_valid,omitempty"`
	Invalid      *int   `yaml:"invalid,omitempty"`
	Attempted    *int   `yaml:"attempted,omitempty"`
	Succeeded    *int   `yaml:"succeeded,omitempty"`
	Skipped      *int   `yaml:"skipped,omitempty"`
	Failed       *int   `yaml:"failed,omitempty"`
	RowsInserted *int64 `yaml:"rows_inserted,omitempty"`
	Chunks       *int   `yaml:"chunks,omitempty"`
}

// RowExpectation is the row count the destination must hold for a version.
type RowExpectation struct {
	Version uint64 `yaml:"version"`
	Count   int64  `yaml:"count"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "artifact:" vs "artifacts:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and consistent.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Artifacts) == 0 {
		return fmt.Errorf("artifacts list is required and must be non-empty")
	}
	if s.Runs < 0 {
		return fmt.Errorf("runs must be non-negative")
	}

	versions := make(map[uint64]int)
	files := make(map[string]bool)
	for i, a := range s.Artifacts {
		if a.File == "" {
			return fmt.Errorf("artifacts[%d]: file is required", i)
		}
		if files[a.File] {
			return fmt.Errorf("artifacts[%d]: duplicate file %q", i, a.File)
		}
		files[a.File] = true
		if a.Raw != "" {
			continue
		}
		if a.Entries < 0 {
			return fmt.Errorf("artifacts[%d]: entries must be non-negative", i)
		}
		for _, idx := range []*int{a.TamperProof, a.DropProof} {
			if idx != nil && (*idx < 0 || *idx >= a.Entries) {
				return fmt.Errorf("artifacts[%d]: entry index %d out of range", i, *idx)
			}
		}
		if a.TamperProof != nil && a.Entries < 2 {
			return fmt.Errorf("artifacts[%d]: tamper_proof needs at least 2 entries", i)
		}
		versions[a.Version] = a.Entries
	}

	for i, step := range s.Seed {
		n, ok := versions[step.Version]
		if !ok {
			return fmt.Errorf("seed[%d]: no artifact with version %d", i, step.Version)
		}
		if step.Entries < 0 || step.Entries > n {
			return fmt.Errorf("seed[%d]: entries must be between 0 and %d", i, n)
		}
	}
	return nil
}
