package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect captures what differs between destination engines: the driver,
// placeholder syntax, and how a proof sequence is bound.
type Dialect struct {
	Name   string
	Driver string

	placeholder func(n int) string
	proofArg    func(proof []string) (any, error)
	schema      string
	maxParams   int
}

// MaxChunkSize is the largest number of records one insert statement can
// bind under this dialect.
func (d Dialect) MaxChunkSize() int {
	return d.maxParams / paramsPerRecord
}

var (
	// Postgres stores proofs as TEXT[] and binds them natively through pgx.
	Postgres = Dialect{
		Name:        "postgres",
		Driver:      "pgx",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		proofArg:    func(proof []string) (any, error) { return proof, nil },
		schema:      postgresSchema,
		maxParams:   65535,
	}

	// SQLite stores proofs as a JSON array in a TEXT column.
	SQLite = Dialect{
		Name:        "sqlite",
		Driver:      "sqlite3",
		placeholder: func(int) string { return "?" },
		proofArg: func(proof []string) (any, error) {
			if proof == nil {
				proof = []string{}
			}
			b, err := json.Marshal(proof)
			if err != nil {
				return nil, err
			}
			return string(b), nil
		},
		schema:    sqliteSchema,
		maxParams: 32766,
	}
)

// ParseAddress picks a dialect from a store address and returns the
// driver-specific data source name.
//
// Recognized forms:
//   - postgres://..., postgresql://...            PostgreSQL URL
//   - host=... dbname=... (libpq key=value)       PostgreSQL
//   - sqlite://path, sqlite:path                  SQLite file
//   - file:...                                    SQLite URI
//   - *.db, *.sqlite, *.sqlite3                   SQLite file
func ParseAddress(addr string) (Dialect, string, error) {
	a := strings.TrimSpace(addr)
	lower := strings.ToLower(a)

	switch {
	case a == "":
		return Dialect{}, "", fmt.Errorf("empty store address")
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return Postgres, a, nil
	case strings.HasPrefix(lower, "sqlite://"):
		return SQLite, a[len("sqlite://"):], nil
	case strings.HasPrefix(lower, "sqlite:"):
		return SQLite, a[len("sqlite:"):], nil
	case strings.HasPrefix(lower, "file:"):
		return SQLite, a, nil
	case strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".sqlite3"):
		return SQLite, a, nil
	case strings.Contains(a, "="):
		// libpq keyword/value form: host=localhost user=postgres dbname=merkle
		return Postgres, a, nil
	}
	return Dialect{}, "", fmt.Errorf("unrecognized store address %q", redact(a))
}

// QuoteTable sanitizes a possibly schema-qualified table name.
func QuoteTable(table string) (string, error) {
	if strings.TrimSpace(table) == "" {
		return "", fmt.Errorf("empty table name")
	}
	parts := strings.Split(table, ".")
	for _, p := range parts {
		if p == "" {
			return "", fmt.Errorf("invalid table name %q", table)
		}
	}
	return pgx.Identifier(parts).Sanitize(), nil
}

// redact hides everything after the scheme so credentials never reach logs.
func redact(addr string) string {
	if i := strings.Index(addr, "://"); i >= 0 {
		return addr[:i+3] + "..."
	}
	if len(addr) > 8 {
		return addr[:8] + "..."
	}
	return addr
}
