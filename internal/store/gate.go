package store

import (
	"context"
	"fmt"
)

// Action is the Idempotency Gate's verdict for one artifact.
type Action string

const (
	// ActionSkip means every expected row is already present.
	ActionSkip Action = "skip"

	// ActionPartial means some rows exist; the upload proceeds and relies
	// on conflict-free inserts to avoid duplicates.
	ActionPartial Action = "partial"

	// ActionFull means no rows exist for the key.
	ActionFull Action = "full"
)

// Decision is the gate's verdict together with the counts behind it.
type Decision struct {
	Action   Action `json:"action"`
	Existing int64  `json:"existing"`
	Expected int64  `json:"expected"`
	Missing  int64  `json:"missing"`
}

// Plan decides what to do given existing and expected row counts.
//
// The gate is an optimization only. Correctness against duplicates comes
// from the insert conflict policy, so a wrong count here can cost work but
// never corrupt the table.
func Plan(existing, expected int64) Decision {
	d := Decision{Existing: existing, Expected: expected}
	switch {
	case existing >= expected:
		d.Action = ActionSkip
	case existing > 0:
		d.Action = ActionPartial
		d.Missing = expected - existing
	default:
		d.Action = ActionFull
		d.Missing = expected
	}
	return d
}

// CountExisting returns how many rows the table holds for key. The query
// is bounded by the probe timeout.
func (c *Conn) CountExisting(ctx context.Context, table, key string) (int64, error) {
	quoted, err := QuoteTable(table)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE "index" = %s`, quoted, c.dialect.placeholder(1))

	ctx, cancel := c.bounded(ctx)
	defer cancel()

	var n int64
	if err := c.db.QueryRowContext(ctx, query, key).Scan(&n); err != nil {
		return 0, fmt.Errorf("count existing records: %w", err)
	}
	return n, nil
}

// Gate counts existing rows for key and plans the upload.
func (c *Conn) Gate(ctx context.Context, table, key string, expected int64) (Decision, error) {
	existing, err := c.CountExisting(ctx, table, key)
	if err != nil {
		return Decision{}, err
	}
	return Plan(existing, expected), nil
}
