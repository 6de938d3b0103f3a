// Package store writes validated artifacts into a relational table.
//
// Each artifact gets its own Conn, opened by Connect and closed before the
// next artifact starts. A Conn holds at most one live connection.
//
// # Table layout
//
//	"index"    TEXT   derived key of the artifact (partition key)
//	recipient  TEXT   base58 claimant
//	amount     TEXT   0x-prefixed hex
//	proof      TEXT[] 0x-prefixed hex siblings, leaf to root (JSON text on SQLite)
//	PRIMARY KEY ("index", recipient)
//
// # Write path
//
//   - Gate counts existing rows for the key and decides skip/partial/full.
//   - Upload splits records into chunks and writes each chunk in its own
//     transaction with a multi-row INSERT ... ON CONFLICT DO NOTHING.
//   - Failed chunk attempts roll back and are retried under a per-attempt
//     deadline; committed chunks are never rewritten.
//
// # Dialects
//
// PostgreSQL is reached through pgx's database/sql driver. SQLite (via
// go-sqlite3) runs the same write path locally with WAL enabled and
// busy_timeout=5000.
package store
