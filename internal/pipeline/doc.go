// Package pipeline orchestrates a sync run.
//
// A run scans a directory of artifacts, then for each valid artifact in
// version order opens a fresh store connection, consults the idempotency
// gate, encodes the entries and uploads them in chunks. Artifacts are
// processed strictly one after another with a pause between them.
//
// Per-artifact failures (connect, schema, gate, upload) become failed
// Outcomes in the Summary. Only configuration problems, such as a
// directory with nothing valid in it, are returned as errors from Run.
package pipeline
