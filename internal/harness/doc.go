// Package harness runs end-to-end sync scenarios described in YAML.
//
// A scenario lists artifact fixtures (built with the real merkle rule and
// then optionally damaged), rows to pre-seed, how many times to run the
// pipeline, and the expected summary of the last run. The harness writes
// the fixtures to a scratch directory, runs pipeline.Runner against a
// scratch SQLite destination with recorded delays and fixed run IDs, and
// reports any expectation that did not hold.
//
// Golden files under testdata/golden hold a Snapshot of every run, which
// catches changes in counts, statuses, gate decisions, pacing and final
// row counts that the explicit expectations do not name.
package harness
