// Package artifact loads, validates, and discovers airdrop snapshots.
//
// An artifact is a JSON file committing a fixed set of (claimant, amount,
// proof) entries to a single merkle root. Before anything is written to a
// store, every artifact must pass Validate:
//
//   - it parses
//   - it has at least one entry
//   - max_num_nodes equals the entry count
//   - every entry has a proof
//   - every proof folds to the committed root
//
// A valid artifact is paired with its DerivedKey, the distributor address
// computed from (program, base, mint, version). That key's base58 form is
// the partition key of the destination table; artifacts that share all four
// inputs share a key.
//
// Scan applies Validate to every .json file in a directory. Invalid files
// become diagnostics and never abort the scan.
package artifact
