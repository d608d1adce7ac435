// Package snapshot defines the persisted view of observable Discord state
// and the stores that carry it across process restarts.
//
// The monitor is restarted by an external scheduler every few minutes, so
// the snapshot is the only memory it has: "what changed" is always computed
// against the last persisted document. Stores must therefore never leave a
// half-written document behind (write-temp-then-rename for the file driver,
// a single transactional upsert for sqlite).
package snapshot
