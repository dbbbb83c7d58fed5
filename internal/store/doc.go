// Package store is the SQLite-backed local state of a synced document:
//   - Streams: the last object id sent to or received from each stream
//   - Placeholders: the ordered application id to native handle mapping
//     written after every receive
//   - Operations: the send/receive history
//
// Ordering never uses wall time. Placeholders keep their insertion
// position; operations are ordered by seq (a logical clock), then id.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
