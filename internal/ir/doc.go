// Package ir provides the graph value model and wire encoding for objsync.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Field values are a sealed set of IRValue types
//   - Object ids are SHA-256 over RFC 8785 canonical JSON with a domain prefix
//   - Floats always serialize with a '.' or exponent so they decode as floats
//   - Nested nodes are detached to IRRef values on the wire
//   - Logical clocks (seq) only, never wall-clock timestamps
package ir
