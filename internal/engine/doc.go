// Package engine is the sync orchestrator. It drives one send or receive
// through its states and returns a Result that always carries the final
// state, the success counts and every accumulated diagnostic.
//
//	send:    Collecting -> Converting -> Transferring -> Committing -> Done
//	receive: Collecting -> Transferring -> Reconciling -> Committing -> Done
//
// Cancelled is reachable from every non-terminal state. Failed ends an
// operation that hit a fatal error, or that accumulated failures without
// a single success.
//
// Threading: every host document access, reads included, is posted to the
// mutation executor, which must be running. Conversion of native elements
// to nodes therefore happens on the executor goroutine; transfer happens
// on the caller's goroutine. Placeholders are written only after the
// executor has run every mutation of the operation.
package engine
