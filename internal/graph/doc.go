// Package graph walks node graphs built from ir.Node values.
//
// A node's fields may hold other nodes directly, inside arrays, or as values
// of maps. Every walker here descends fields in declaration order, arrays in
// element order and maps in canonical key order, so results are deterministic
// for a given graph.
//
// Identity: a node that carries a content id (ir.Node.ID) is identified by
// that id, so equal content reached through different pointers collapses to
// one entry. Nodes without an id are identified by pointer.
package graph
