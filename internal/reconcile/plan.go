// Package reconcile maps incoming nodes onto the native elements created
// by an earlier receive and applies the result through the mutation
// executor.
//
// Nodes are matched by reconciliation key (convert.Key: application id,
// falling back to content id). For previous placeholders P and incoming
// keys I the plan deletes P-I, updates I∩P and creates I-P, with every
// delete ordered before every create or update.
package reconcile

import (
	"github.com/roach88/objsync/internal/convert"
	"github.com/roach88/objsync/internal/graph"
	"github.com/roach88/objsync/internal/host"
	"github.com/roach88/objsync/internal/ir"
)

// Op is the scheduled operation for one key.
type Op string

const (
	OpDelete Op = "delete"
	OpCreate Op = "create"
	OpUpdate Op = "update"
)

// Step is one scheduled operation.
type Step struct {
	Op  Op
	Key string

	// Handle is the previously materialized element (delete, update).
	Handle host.HandleID

	// Node is the incoming node (create, update).
	Node *ir.Node
}

// Plan is the diff between a previous materialization and an incoming
// node set.
type Plan struct {
	Deletes []Step
	Upserts []Step
}

// Candidates returns the nodes below root that reg can materialize, in
// pre-order, and the identifiable nodes it cannot. The children of a
// candidate belong to it and are not visited, which also keeps an
// embedded schema from being materialized twice.
func Candidates(reg *convert.Registry, root *ir.Node) (convertible, unsupported []*ir.Node) {
	graph.Walk(root, func(n *ir.Node, depth int) bool {
		if reg.CanConvertToNative(n) {
			convertible = append(convertible, n)
			return false
		}
		if depth > 0 && n.ApplicationID != "" {
			unsupported = append(unsupported, n)
		}
		return true
	})
	return convertible, unsupported
}

// Diff computes the plan. incoming must already be filtered to nodes that
// can be materialized; a key seen twice keeps its first node. A previous
// placeholder listed twice keeps its first handle.
func Diff(previous []ir.Placeholder, incoming []*ir.Node) Plan {
	prev := make(map[string]host.HandleID, len(previous))
	for _, p := range previous {
		if _, dup := prev[p.ApplicationID]; !dup {
			prev[p.ApplicationID] = host.HandleID(p.NativeHandleID)
		}
	}

	var plan Plan
	keys := make(map[string]struct{}, len(incoming))
	for _, n := range incoming {
		key := convert.Key(n)
		if key == "" {
			continue
		}
		if _, dup := keys[key]; dup {
			continue
		}
		keys[key] = struct{}{}
		if h, ok := prev[key]; ok {
			plan.Upserts = append(plan.Upserts, Step{Op: OpUpdate, Key: key, Handle: h, Node: n})
		} else {
			plan.Upserts = append(plan.Upserts, Step{Op: OpCreate, Key: key, Node: n})
		}
	}

	deleted := make(map[string]struct{})
	for _, p := range previous {
		if _, keep := keys[p.ApplicationID]; keep {
			continue
		}
		if _, dup := deleted[p.ApplicationID]; dup {
			continue
		}
		deleted[p.ApplicationID] = struct{}{}
		plan.Deletes = append(plan.Deletes, Step{Op: OpDelete, Key: p.ApplicationID, Handle: prev[p.ApplicationID]})
	}
	return plan
}

// Steps returns every step, deletes first.
func (p Plan) Steps() []Step {
	out := make([]Step, 0, len(p.Deletes)+len(p.Upserts))
	out = append(out, p.Deletes...)
	return append(out, p.Upserts...)
}

// Count returns the number of steps with op.
func (p Plan) Count(op Op) int {
	if op == OpDelete {
		return len(p.Deletes)
	}
	n := 0
	for _, s := range p.Upserts {
		if s.Op == op {
			n++
		}
	}
	return n
}

// Len returns the total number of steps.
func (p Plan) Len() int {
	return len(p.Deletes) + len(p.Upserts)
}
