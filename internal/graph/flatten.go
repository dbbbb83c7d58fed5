package graph

import (
	"errors"
	"fmt"

	"github.com/roach88/objsync/internal/ir"
)

// ErrCycle is returned by walkers that need an acyclic graph.
var ErrCycle = errors.New("graph contains a cycle")

type nodeKey struct {
	id  string
	ptr *ir.Node
}

func keyOf(n *ir.Node) nodeKey {
	if n.ID != "" {
		return nodeKey{id: n.ID}
	}
	return nodeKey{ptr: n}
}

// Flatten linearizes the graph below root. It returns the set of
// application ids carried by the reachable nodes and every unique node in
// pre-order, root first. A node reached a second time is neither emitted
// nor descended again, which also makes Flatten terminate on cycles.
func Flatten(root *ir.Node) (map[string]struct{}, []*ir.Node) {
	appIDs := make(map[string]struct{})
	var ordered []*ir.Node
	if root == nil {
		return appIDs, ordered
	}

	seen := make(map[nodeKey]struct{})
	var visit func(n *ir.Node)
	visit = func(n *ir.Node) {
		k := keyOf(n)
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		ordered = append(ordered, n)
		if n.ApplicationID != "" {
			appIDs[n.ApplicationID] = struct{}{}
		}
		for _, c := range n.ChildNodes() {
			visit(c)
		}
	}
	visit(root)
	return appIDs, ordered
}

// Walk calls fn for every unique node in pre-order with its depth below
// root (root is 0). Returning false from fn skips that node's children.
func Walk(root *ir.Node, fn func(n *ir.Node, depth int) bool) {
	if root == nil {
		return
	}
	seen := make(map[nodeKey]struct{})
	var visit func(n *ir.Node, depth int)
	visit = func(n *ir.Node, depth int) {
		k := keyOf(n)
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		if !fn(n, depth) {
			return
		}
		for _, c := range n.ChildNodes() {
			visit(c, depth+1)
		}
	}
	visit(root, 0)
}

// PostOrder returns every unique node with children before parents, root
// last. Content ids can only be computed in this order, so a cycle is an
// error here rather than something to step over.
func PostOrder(root *ir.Node) ([]*ir.Node, error) {
	if root == nil {
		return nil, nil
	}

	const (
		visiting = 1
		done     = 2
	)
	state := make(map[nodeKey]int)
	var out []*ir.Node

	var visit func(n *ir.Node, path []string) error
	visit = func(n *ir.Node, path []string) error {
		k := keyOf(n)
		switch state[k] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: %v -> %s", ErrCycle, path, n.Label())
		}
		state[k] = visiting
		path = append(path, n.Label())
		for _, c := range n.ChildNodes() {
			if err := visit(c, path); err != nil {
				return err
			}
		}
		state[k] = done
		out = append(out, n)
		return nil
	}

	if err := visit(root, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// TotalChildrenCount returns the number of unique nodes below root.
func TotalChildrenCount(root *ir.Node) int {
	_, ordered := Flatten(root)
	if len(ordered) == 0 {
		return 0
	}
	return len(ordered) - 1
}
