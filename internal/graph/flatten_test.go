package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objsync/internal/ir"
)

func kinds(nodes []*ir.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Kind
	}
	return out
}

func TestFlattenSharedChildOnce(t *testing.T) {
	child1 := ir.NewNode("child1").WithApplicationID("c1")
	child2 := ir.NewNode("child2").WithApplicationID("c2")
	root := ir.NewNode("root").Set("elements", ir.IRArray{child1, child1, child2})

	ids, ordered := Flatten(root)

	assert.Equal(t, []string{"root", "child1", "child2"}, kinds(ordered))
	assert.Equal(t, map[string]struct{}{"c1": {}, "c2": {}}, ids)
}

func TestFlattenDedupsByContentID(t *testing.T) {
	a := &ir.Node{Kind: "Point", ID: "same"}
	b := &ir.Node{Kind: "Point", ID: "same"}
	root := ir.NewNode("root").Set("a", a).Set("b", b)

	_, ordered := Flatten(root)
	require.Len(t, ordered, 2)
	assert.Same(t, a, ordered[1])
}

func TestFlattenCycleTerminates(t *testing.T) {
	a := ir.NewNode("A").WithApplicationID("a")
	b := ir.NewNode("B").WithApplicationID("b")
	a.Set("next", b)
	b.Set("back", ir.IRArray{a})
	a.Set("self", a)

	ids, ordered := Flatten(a)
	assert.Equal(t, []string{"A", "B"}, kinds(ordered))
	assert.Len(t, ids, 2)
}

func TestFlattenTraversalOrder(t *testing.T) {
	root := ir.NewNode("root").
		Set("first", ir.NewNode("f").Set("deep", ir.NewNode("f.deep"))).
		Set("list", ir.IRArray{ir.NewNode("l0"), ir.IRInt(7), ir.NewNode("l1")}).
		Set("map", ir.IRObject{"z": ir.NewNode("mz"), "a": ir.NewNode("ma")}).
		Set("name", ir.IRString("primitive"))

	_, ordered := Flatten(root)
	assert.Equal(t,
		[]string{"root", "f", "f.deep", "l0", "l1", "ma", "mz"},
		kinds(ordered))
}

func TestFlattenReachableCount(t *testing.T) {
	leaf := ir.NewNode("leaf")
	mids := ir.IRArray{}
	for i := 0; i < 5; i++ {
		mids = append(mids, ir.NewNode("mid").Set("i", ir.IRInt(int64(i))).Set("leaf", leaf))
	}
	root := ir.NewNode("root").Set("mids", mids)

	_, ordered := Flatten(root)
	assert.Len(t, ordered, 7)
	assert.Equal(t, 6, TotalChildrenCount(root))
}

func TestFlattenNil(t *testing.T) {
	ids, ordered := Flatten(nil)
	assert.Empty(t, ids)
	assert.Empty(t, ordered)
	assert.Equal(t, 0, TotalChildrenCount(nil))
}

func TestWalkDepthAndPrune(t *testing.T) {
	hidden := ir.NewNode("hidden")
	root := ir.NewNode("root").
		Set("a", ir.NewNode("a").Set("x", ir.NewNode("x"))).
		Set("skip", ir.NewNode("skip").Set("hidden", hidden))

	var seen []string
	var depths []int
	Walk(root, func(n *ir.Node, depth int) bool {
		seen = append(seen, n.Kind)
		depths = append(depths, depth)
		return n.Kind != "skip"
	})
	assert.Equal(t, []string{"root", "a", "x", "skip"}, seen)
	assert.Equal(t, []int{0, 1, 2, 1}, depths)
}

func TestPostOrderChildrenFirst(t *testing.T) {
	shared := ir.NewNode("shared")
	root := ir.NewNode("root").
		Set("a", ir.NewNode("a").Set("s", shared)).
		Set("b", ir.NewNode("b").Set("s", shared))

	ordered, err := PostOrder(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"shared", "a", "b", "root"}, kinds(ordered))
}

func TestPostOrderRejectsCycle(t *testing.T) {
	a := ir.NewNode("A")
	b := ir.NewNode("B").Set("a", a)
	a.Set("b", b)

	_, err := PostOrder(a)
	require.ErrorIs(t, err, ErrCycle)
	assert.Contains(t, err.Error(), "A")
}
