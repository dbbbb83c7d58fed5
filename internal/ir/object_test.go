package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// detachAll detaches a tree bottom-up the way a sender would.
func detachAll(t *testing.T, root *Node) (*Object, map[*Node]*Object) {
	t.Helper()
	done := map[*Node]*Object{}
	var visit func(n *Node) *Object
	visit = func(n *Node) *Object {
		if o, ok := done[n]; ok {
			return o
		}
		for _, c := range n.ChildNodes() {
			visit(c)
		}
		o, err := Detach(n, func(c *Node) (*Object, bool) {
			o, ok := done[c]
			return o, ok
		})
		require.NoError(t, err)
		done[n] = o
		return o
	}
	return visit(root), done
}

func TestDetachClosureUsesMinDepth(t *testing.T) {
	leaf := NewNode("Point").Set("x", IRFloat(1))
	mid := NewNode("Line").Set("start", leaf)
	root := NewNode("Root").
		Set("line", mid).
		Set("direct", IRArray{leaf})

	obj, all := detachAll(t, root)

	assert.Equal(t, map[string]int{
		all[mid].ID:  1,
		all[leaf].ID: 1,
	}, obj.Closure)
	assert.Equal(t, map[string]int{all[leaf].ID: 1}, all[mid].Closure)

	v, ok := obj.Field("line")
	require.True(t, ok)
	assert.Equal(t, IRRef(all[mid].ID), v)
	assert.ElementsMatch(t, []string{all[mid].ID, all[leaf].ID}, obj.ChildIDs())
}

func TestDetachDeepClosure(t *testing.T) {
	c := NewNode("C")
	b := NewNode("B").Set("c", c)
	a := NewNode("A").Set("b", b)

	obj, all := detachAll(t, a)
	assert.Equal(t, 1, obj.Closure[all[b].ID])
	assert.Equal(t, 2, obj.Closure[all[c].ID])
	assert.Equal(t, []string{all[b].ID}, obj.ChildIDs())
}

func TestDetachEqualContentSharesID(t *testing.T) {
	a := NewNode("Point").Set("x", IRFloat(1))
	b := NewNode("Point").Set("x", IRFloat(1))
	root := NewNode("Root").Set("a", a).Set("b", b)

	obj, all := detachAll(t, root)
	assert.Equal(t, all[a].ID, all[b].ID)
	assert.Len(t, obj.Closure, 1)
}

func TestDetachRequiresChildren(t *testing.T) {
	root := NewNode("Root").Set("c", NewNode("C"))
	_, err := Detach(root, func(*Node) (*Object, bool) { return nil, false })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not detached")
}

func TestDetachKeepsPlainRefsOutOfClosure(t *testing.T) {
	n := NewNode("Schema").Set(FieldOriginal, IRRef("elsewhere"))
	obj, err := Detach(n, func(*Node) (*Object, bool) { return nil, false })
	require.NoError(t, err)
	assert.Empty(t, obj.Closure)

	back := Attach(obj, func(string) (*Node, bool) {
		t.Fatal("plain refs must not be resolved")
		return nil, false
	})
	v, _ := back.Get(FieldOriginal)
	assert.Equal(t, IRRef("elsewhere"), v)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	leaf := NewNode("Point").Set("x", IRFloat(1)).Set("y", IRFloat(2.5))
	root := NewNode("Line").WithApplicationID("line-1").
		Set("start", leaf).
		Set("tags", IRArray{IRString("a"), IRInt(2)})

	obj, _ := detachAll(t, root)
	data, err := EncodeObject(obj)
	require.NoError(t, err)

	decoded, err := DecodeObject(data)
	require.NoError(t, err)
	assert.Equal(t, obj.ID, decoded.ID)
	assert.Equal(t, obj.Kind, decoded.Kind)
	assert.Equal(t, obj.ApplicationID, decoded.ApplicationID)
	assert.Equal(t, obj.Fields, decoded.Fields)
	assert.Equal(t, obj.Closure, decoded.Closure)

	again, err := EncodeObject(decoded)
	require.NoError(t, err)
	assert.Equal(t, data, again, "encoding must be stable")
}

func TestDecodeDetectsTampering(t *testing.T) {
	obj, _ := detachAll(t, NewNode("Level").Set("name", IRString("L1")))
	tampered := CloneObject(obj)
	tampered.Fields[0].Value = IRString("L2")

	data, err := EncodeObject(tampered)
	require.NoError(t, err)
	_, err = DecodeObject(data)
	require.ErrorIs(t, err, ErrIDMismatch)
}

func TestEncodeRequiresID(t *testing.T) {
	_, err := EncodeObject(&Object{Kind: "X"})
	require.Error(t, err)
}

func TestAttachRebuildsSharedChildren(t *testing.T) {
	leaf := NewNode("Point").Set("x", IRFloat(1))
	root := NewNode("Root").Set("a", leaf).Set("b", IRArray{leaf})
	obj, all := detachAll(t, root)

	shared := Attach(all[leaf], nil)
	back := Attach(obj, func(id string) (*Node, bool) {
		if id == all[leaf].ID {
			return shared, true
		}
		return nil, false
	})

	a, ok := back.Child("a")
	require.True(t, ok)
	arr, _ := back.Get("b")
	assert.Same(t, a, arr.(IRArray)[0])
	assert.Equal(t, obj.ID, back.ID)
	assert.Equal(t, all[leaf].ID, a.ID)
}

func TestAttachLeavesMissingAsRef(t *testing.T) {
	c := NewNode("C")
	obj, all := detachAll(t, NewNode("Root").Set("c", c))
	back := Attach(obj, func(string) (*Node, bool) { return nil, false })
	v, _ := back.Get("c")
	assert.Equal(t, IRRef(all[c].ID), v)
}
