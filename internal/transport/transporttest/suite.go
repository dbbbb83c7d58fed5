// Package transporttest is the behavior contract every transport
// implementation runs in its own tests.
package transporttest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objsync/internal/ir"
	"github.com/roach88/objsync/internal/transport"
)

// Objects returns n distinct encoded objects whose contents are derived
// from tag, so subtests sharing one transport never collide.
func Objects(t *testing.T, tag string, n int) []transport.Item {
	t.Helper()
	items := make([]transport.Item, 0, n)
	for i := 0; i < n; i++ {
		node := ir.NewNode("Probe").
			Set("tag", ir.IRString(tag)).
			Set("index", ir.IRInt(i))
		obj, err := ir.Detach(node, nil)
		require.NoError(t, err)
		data, err := ir.EncodeObject(obj)
		require.NoError(t, err)
		items = append(items, transport.Item{ID: obj.ID, Data: data})
	}
	return items
}

// Run exercises tr against the transport contract. tr must start empty.
func Run(t *testing.T, tr transport.Transport) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutThenGet", func(t *testing.T) {
		it := Objects(t, "put-get", 1)[0]
		require.NoError(t, tr.Put(ctx, it.ID, it.Data))

		got, err := tr.Get(ctx, it.ID)
		require.NoError(t, err)
		assert.Equal(t, it.Data, got)

		ok, err := tr.Has(ctx, it.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := tr.Get(ctx, "0000000000000000000000000000000000000000000000000000000000000000")
		require.Error(t, err)
		assert.ErrorIs(t, err, transport.ErrNotFound)

		ok, err := tr.Has(ctx, "0000000000000000000000000000000000000000000000000000000000000000")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("PutIsIdempotent", func(t *testing.T) {
		it := Objects(t, "idempotent", 1)[0]
		require.NoError(t, tr.Put(ctx, it.ID, it.Data))
		require.NoError(t, tr.Put(ctx, it.ID, it.Data))

		got, err := tr.Get(ctx, it.ID)
		require.NoError(t, err)
		assert.Equal(t, it.Data, got)
	})

	t.Run("Batch", func(t *testing.T) {
		items := Objects(t, "batch", 5)
		require.NoError(t, transport.PutAll(ctx, tr, items))

		ids := make([]string, 0, len(items)+1)
		for _, it := range items {
			ids = append(ids, it.ID)
		}
		ids = append(ids, "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")

		got, err := transport.GetAll(ctx, tr, ids)
		require.NoError(t, err)
		assert.Len(t, got, len(items), "missing ids are omitted")
		for _, it := range items {
			assert.Equal(t, it.Data, got[it.ID], "object %s", it.ID)
		}
	})

	t.Run("ObjectRoundTrip", func(t *testing.T) {
		child, err := ir.Detach(ir.NewNode("Point").Set("x", ir.IRFloat(1.5)), nil)
		require.NoError(t, err)
		parent, err := ir.Detach(
			ir.NewNode("Line").WithApplicationID("line-1").Set("start", ir.NewNode("Point").Set("x", ir.IRFloat(1.5))),
			func(*ir.Node) (*ir.Object, bool) { return child, true },
		)
		require.NoError(t, err)

		for _, o := range []*ir.Object{child, parent} {
			id, err := transport.PutObject(ctx, tr, o)
			require.NoError(t, err)
			assert.Equal(t, o.ID, id)
		}

		got, err := transport.GetObject(ctx, tr, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, parent.ID, got.ID)
		assert.Equal(t, "line-1", got.ApplicationID)
		assert.Equal(t, map[string]int{child.ID: 1}, got.Closure)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		it := Objects(t, "cancelled", 1)[0]
		err := tr.Put(cctx, it.ID, it.Data)
		assert.Error(t, err, fmt.Sprintf("%s accepted a put on a cancelled context", tr.Name()))
	})
}
