package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objsync/internal/transport/transporttest"
)

func TestContract(t *testing.T) {
	tr, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })

	transporttest.Run(t, tr)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestPersistentReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	it := transporttest.Objects(t, "persist", 1)[0]

	tr, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, tr.Put(ctx, it.ID, it.Data))
	require.NoError(t, tr.Close())

	tr, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer tr.Close()

	got, err := tr.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, it.Data, got)
}
