package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/objsync/internal/ir"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestOperation creates an operation record with minimal fields.
func createTestOperation(id, streamID, kind string, seq int64) ir.OperationRecord {
	return ir.OperationRecord{
		ID:       id,
		StreamID: streamID,
		Kind:     kind,
		State:    "done",
		Seq:      seq,
	}
}
