package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/objsync/internal/ir"
)

// WriteOperation appends a history record. Uses ON CONFLICT(id) DO NOTHING,
// so writing the same record twice is a no-op.
func (s *Store) WriteOperation(ctx context.Context, op ir.OperationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operations
		(id, stream_id, kind, state, root_id, converted, skipped, errors, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		op.ID,
		op.StreamID,
		op.Kind,
		op.State,
		op.RootID,
		op.Converted,
		op.Skipped,
		op.Errors,
		op.Seq,
	)
	if err != nil {
		return fmt.Errorf("write operation: %w", err)
	}
	return nil
}

// ReadOperations returns the history of a stream ordered by seq ASC,
// id ASC. An empty streamID returns every stream's history.
func (s *Store) ReadOperations(ctx context.Context, streamID string) ([]ir.OperationRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)
	const cols = `SELECT id, stream_id, kind, state, root_id, converted, skipped, errors, seq FROM operations`
	if streamID == "" {
		rows, err = s.db.QueryContext(ctx, cols+` ORDER BY seq ASC, id ASC COLLATE BINARY`)
	} else {
		rows, err = s.db.QueryContext(ctx, cols+` WHERE stream_id = ? ORDER BY seq ASC, id ASC COLLATE BINARY`, streamID)
	}
	if err != nil {
		return nil, fmt.Errorf("read operations: %w", err)
	}
	defer rows.Close()

	var out []ir.OperationRecord
	for rows.Next() {
		var op ir.OperationRecord
		if err := rows.Scan(&op.ID, &op.StreamID, &op.Kind, &op.State, &op.RootID,
			&op.Converted, &op.Skipped, &op.Errors, &op.Seq); err != nil {
			return nil, fmt.Errorf("read operations: scan: %w", err)
		}
		out = append(out, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read operations: %w", err)
	}
	return out, nil
}
