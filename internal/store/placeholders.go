package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/objsync/internal/ir"
)

// ErrStreamNotFound is returned for streams that were never written.
var ErrStreamNotFound = errors.New("stream not found")

// Stream is the persisted state of one stream.
type Stream struct {
	ID         string
	ObjectID   string
	UpdatedSeq int64
}

// ReadPlaceholders returns the placeholders of a stream in the order they
// were written. A stream without placeholders yields an empty slice.
func (s *Store) ReadPlaceholders(ctx context.Context, streamID string) ([]ir.Placeholder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT application_id, native_handle_id
		FROM placeholders
		WHERE stream_id = ?
		ORDER BY position ASC
	`, streamID)
	if err != nil {
		return nil, fmt.Errorf("read placeholders: %w", err)
	}
	defer rows.Close()

	out := []ir.Placeholder{}
	for rows.Next() {
		var p ir.Placeholder
		if err := rows.Scan(&p.ApplicationID, &p.NativeHandleID); err != nil {
			return nil, fmt.Errorf("read placeholders: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read placeholders: %w", err)
	}
	return out, nil
}

// ReplacePlaceholders atomically swaps the placeholder set of a stream.
// Readers see either the old set or the new one.
func (s *Store) ReplacePlaceholders(ctx context.Context, streamID string, placeholders []ir.Placeholder) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace placeholders: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM placeholders WHERE stream_id = ?`, streamID); err != nil {
		return fmt.Errorf("replace placeholders: clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO placeholders (stream_id, position, application_id, native_handle_id)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("replace placeholders: prepare: %w", err)
	}
	defer stmt.Close()

	for i, p := range placeholders {
		if _, err := stmt.ExecContext(ctx, streamID, i, p.ApplicationID, p.NativeHandleID); err != nil {
			return fmt.Errorf("replace placeholders: %s: %w", p.ApplicationID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace placeholders: commit: %w", err)
	}
	return nil
}

// SetStreamObject records the object id last sent to or received from a
// stream.
func (s *Store) SetStreamObject(ctx context.Context, streamID, objectID string, seq int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO streams (id, object_id, updated_seq)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET object_id = excluded.object_id, updated_seq = excluded.updated_seq
	`, streamID, objectID, seq)
	if err != nil {
		return fmt.Errorf("set stream object: %w", err)
	}
	return nil
}

// ReadStream returns a stream's state, or ErrStreamNotFound.
func (s *Store) ReadStream(ctx context.Context, streamID string) (Stream, error) {
	var st Stream
	err := s.db.QueryRowContext(ctx, `
		SELECT id, object_id, updated_seq FROM streams WHERE id = ?
	`, streamID).Scan(&st.ID, &st.ObjectID, &st.UpdatedSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return Stream{}, fmt.Errorf("%s: %w", streamID, ErrStreamNotFound)
	}
	if err != nil {
		return Stream{}, fmt.Errorf("read stream: %w", err)
	}
	return st, nil
}

// ListStreams returns every stream ordered by id.
func (s *Store) ListStreams(ctx context.Context) ([]Stream, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, object_id, updated_seq FROM streams ORDER BY id ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	defer rows.Close()

	var out []Stream
	for rows.Next() {
		var st Stream
		if err := rows.Scan(&st.ID, &st.ObjectID, &st.UpdatedSeq); err != nil {
			return nil, fmt.Errorf("list streams: scan: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
