// Package sqlite is a transport that keeps objects in a local SQLite
// database, used as the on-disk object cache next to a document.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/objsync/internal/transport"
)

const schema = `
CREATE TABLE IF NOT EXISTS objects (
	id   TEXT PRIMARY KEY,
	data BLOB NOT NULL
) WITHOUT ROWID;
`

// maxBatchParams stays under SQLite's default host parameter limit.
const maxBatchParams = 500

// Transport stores objects in a SQLite table.
type Transport struct {
	name string
	db   *sql.DB
}

var (
	_ transport.Transport   = (*Transport)(nil)
	_ transport.BatchPutter = (*Transport)(nil)
	_ transport.BatchGetter = (*Transport)(nil)
)

// Open creates or opens the object database at path.
func Open(path string) (*Transport, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite transport: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite transport: connect: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		schema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite transport: %q: %w", firstLine(stmt), err)
		}
	}
	return &Transport{name: "sqlite:" + path, db: db}, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func (t *Transport) Name() string { return t.name }

func (t *Transport) Put(ctx context.Context, id string, data []byte) error {
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO objects (id, data) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`, id, data)
	if err != nil {
		return fmt.Errorf("sqlite transport: put %s: %w", id, err)
	}
	return nil
}

// PutBatch writes all items in one transaction.
func (t *Transport) PutBatch(ctx context.Context, items []transport.Item) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite transport: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO objects (id, data) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("sqlite transport: prepare: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		if _, err := stmt.ExecContext(ctx, it.ID, it.Data); err != nil {
			return fmt.Errorf("sqlite transport: put %s: %w", it.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite transport: commit: %w", err)
	}
	return nil
}

func (t *Transport) Get(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := t.db.QueryRowContext(ctx, `SELECT data FROM objects WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite transport: %s: %w", id, transport.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite transport: get %s: %w", id, err)
	}
	return data, nil
}

func (t *Transport) GetBatch(ctx context.Context, ids []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(ids))
	for start := 0; start < len(ids); start += maxBatchParams {
		end := min(start+maxBatchParams, len(ids))
		chunk := ids[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := `SELECT id, data FROM objects WHERE id IN (?` + strings.Repeat(",?", len(chunk)-1) + `)`
		rows, err := t.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("sqlite transport: get batch: %w", err)
		}
		for rows.Next() {
			var id string
			var data []byte
			if err := rows.Scan(&id, &data); err != nil {
				rows.Close()
				return nil, fmt.Errorf("sqlite transport: scan: %w", err)
			}
			out[id] = data
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("sqlite transport: get batch: %w", err)
		}
	}
	return out, nil
}

func (t *Transport) Has(ctx context.Context, id string) (bool, error) {
	var one int
	err := t.db.QueryRowContext(ctx, `SELECT 1 FROM objects WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite transport: has %s: %w", id, err)
	}
	return true, nil
}

// Count returns the number of stored objects.
func (t *Transport) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM objects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite transport: count: %w", err)
	}
	return n, nil
}

func (t *Transport) Close() error {
	if t.db == nil {
		return nil
	}
	return t.db.Close()
}
