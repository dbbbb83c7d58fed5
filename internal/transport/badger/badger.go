// Package badger is a transport backed by an embedded BadgerDB instance.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/objsync/internal/transport"
)

const keyPrefix = "obj/"

// Config holds configuration for the database.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// Logger receives BadgerDB's own log output. Nil disables it.
	Logger *slog.Logger
}

// DefaultConfig returns a durable on-disk configuration.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration with no disk I/O.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Transport stores objects in BadgerDB under "obj/<id>".
type Transport struct {
	name string
	db   *badger.DB
}

var (
	_ transport.Transport   = (*Transport)(nil)
	_ transport.BatchPutter = (*Transport)(nil)
	_ transport.BatchGetter = (*Transport)(nil)
)

// Open opens the database described by cfg.
func Open(cfg Config) (*Transport, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger transport: path is required for persistent database")
	}

	var opts badger.Options
	name := "badger:memory"
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badger transport: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
		name = "badger:" + cfg.Path
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger transport: open: %w", err)
	}
	return &Transport{name: name, db: db}, nil
}

func key(id string) []byte { return []byte(keyPrefix + id) }

func (t *Transport) Name() string { return t.name }

func (t *Transport) Put(ctx context.Context, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := t.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(id)); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key(id), data)
	})
	if err != nil {
		return fmt.Errorf("badger transport: put %s: %w", id, err)
	}
	return nil
}

// PutBatch writes items through a WriteBatch. Content addressing makes
// overwriting an existing id harmless, so no existence check is done.
func (t *Transport) PutBatch(ctx context.Context, items []transport.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wb := t.db.NewWriteBatch()
	defer wb.Cancel()
	for _, it := range items {
		if err := wb.Set(key(it.ID), it.Data); err != nil {
			return fmt.Errorf("badger transport: put %s: %w", it.ID, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("badger transport: flush: %w", err)
	}
	return nil
}

func (t *Transport) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("badger transport: %s: %w", id, transport.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("badger transport: get %s: %w", id, err)
	}
	return data, nil
}

func (t *Transport) GetBatch(ctx context.Context, ids []string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(ids))
	err := t.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get(key(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out[id] = data
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger transport: get batch: %w", err)
	}
	return out, nil
}

func (t *Transport) Has(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := t.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("badger transport: has %s: %w", id, err)
	}
	return true, nil
}

func (t *Transport) Close() error {
	return t.db.Close()
}
