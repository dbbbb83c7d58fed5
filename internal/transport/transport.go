// Package transport defines the content-addressed object store contract
// used by transfer, and helpers shared by its implementations.
//
// Objects are stored as their canonical wire bytes (ir.EncodeObject) under
// their content id. Put and Get are idempotent: writing the same id twice
// is a no-op because the bytes for a given id never change.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/objsync/internal/ir"
)

// ErrNotFound is returned by Get when the id is not stored.
var ErrNotFound = errors.New("object not found")

// Transport is a content-addressed object store.
type Transport interface {
	// Name identifies the transport in logs, metrics, and error reports.
	Name() string
	Put(ctx context.Context, id string, data []byte) error
	Get(ctx context.Context, id string) ([]byte, error)
	Has(ctx context.Context, id string) (bool, error)
	Close() error
}

// Item is one object in a batch.
type Item struct {
	ID   string
	Data []byte
}

// BatchPutter is implemented by transports that can write several objects
// in one round trip.
type BatchPutter interface {
	PutBatch(ctx context.Context, items []Item) error
}

// BatchGetter is implemented by transports that can read several objects
// in one round trip. Missing ids are absent from the result.
type BatchGetter interface {
	GetBatch(ctx context.Context, ids []string) (map[string][]byte, error)
}

// PutAll writes items, batched when t supports it.
func PutAll(ctx context.Context, t Transport, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	if bp, ok := t.(BatchPutter); ok {
		return bp.PutBatch(ctx, items)
	}
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.Put(ctx, it.ID, it.Data); err != nil {
			return fmt.Errorf("put %s: %w", it.ID, err)
		}
	}
	return nil
}

// GetAll reads ids, batched when t supports it. Missing ids are absent
// from the result; other errors abort.
func GetAll(ctx context.Context, t Transport, ids []string) (map[string][]byte, error) {
	if len(ids) == 0 {
		return map[string][]byte{}, nil
	}
	if bg, ok := t.(BatchGetter); ok {
		return bg.GetBatch(ctx, ids)
	}
	out := make(map[string][]byte, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := t.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", id, err)
		}
		out[id] = data
	}
	return out, nil
}

// PutObject encodes o and stores it under its id.
func PutObject(ctx context.Context, t Transport, o *ir.Object) (string, error) {
	data, err := ir.EncodeObject(o)
	if err != nil {
		return "", err
	}
	if err := t.Put(ctx, o.ID, data); err != nil {
		return "", err
	}
	return o.ID, nil
}

// GetObject reads and decodes the object stored under id. The decoded
// content must hash to id.
func GetObject(ctx context.Context, t Transport, id string) (*ir.Object, error) {
	data, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	o, err := ir.DecodeObject(data)
	if err != nil {
		return nil, err
	}
	if o.ID != id {
		return nil, fmt.Errorf("object %s: %w: stored object is %s", id, ir.ErrIDMismatch, o.ID)
	}
	return o, nil
}
