// Package memory is an in-process transport backed by a map.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/objsync/internal/transport"
)

// Transport stores objects in memory. Safe for concurrent use.
type Transport struct {
	name string

	mu      sync.RWMutex
	objects map[string][]byte
	puts    int
}

var (
	_ transport.Transport   = (*Transport)(nil)
	_ transport.BatchPutter = (*Transport)(nil)
	_ transport.BatchGetter = (*Transport)(nil)
)

// New creates an empty transport.
func New(name string) *Transport {
	if name == "" {
		name = "memory"
	}
	return &Transport{name: name, objects: make(map[string][]byte)}
}

func (t *Transport) Name() string { return t.name }

func (t *Transport) Put(ctx context.Context, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("memory: empty id")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.putLocked(id, data)
	return nil
}

func (t *Transport) putLocked(id string, data []byte) {
	if _, ok := t.objects[id]; ok {
		return
	}
	t.objects[id] = slices.Clone(data)
	t.puts++
}

func (t *Transport) PutBatch(ctx context.Context, items []transport.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, it := range items {
		if it.ID == "" {
			return fmt.Errorf("memory: empty id")
		}
		t.putLocked(it.ID, it.Data)
	}
	return nil
}

func (t *Transport) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	data, ok := t.objects[id]
	if !ok {
		return nil, fmt.Errorf("memory: %s: %w", id, transport.ErrNotFound)
	}
	return slices.Clone(data), nil
}

func (t *Transport) GetBatch(ctx context.Context, ids []string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string][]byte, len(ids))
	for _, id := range ids {
		if data, ok := t.objects[id]; ok {
			out[id] = slices.Clone(data)
		}
	}
	return out, nil
}

func (t *Transport) Has(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.objects[id]
	return ok, nil
}

func (t *Transport) Close() error { return nil }

// Len returns the number of stored objects.
func (t *Transport) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.objects)
}

// Writes returns how many distinct objects were ever written.
func (t *Transport) Writes() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.puts
}

// IDs returns the stored ids, sorted.
func (t *Transport) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.objects))
	for id := range t.objects {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
