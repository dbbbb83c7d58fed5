// Package redis is a transport that keeps objects in Redis string keys.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/roach88/objsync/internal/transport"
)

const defaultPrefix = "objsync:object:"

// Transport stores each object under prefix+id.
type Transport struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

var (
	_ transport.Transport   = (*Transport)(nil)
	_ transport.BatchPutter = (*Transport)(nil)
	_ transport.BatchGetter = (*Transport)(nil)
)

type Option func(*Transport)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(t *Transport) {
		t.prefix = prefix
	}
}

// WithTTL expires objects after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(t *Transport) {
		t.ttl = ttl
	}
}

// New connects to the server at address.
func New(address, password string, db int, opts ...Option) *Transport {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient wraps an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Transport {
	t := &Transport{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) key(id string) string {
	return t.prefix + id
}

func (t *Transport) Name() string {
	return "redis:" + t.client.Options().Addr
}

// Put uses SETNX semantics: an id already stored keeps its bytes.
func (t *Transport) Put(ctx context.Context, id string, data []byte) error {
	if err := t.client.SetNX(ctx, t.key(id), data, t.ttl).Err(); err != nil {
		return fmt.Errorf("redis transport: put %s: %w", id, err)
	}
	return nil
}

// PutBatch pipelines one SETNX per item.
func (t *Transport) PutBatch(ctx context.Context, items []transport.Item) error {
	pipe := t.client.Pipeline()
	for _, it := range items {
		pipe.SetNX(ctx, t.key(it.ID), it.Data, t.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis transport: put batch: %w", err)
	}
	return nil
}

func (t *Transport) Get(ctx context.Context, id string) ([]byte, error) {
	data, err := t.client.Get(ctx, t.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("redis transport: %s: %w", id, transport.ErrNotFound)
		}
		return nil, fmt.Errorf("redis transport: get %s: %w", id, err)
	}
	return data, nil
}

// GetBatch reads all ids with one MGET.
func (t *Transport) GetBatch(ctx context.Context, ids []string) (map[string][]byte, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = t.key(id)
	}
	vals, err := t.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis transport: get batch: %w", err)
	}
	out := make(map[string][]byte, len(ids))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		out[ids[i]] = []byte(s)
	}
	return out, nil
}

func (t *Transport) Has(ctx context.Context, id string) (bool, error) {
	n, err := t.client.Exists(ctx, t.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis transport: has %s: %w", id, err)
	}
	return n > 0, nil
}

// Close closes the redis client.
func (t *Transport) Close() error {
	return t.client.Close()
}
