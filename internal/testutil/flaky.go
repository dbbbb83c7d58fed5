package testutil

import (
	"context"
	"sync"

	"github.com/roach88/objsync/internal/transport"
)

// FlakyTransport wraps a transport and injects failures. Only the
// single-object methods are exposed, so batch helpers fall back to
// per-object calls and every object passes through the hooks.
type FlakyTransport struct {
	transport.Transport

	mu sync.Mutex
	// Fail maps object ids to the error returned by Put and Get for them.
	Fail map[string]error
	// BeforeCall, when set, runs before every Put, Get and Has with the
	// 1-based call count.
	BeforeCall func(n int)
	calls      int
}

// NewFlakyTransport wraps inner.
func NewFlakyTransport(inner transport.Transport) *FlakyTransport {
	return &FlakyTransport{Transport: inner, Fail: make(map[string]error)}
}

// FailOn makes Put and Get of id return err.
func (f *FlakyTransport) FailOn(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fail[id] = err
}

// Calls returns how many calls reached the transport.
func (f *FlakyTransport) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FlakyTransport) enter(id string) error {
	f.mu.Lock()
	f.calls++
	n := f.calls
	hook := f.BeforeCall
	err := f.Fail[id]
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return err
}

func (f *FlakyTransport) Put(ctx context.Context, id string, data []byte) error {
	if err := f.enter(id); err != nil {
		return err
	}
	return f.Transport.Put(ctx, id, data)
}

func (f *FlakyTransport) Get(ctx context.Context, id string) ([]byte, error) {
	if err := f.enter(id); err != nil {
		return nil, err
	}
	return f.Transport.Get(ctx, id)
}

func (f *FlakyTransport) Has(ctx context.Context, id string) (bool, error) {
	f.enter("")
	return f.Transport.Has(ctx, id)
}
