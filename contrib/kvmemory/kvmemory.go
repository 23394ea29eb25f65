// Package kvmemory is the simplest adapter.Backend: a mutex-guarded map,
// for tests where a real filesystem or network dependency would be noise.
package kvmemory

import (
	"context"
	"sync"

	"github.com/untoldecay/bdstore/adapter"
)

// Backend is an in-process adapter.Backend. The zero value is ready to
// use.
type Backend struct {
	mu   sync.Mutex
	data map[string]adapter.Snapshot
}

// New returns an empty Backend.
func New() *Backend {
	return &Backend{data: make(map[string]adapter.Snapshot)}
}

// Get returns a copy of the stored snapshot for key, if any.
func (b *Backend) Get(ctx context.Context, key string) (adapter.Snapshot, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap, ok := b.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make(adapter.Snapshot, len(snap))
	copy(out, snap)
	return out, true, nil
}

// Set stores a copy of value under key.
func (b *Backend) Set(ctx context.Context, key string, value adapter.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(adapter.Snapshot, len(value))
	copy(out, value)
	if b.data == nil {
		b.data = make(map[string]adapter.Snapshot)
	}
	b.data[key] = out
	return nil
}
