// Package kvfile is a reference adapter.Backend: one JSON file per
// collection, guarded by a flock file lock so concurrent bdstore
// processes sharing the same directory don't corrupt each other's
// snapshot writes. Grounded on the teacher's cmd/bd/sync.go
// flock.New(lockPath)/TryLock discipline.
package kvfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/untoldecay/bdstore/adapter"
)

// Backend stores each collection key as "<dir>/<key>.json", JSON-encoding
// the adapter.Snapshot wire form directly.
type Backend struct {
	dir string
	mu  sync.Mutex
}

// New returns a Backend writing files under dir, creating dir if needed.
func New(dir string) (*Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("kvfile: create %s: %w", dir, err)
	}
	return &Backend{dir: dir}, nil
}

func (b *Backend) paths(key string) (dataPath, lockPath string) {
	safe := filepath.Base(key)
	return filepath.Join(b.dir, safe+".json"), filepath.Join(b.dir, safe+".lock")
}

// Get reads and decodes the file for key. A missing file is a normal
// (nil, false, nil) result, not an error.
func (b *Backend) Get(ctx context.Context, key string) (adapter.Snapshot, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dataPath, lockPath := b.paths(key)
	lock := flock.New(lockPath)
	if err := lock.Lock(); err != nil {
		return nil, false, fmt.Errorf("kvfile: lock %s: %w", lockPath, err)
	}
	defer func() { _ = lock.Unlock() }()

	raw, err := os.ReadFile(dataPath)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kvfile: read %s: %w", dataPath, err)
	}

	var snap adapter.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false, fmt.Errorf("kvfile: decode %s: %w", dataPath, err)
	}
	return snap, true, nil
}

// Set JSON-encodes value and writes it to key's file under an exclusive
// flock, via a temp-file-then-rename so a reader never observes a
// partially written snapshot.
func (b *Backend) Set(ctx context.Context, key string, value adapter.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	dataPath, lockPath := b.paths(key)
	lock := flock.New(lockPath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("kvfile: lock %s: %w", lockPath, err)
	}
	defer func() { _ = lock.Unlock() }()

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kvfile: encode %s: %w", dataPath, err)
	}

	tmp := dataPath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("kvfile: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dataPath); err != nil {
		return fmt.Errorf("kvfile: rename %s: %w", tmp, err)
	}
	return nil
}
