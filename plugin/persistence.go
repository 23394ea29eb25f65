package plugin

import (
	"context"
	"fmt"
	"time"

	"github.com/untoldecay/bdstore/adapter"
	"github.com/untoldecay/bdstore/encoding"
	"github.com/untoldecay/bdstore/internal/debugging"
	"github.com/untoldecay/bdstore/merge"
	"github.com/untoldecay/bdstore/store"
)

// PersistenceOptions configures Persistence. Zero value uses the spec
// defaults (§6): a 100ms debounce and a "persist:"+collectionKey snapshot
// key.
type PersistenceOptions struct {
	CollectionKey string
	DebounceMs    int
	Key           string

	// Compact, when set, is run against a Snapshot before every write,
	// letting callers drop tombstones older than a horizon from the
	// written snapshot only (the live DocumentMap never discards
	// tombstones — §3).
	Compact func(adapter.Snapshot) adapter.Snapshot
}

func (o PersistenceOptions) snapshotKey() string {
	if o.Key != "" {
		return o.Key
	}
	return "persist:" + o.CollectionKey
}

func (o PersistenceOptions) debounce() time.Duration {
	if o.DebounceMs > 0 {
		return time.Duration(o.DebounceMs) * time.Millisecond
	}
	return 100 * time.Millisecond
}

// Persistence builds a store.PluginFactory that loads a saved snapshot at
// init (merged in silently, §4.8) and writes a debounced snapshot on every
// subsequent Change.
func Persistence(backend adapter.Backend, opts PersistenceOptions) store.PluginFactory {
	return func(s *store.Store) store.Handle {
		key := opts.snapshotKey()
		write := func() {
			ctx := context.Background()
			snap := toSnapshot(s.Snapshot())
			if opts.Compact != nil {
				snap = opts.Compact(snap)
			}
			if err := backend.Set(ctx, key, snap); err != nil {
				debugging.Logf("persistence: write %q failed: %v", key, err)
			}
		}
		deb := newDebouncer(opts.debounce(), write)

		return store.Handle{
			Init: func(ctx context.Context) error {
				snap, ok, err := backend.Get(ctx, key)
				if err != nil {
					return fmt.Errorf("persistence: load %q: %w", key, err)
				}
				if !ok {
					return nil
				}
				_, errs := s.Merge(fromSnapshot(snap), store.Silent())
				if len(errs) > 0 {
					debugging.Logf("persistence: %d entries rejected loading %q", len(errs), key)
				}
				return nil
			},
			Dispose: func(ctx context.Context) error {
				deb.Cancel()
				write()
				return nil
			},
			Hooks: &store.Hooks{
				OnPut:    func([]store.KV) { deb.Trigger() },
				OnPatch:  func([]store.KV) { deb.Trigger() },
				OnDelete: func([]string) { deb.Trigger() },
			},
		}
	}
}

func toSnapshot(entries []merge.Entry) adapter.Snapshot {
	out := make(adapter.Snapshot, 0, len(entries))
	for _, e := range entries {
		out = append(out, adapter.Entry{Key: e.Key, Value: e.Doc})
	}
	return out
}

func fromSnapshot(snap adapter.Snapshot) []merge.Entry {
	out := make([]merge.Entry, 0, len(snap))
	for _, e := range snap {
		out = append(out, merge.Entry{Key: e.Key, Doc: e.Value})
	}
	return out
}

// CompactTombstones returns a Compact func that drops entries whose
// __deleted field's eventstamp is older than horizon from the written
// snapshot (grounded on the teacher's internal/compact JSONL compaction
// of closed issues). The live DocumentMap is never touched by this.
func CompactTombstones(horizon string) func(adapter.Snapshot) adapter.Snapshot {
	return func(snap adapter.Snapshot) adapter.Snapshot {
		out := make(adapter.Snapshot, 0, len(snap))
		for _, e := range snap {
			if encoding.IsTombstone(e.Value) {
				if es := encoding.AsField(e.Value[encoding.DeletedKey]).Eventstamp; es < horizon {
					continue
				}
			}
			out = append(out, e)
		}
		return out
	}
}
