package plugin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/untoldecay/bdstore/adapter"
	"github.com/untoldecay/bdstore/internal/debugging"
	"github.com/untoldecay/bdstore/store"
)

// SyncOptions configures Sync (§6). PullIntervalMs defaults to 300000
// (5 minutes) and PushOnChange defaults to true.
type SyncOptions struct {
	PullIntervalMs int
	PushOnChange   bool
	pushOnChangeSet bool
	Preprocessor   adapter.Preprocessor
}

// WithPushOnChange explicitly sets PushOnChange, distinguishing "false"
// from "unset" since the zero value of bool can't.
func (o SyncOptions) WithPushOnChange(v bool) SyncOptions {
	o.PushOnChange = v
	o.pushOnChangeSet = true
	return o
}

func (o SyncOptions) pullInterval() time.Duration {
	if o.PullIntervalMs > 0 {
		return time.Duration(o.PullIntervalMs) * time.Millisecond
	}
	return 5 * time.Minute
}

func (o SyncOptions) pushOnChange() bool {
	if o.pushOnChangeSet {
		return o.PushOnChange
	}
	return true
}

// Sync builds a store.PluginFactory that pulls a remote Snapshot on init
// and on a periodic timer, merging each pull through the store's normal
// merge path, and (when PushOnChange) pushes store.Snapshot() after every
// local Change. Grounded on cmd/bd/sync.go's pull -> merge -> push flow.
func Sync(syncer adapter.Syncer, opts SyncOptions) store.PluginFactory {
	return func(s *store.Store) store.Handle {
		var (
			mu     sync.Mutex
			ticker *time.Ticker
			stop   chan struct{}
			wg     sync.WaitGroup
		)

		pullOnce := func(ctx context.Context) error {
			snap, err := syncer.Pull(ctx)
			if err != nil {
				return fmt.Errorf("sync: pull: %w", err)
			}
			if opts.Preprocessor != nil {
				snap, err = opts.Preprocessor.Preprocess(ctx, adapter.DirectionPull, snap)
				if err != nil {
					return fmt.Errorf("sync: preprocess pull: %w", err)
				}
			}
			_, errs := s.Merge(fromSnapshot(snap))
			if len(errs) > 0 {
				debugging.Logf("sync: %d entries rejected on pull", len(errs))
			}
			return nil
		}

		pushOnce := func(ctx context.Context) error {
			snap := toSnapshot(s.Snapshot())
			var err error
			if opts.Preprocessor != nil {
				snap, err = opts.Preprocessor.Preprocess(ctx, adapter.DirectionPush, snap)
				if err != nil {
					return fmt.Errorf("sync: preprocess push: %w", err)
				}
			}
			if err := syncer.Push(ctx, snap); err != nil {
				return fmt.Errorf("sync: push: %w", err)
			}
			return nil
		}

		var hooks *store.Hooks
		if opts.pushOnChange() {
			hooks = &store.Hooks{
				OnPut:    func([]store.KV) { go func() { _ = pushOnce(context.Background()) }() },
				OnPatch:  func([]store.KV) { go func() { _ = pushOnce(context.Background()) }() },
				OnDelete: func([]string) { go func() { _ = pushOnce(context.Background()) }() },
			}
		}

		return store.Handle{
			Init: func(ctx context.Context) error {
				if err := pullOnce(ctx); err != nil {
					debugging.Logf("%v", err)
				}

				mu.Lock()
				ticker = time.NewTicker(opts.pullInterval())
				stop = make(chan struct{})
				mu.Unlock()

				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						select {
						case <-ticker.C:
							if err := pullOnce(context.Background()); err != nil {
								debugging.Logf("%v", err)
							}
						case <-stop:
							return
						}
					}
				}()
				return nil
			},
			Dispose: func(ctx context.Context) error {
				mu.Lock()
				if ticker != nil {
					ticker.Stop()
				}
				if stop != nil {
					close(stop)
				}
				mu.Unlock()
				wg.Wait()
				return nil
			},
			Hooks: hooks,
		}
	}
}
