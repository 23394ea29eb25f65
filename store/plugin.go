package store

import "context"

// Hooks are the optional callbacks a plugin Handle can register to
// observe the same vectors carried on a Change event. They fire only from
// the aggregated Change, never from a partial/uncommitted transaction.
type Hooks struct {
	OnPut    func([]KV)
	OnPatch  func([]KV)
	OnDelete func([]string)
}

// Handle is what a PluginFactory returns: optional lifecycle methods and
// optional hooks. Both Init and Dispose may be nil.
type Handle struct {
	Init    func(ctx context.Context) error
	Dispose func(ctx context.Context) error
	Hooks   *Hooks
}

// PluginFactory captures a store so it can build a Handle; the Store
// owns every Handle it's given, and a plugin only holds the store
// reference for the duration of its hook callbacks (§4.7, §9).
type PluginFactory func(*Store) Handle

// Use calls factory with this store and captures the resulting Handle.
// Init/Dispose run later, in registration order (reverse for Dispose),
// when InitPlugins/DisposePlugins are called.
func (s *Store) Use(factory PluginFactory) {
	h := factory(s)
	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.mu.Unlock()
}

// InitPlugins runs every registered Handle's Init sequentially, in
// registration order, stopping at the first error.
func (s *Store) InitPlugins(ctx context.Context) error {
	s.mu.RLock()
	handles := append([]Handle(nil), s.handles...)
	s.mu.RUnlock()

	for _, h := range handles {
		if h.Init == nil {
			continue
		}
		if err := h.Init(ctx); err != nil {
			return err
		}
	}
	return nil
}

// DisposePlugins runs every registered Handle's Dispose in reverse
// registration order, collecting (but not stopping on) the first error.
func (s *Store) DisposePlugins(ctx context.Context) error {
	s.mu.RLock()
	handles := append([]Handle(nil), s.handles...)
	s.mu.RUnlock()

	var firstErr error
	for i := len(handles) - 1; i >= 0; i-- {
		if handles[i].Dispose == nil {
			continue
		}
		if err := handles[i].Dispose(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
