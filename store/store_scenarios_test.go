package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/untoldecay/bdstore/encoding"
	"github.com/untoldecay/bdstore/merge"
)

type syncCounter struct {
	mu sync.Mutex
	n  int
}

func (c *syncCounter) inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *syncCounter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func waitNothing(t *testing.T) {
	t.Helper()
	time.Sleep(30 * time.Millisecond)
}

// Scenario 1: put then decode.
func TestScenarioPutThenDecode(t *testing.T) {
	s := newTestStore(t)

	ch := waitForChange(s, func() {
		s.Put("u1", map[string]any{"name": "Alice"})
	})

	values := s.Values()
	if len(values) != 1 || values[0].Key != "u1" || values[0].Value["name"] != "Alice" {
		t.Fatalf("Values() = %+v, want [(u1, {name: Alice})]", values)
	}
	if len(ch.Puts) != 1 || ch.Puts[0].Key != "u1" {
		t.Fatalf("Change = %+v, want a single put for u1", ch)
	}
}

// Scenario 2: patch merges fields.
func TestScenarioPatchMergesFields(t *testing.T) {
	s := newTestStore(t)
	s.Put("u1", map[string]any{"name": "Alice"})

	ch := waitForChange(s, func() {
		s.Patch("u1", map[string]any{"age": 30.0})
	})

	v, _ := s.Get("u1")
	if v["name"] != "Alice" || v["age"] != 30.0 {
		t.Fatalf("Get(u1) = %+v, want {name: Alice, age: 30}", v)
	}
	if len(ch.Patches) != 1 || ch.Patches[0].Key != "u1" {
		t.Fatalf("Change = %+v, want a single patch for u1", ch)
	}
}

// Scenario 3: delete hides from values() but the snapshot keeps the
// tombstone.
func TestScenarioDeleteHidesFromValues(t *testing.T) {
	s := newTestStore(t)
	s.Put("u1", map[string]any{"name": "Alice"})
	s.Patch("u1", map[string]any{"age": 30.0})
	s.Delete("u1")

	if len(s.Values()) != 0 {
		t.Fatalf("Values() = %+v, want empty after delete", s.Values())
	}

	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].Key != "u1" {
		t.Fatalf("Snapshot() = %+v, want a single entry for u1", snap)
	}
	if !encoding.IsTombstone(snap[0].Doc) {
		t.Fatal("expected u1's snapshot entry to be tombstoned")
	}
}

// Scenario 4: LWW across replicas is merge-order independent.
func TestScenarioLWWAcrossReplicas(t *testing.T) {
	es1 := "2026-01-01T00:00:00.000Z|00000001"
	es2 := "2026-01-01T00:00:00.000Z|00000002"

	a := encoding.Encode(map[string]any{"status": "active"}, es1)
	b := encoding.Encode(map[string]any{"status": "archived"}, es2)

	ab, _, err := merge.MergeDoc(a, b)
	if err != nil {
		t.Fatalf("MergeDoc(a, b): %v", err)
	}
	ba, _, err := merge.MergeDoc(b, a)
	if err != nil {
		t.Fatalf("MergeDoc(b, a): %v", err)
	}

	if encoding.Decode(ab)["status"] != "archived" {
		t.Fatalf("MergeDoc(a, b).status = %v, want archived", encoding.Decode(ab)["status"])
	}
	if encoding.Decode(ba)["status"] != "archived" {
		t.Fatalf("MergeDoc(b, a).status = %v, want archived", encoding.Decode(ba)["status"])
	}
}

// Scenario 6: transaction batching coalesces into one Change, last op per
// key wins (see DESIGN.md open-question decision 4).
func TestScenarioTransactionBatching(t *testing.T) {
	s := newTestStore(t)

	ch := waitForChange(s, func() {
		tx := s.Begin()
		tx.Put("a", map[string]any{"v": 1.0})
		tx.Put("b", map[string]any{"v": 2.0})
		tx.Delete("a")
		tx.Commit()
	})

	if len(ch.Puts) != 1 || ch.Puts[0].Key != "b" {
		t.Fatalf("Puts = %+v, want just b (a's put is superseded by its delete)", ch.Puts)
	}
	if len(ch.Deletes) != 1 || ch.Deletes[0] != "a" {
		t.Fatalf("Deletes = %+v, want [a]", ch.Deletes)
	}
}

func TestMergeIngestClassifiesPutPatchDelete(t *testing.T) {
	s := newTestStore(t)
	s.Put("u1", map[string]any{"name": "Alice"})

	es := "2026-01-01T00:00:00.000Z|00000005"
	newKeyDoc := encoding.Encode(map[string]any{"name": "Bob"}, es)
	patchDoc := encoding.Document{"age": encoding.Field{Value: 30.0, Eventstamp: es}}
	deleteDoc := encoding.Document{encoding.DeletedKey: encoding.Tombstone(es)}

	ch, errs := s.Merge([]merge.Entry{
		{Key: "u2", Doc: newKeyDoc},
		{Key: "u1", Doc: patchDoc},
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(ch.Puts) != 1 || ch.Puts[0].Key != "u2" {
		t.Fatalf("expected u2 classified as a put, got %+v", ch)
	}
	if len(ch.Patches) != 1 || ch.Patches[0].Key != "u1" {
		t.Fatalf("expected u1 classified as a patch, got %+v", ch)
	}

	ch2, errs2 := s.Merge([]merge.Entry{{Key: "u1", Doc: deleteDoc}})
	if len(errs2) != 0 {
		t.Fatalf("unexpected errors: %v", errs2)
	}
	if len(ch2.Deletes) != 1 || ch2.Deletes[0] != "u1" {
		t.Fatalf("expected u1 classified as a delete, got %+v", ch2)
	}
}

func TestMergeSilentSuppressesChange(t *testing.T) {
	s := newTestStore(t)

	var mu syncCounter
	unsub := s.Subscribe(ChangeListenerFunc(func(Change) { mu.inc() }))
	defer unsub()

	es := "2026-01-01T00:00:00.000Z|00000001"
	doc := encoding.Encode(map[string]any{"name": "Alice"}, es)
	s.Merge([]merge.Entry{{Key: "u1", Doc: doc}}, Silent())

	if _, ok := s.Get("u1"); !ok {
		t.Fatal("expected silent merge to still apply to the map")
	}
	// give the dispatch goroutine a beat; nothing should have arrived.
	waitNothing(t)
	if mu.get() != 0 {
		t.Fatalf("expected 0 Change deliveries for a silent merge, got %d", mu.get())
	}
}

func TestMergeRejectsMalformedEventstamp(t *testing.T) {
	s := newTestStore(t)
	bad := encoding.Document{"x": encoding.Field{Value: 1, Eventstamp: "not-an-eventstamp"}}

	_, errs := s.Merge([]merge.Entry{{Key: "u1", Doc: bad}})
	if len(errs) != 1 {
		t.Fatalf("expected 1 rejected entry, got %d", len(errs))
	}
	if _, ok := s.Get("u1"); ok {
		t.Fatal("rejected entry must not be applied")
	}
}

func TestPluginInitAndDisposeOrder(t *testing.T) {
	s := newTestStore(t)

	var order []string
	s.Use(func(*Store) Handle {
		return Handle{
			Init:    func(context.Context) error { order = append(order, "init-1"); return nil },
			Dispose: func(context.Context) error { order = append(order, "dispose-1"); return nil },
		}
	})
	s.Use(func(*Store) Handle {
		return Handle{
			Init:    func(context.Context) error { order = append(order, "init-2"); return nil },
			Dispose: func(context.Context) error { order = append(order, "dispose-2"); return nil },
		}
	})

	ctx := context.Background()
	if err := s.InitPlugins(ctx); err != nil {
		t.Fatalf("InitPlugins: %v", err)
	}
	if err := s.DisposePlugins(ctx); err != nil {
		t.Fatalf("DisposePlugins: %v", err)
	}

	want := []string{"init-1", "init-2", "dispose-2", "dispose-1"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestPluginHooksFireFromAggregatedChangeOnly(t *testing.T) {
	s := newTestStore(t)

	var puts, patches, deletes int
	s.Use(func(*Store) Handle {
		return Handle{
			Hooks: &Hooks{
				OnPut:    func([]KV) { puts++ },
				OnPatch:  func([]KV) { patches++ },
				OnDelete: func([]string) { deletes++ },
			},
		}
	})
	if err := s.InitPlugins(context.Background()); err != nil {
		t.Fatalf("InitPlugins: %v", err)
	}

	waitForChange(s, func() { s.Put("a", map[string]any{"x": 1.0}) })
	waitForChange(s, func() { s.Patch("a", map[string]any{"x": 2.0}) })
	waitForChange(s, func() { s.Delete("a") })

	if puts != 1 || patches != 1 || deletes != 1 {
		t.Fatalf("hook counts = puts:%d patches:%d deletes:%d, want 1 each", puts, patches, deletes)
	}
}
