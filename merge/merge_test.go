package merge

import (
	"errors"
	"testing"

	"github.com/untoldecay/bdstore/encoding"
)

func field(v any, es string) encoding.Field {
	return encoding.Field{Value: v, Eventstamp: es}
}

func TestMergeFieldHigherEventstampWins(t *testing.T) {
	a := field("a", "2026-01-01T00:00:00.000Z|00000001")
	b := field("b", "2026-01-01T00:00:00.000Z|00000002")

	if got := MergeField(a, b); got != b {
		t.Fatalf("MergeField(a, b) = %v, want b", got)
	}
	if got := MergeField(b, a); got != b {
		t.Fatalf("MergeField(b, a) = %v, want b regardless of argument order", got)
	}
}

func TestMergeFieldTieGoesToA(t *testing.T) {
	a := field("a", "es")
	b := field("b", "es")
	if got := MergeField(a, b); got != a {
		t.Fatalf("MergeField(a, b) on tie = %v, want a", got)
	}
}

func TestMergeDocFieldByField(t *testing.T) {
	a := encoding.Document{
		"title": field("old title", "2026-01-01T00:00:00.000Z|00000001"),
		"count": field(1, "2026-01-01T00:00:00.000Z|00000001"),
	}
	b := encoding.Document{
		"title": field("new title", "2026-01-01T00:00:00.000Z|00000002"),
		"count": field(1, "2026-01-01T00:00:00.000Z|00000000"),
	}

	merged, changed, err := MergeDoc(a, b)
	if err != nil {
		t.Fatalf("MergeDoc: %v", err)
	}
	if !changed {
		t.Fatal("expected changed = true")
	}
	if encoding.AsField(merged["title"]).Value != "new title" {
		t.Fatalf("title = %v, want new title", merged["title"])
	}
	if encoding.AsField(merged["count"]).Value != 1 {
		t.Fatalf("count = %v, want 1 (a's field should win)", merged["count"])
	}
}

func TestMergeDocRecursesIntoNestedDocuments(t *testing.T) {
	a := encoding.Document{
		"profile": encoding.Document{
			"name": field("alice", "2026-01-01T00:00:00.000Z|00000001"),
		},
	}
	b := encoding.Document{
		"profile": encoding.Document{
			"name": field("bob", "2026-01-01T00:00:00.000Z|00000002"),
		},
	}

	merged, changed, err := MergeDoc(a, b)
	if err != nil {
		t.Fatalf("MergeDoc: %v", err)
	}
	if !changed {
		t.Fatal("expected changed = true")
	}
	profile := merged["profile"].(encoding.Document)
	if encoding.AsField(profile["name"]).Value != "bob" {
		t.Fatalf("name = %v, want bob", profile["name"])
	}
}

func TestMergeDocIdempotent(t *testing.T) {
	x := encoding.Document{
		"title": field("x", "2026-01-01T00:00:00.000Z|00000001"),
		"nested": encoding.Document{
			"flag": field(true, "2026-01-01T00:00:00.000Z|00000001"),
		},
	}

	merged, changed, err := MergeDoc(x, x)
	if err != nil {
		t.Fatalf("MergeDoc(x, x): %v", err)
	}
	if changed {
		t.Fatal("expected changed = false when merging a document with itself")
	}
	if encoding.AsField(merged["title"]).Value != "x" {
		t.Fatalf("title = %v, want x", merged["title"])
	}
}

func TestMergeDocStructureMismatch(t *testing.T) {
	a := encoding.Document{"x": field(1, "es1")}
	b := encoding.Document{"x": encoding.Document{"y": field(2, "es2")}}

	_, _, err := MergeDoc(a, b)
	if err == nil {
		t.Fatal("expected structure mismatch error")
	}
	if !errors.Is(err, ErrStructureMismatch) {
		t.Fatalf("expected errors.Is(err, ErrStructureMismatch), got %v", err)
	}
}

func TestMergeDocUnionsDisjointKeys(t *testing.T) {
	a := encoding.Document{"x": field(1, "es1")}
	b := encoding.Document{"y": field(2, "es2")}

	merged, changed, err := MergeDoc(a, b)
	if err != nil {
		t.Fatalf("MergeDoc: %v", err)
	}
	if !changed {
		t.Fatal("expected changed = true when b contributes a new key")
	}
	if len(merged) != 2 {
		t.Fatalf("expected union of both sides, got %v", merged)
	}
}

func TestMergeDocCommutative(t *testing.T) {
	a := encoding.Document{
		"title": field("a", "2026-01-01T00:00:00.000Z|00000001"),
		"extra": field("only-a", "2026-01-01T00:00:00.000Z|00000001"),
	}
	b := encoding.Document{
		"title": field("b", "2026-01-01T00:00:00.000Z|00000002"),
		"more":  field("only-b", "2026-01-01T00:00:00.000Z|00000001"),
	}

	ab, _, err := MergeDoc(a, b)
	if err != nil {
		t.Fatalf("MergeDoc(a, b): %v", err)
	}
	ba, _, err := MergeDoc(b, a)
	if err != nil {
		t.Fatalf("MergeDoc(b, a): %v", err)
	}

	if encoding.AsField(ab["title"]).Value != encoding.AsField(ba["title"]).Value {
		t.Fatalf("merge must be commutative on the winning value: %v vs %v", ab["title"], ba["title"])
	}
}

func TestValidateEventstamp(t *testing.T) {
	valid := "2026-01-01T00:00:00.000Z|0000000a"
	if err := ValidateEventstamp(valid); err != nil {
		t.Fatalf("expected %q to validate, got %v", valid, err)
	}

	invalid := "not-an-eventstamp"
	err := ValidateEventstamp(invalid)
	if err == nil {
		t.Fatal("expected malformed eventstamp to fail validation")
	}
	if !errors.Is(err, ErrMalformedEventstamp) {
		t.Fatalf("expected errors.Is(err, ErrMalformedEventstamp), got %v", err)
	}
}

func TestMergeBatch(t *testing.T) {
	current := []Entry{
		{Key: "a", Doc: encoding.Document{"v": field(1, "2026-01-01T00:00:00.000Z|00000001")}},
		{Key: "b", Doc: encoding.Document{"v": field(2, "2026-01-01T00:00:00.000Z|00000001")}},
	}
	updates := []Entry{
		{Key: "a", Doc: encoding.Document{"v": field(9, "2026-01-01T00:00:00.000Z|00000002")}},
		{Key: "c", Doc: encoding.Document{"v": field(3, "2026-01-01T00:00:00.000Z|00000001")}},
	}

	results, anyChanged, err := MergeBatch(current, updates)
	if err != nil {
		t.Fatalf("MergeBatch: %v", err)
	}
	if !anyChanged {
		t.Fatal("expected anyChanged = true")
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results (a, b, c), got %d", len(results))
	}

	byKey := make(map[string]BatchResult, len(results))
	for _, r := range results {
		byKey[r.Key] = r
	}

	if !byKey["a"].Changed {
		t.Fatal("a should be marked changed (update wins)")
	}
	if byKey["b"].Changed {
		t.Fatal("b should be unchanged (no update)")
	}
	if !byKey["c"].Changed {
		t.Fatal("c should be marked changed (new from updates)")
	}

	order := []string{results[0].Key, results[1].Key, results[2].Key}
	if order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("expected current-then-new-updates order, got %v", order)
	}
}

func TestMergeBatchPropagatesStructureMismatch(t *testing.T) {
	current := []Entry{{Key: "a", Doc: encoding.Document{"x": field(1, "es1")}}}
	updates := []Entry{{Key: "a", Doc: encoding.Document{"x": encoding.Document{"y": field(2, "es2")}}}}

	_, _, err := MergeBatch(current, updates)
	if err == nil || !errors.Is(err, ErrStructureMismatch) {
		t.Fatalf("expected structure mismatch propagated, got %v", err)
	}
}
