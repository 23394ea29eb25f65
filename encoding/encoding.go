// Package encoding converts between user documents (plain
// map[string]any trees) and the EncodedDocument tagged-sum form the merge
// kernel operates on. Encoding is the only place that decides what is a
// leaf (a Field) versus a nested node (a Document); everything downstream
// treats the tree generically.
package encoding

// DeletedKey is the reserved top-level key carrying the tombstone marker.
const DeletedKey = "__deleted"

// Field is the atomic unit of LWW merge: a value tagged with the
// eventstamp at which it was last written.
type Field struct {
	Value      any    `json:"value"`
	Eventstamp string `json:"eventstamp"`
}

// Document is a recursively nested mapping from string keys to either a
// Field (leaf) or another Document (node). Plain arrays, primitives, and
// null are always leaves; only plain-object maps recurse.
type Document map[string]any

// IsField reports whether x is an encoded Field rather than a nested
// Document. Accepts both the concrete Field type (produced by Encode) and
// a map[string]any with exactly the "value"/"eventstamp" keys (as would
// arrive after a JSON round-trip through encoding/json into generic maps).
func IsField(x any) bool {
	switch v := x.(type) {
	case Field:
		return true
	case *Field:
		return v != nil
	case map[string]any:
		if len(v) != 2 {
			return false
		}
		_, hasValue := v["value"]
		es, hasES := v["eventstamp"]
		if !hasValue || !hasES {
			return false
		}
		_, ok := es.(string)
		return ok
	default:
		return false
	}
}

// AsField normalizes x (a Field, *Field, or a generic map[string]any in
// the same shape) into a Field value. Callers should check IsField first.
func AsField(x any) Field {
	switch v := x.(type) {
	case Field:
		return v
	case *Field:
		return *v
	case map[string]any:
		return Field{Value: v["value"], Eventstamp: v["eventstamp"].(string)}
	default:
		return Field{}
	}
}

// isPlainObject reports whether v is a nested document node: either a
// user-supplied map[string]any, or an already-encoded Document.
func isPlainObject(v any) bool {
	switch v.(type) {
	case map[string]any, Document:
		return true
	default:
		return false
	}
}

func asMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case Document:
		return map[string]any(m)
	default:
		return nil
	}
}

// Encode walks doc depth-first, producing an EncodedDocument. Every leaf
// value (primitive, array, null, or non-plain-object) is tagged with
// eventstamp; every plain-object map is recursed into instead.
func Encode(doc map[string]any, eventstamp string) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		if isPlainObject(v) {
			out[k] = Encode(asMap(v), eventstamp)
		} else {
			out[k] = Field{Value: v, Eventstamp: eventstamp}
		}
	}
	return out
}

// Decode is the inverse of Encode: it recursively unwraps Fields back into
// plain values and drops the DeletedKey tombstone marker from the result.
func Decode(doc Document) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == DeletedKey {
			continue
		}
		if IsField(v) {
			out[k] = AsField(v).Value
		} else if isPlainObject(v) {
			out[k] = Decode(toDocument(v))
		} else if nested, ok := v.(Document); ok {
			out[k] = Decode(nested)
		} else {
			out[k] = v
		}
	}
	return out
}

func toDocument(v any) Document {
	switch d := v.(type) {
	case Document:
		return d
	case map[string]any:
		return Document(d)
	default:
		return nil
	}
}

// IsTombstone reports whether doc carries a __deleted field with value
// true.
func IsTombstone(doc Document) bool {
	v, ok := doc[DeletedKey]
	if !ok {
		return false
	}
	if !IsField(v) {
		return false
	}
	b, _ := AsField(v).Value.(bool)
	return b
}

// Tombstone returns the EncodedField a delete() operation writes into the
// __deleted key.
func Tombstone(eventstamp string) Field {
	return Field{Value: true, Eventstamp: eventstamp}
}
