package adapter

import "context"

// Backend is the KV back-end contract persistence plugins read and write
// whole-collection Snapshots against (§6). Get's second return reports
// absence, not error — a never-before-seen collection key is a normal
// first-run state, not a failure.
type Backend interface {
	Get(ctx context.Context, key string) (Snapshot, bool, error)
	Set(ctx context.Context, key string, value Snapshot) error
}
