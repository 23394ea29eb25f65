package adapter

import "context"

// Direction identifies which leg of a sync a Preprocess call is
// transforming.
type Direction string

const (
	DirectionPush Direction = "push"
	DirectionPull Direction = "pull"
)

// Preprocessor optionally transforms a Snapshot on its way across the
// wire, letting callers layer encryption, compression, or field
// redaction over the wire form without the sync plugin or core knowing
// about it (§6).
type Preprocessor interface {
	Preprocess(ctx context.Context, dir Direction, data Snapshot) (Snapshot, error)
}

// PreprocessorFunc adapts a plain function to Preprocessor.
type PreprocessorFunc func(ctx context.Context, dir Direction, data Snapshot) (Snapshot, error)

// Preprocess implements Preprocessor.
func (f PreprocessorFunc) Preprocess(ctx context.Context, dir Direction, data Snapshot) (Snapshot, error) {
	return f(ctx, dir, data)
}

// Syncer is the remote-sync contract (§6): push sends a full snapshot,
// pull fetches one, and Preprocessor is optional (nil means "no
// transform").
type Syncer interface {
	Push(ctx context.Context, snapshot Snapshot) error
	Pull(ctx context.Context) (Snapshot, error)
}
