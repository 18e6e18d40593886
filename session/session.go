// Package session persists the ordered checkpoint log of each
// conversation thread.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/finchat/finchat/generator"
)

// ErrStoreUnavailable wraps persistence failures so callers can fail the
// turn fast without inspecting driver errors.
var ErrStoreUnavailable = errors.New("session store unavailable")

// Checkpoint is one persisted snapshot of a turn's message sequence plus
// the state-machine node that produced it. Sequence keys are assigned by
// the store, monotonically increasing per thread.
type Checkpoint struct {
	Sequence       int64               `json:"sequence"`
	ParentSequence int64               `json:"parent_sequence"`
	Node           string              `json:"node"`
	Messages       []generator.Message `json:"messages"`
	Metadata       map[string]string   `json:"metadata,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

type Store interface {
	// Append atomically appends checkpoints to a thread in order. Thread
	// identifiers are generated by the caller before the first append.
	Append(ctx context.Context, threadId string, checkpoints []Checkpoint) error
	// Load returns a thread's checkpoints ordered by sequence key.
	Load(ctx context.Context, threadId string) ([]Checkpoint, error)
	ListThreads(ctx context.Context) ([]string, error)
	// Delete removes all of a thread's checkpoints, atomically.
	Delete(ctx context.Context, threadId string) error
}
