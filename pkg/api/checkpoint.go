package api

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrThreadNotFound is returned by stores when a thread has no checkpoints.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrStepNotFound is returned by stores when a thread exists but has no
	// checkpoint for the requested step.
	ErrStepNotFound = errors.New("step not found")
)

// Checkpoint is the authoritative record of a thread's progress between
// super-steps: the state's key/value entries, the step number, and when it
// was written. Reducers are not serializable; the runtime reattaches them
// from the current graph when a checkpoint is loaded.
type Checkpoint struct {
	ThreadID  string
	Step      int
	Values    map[string]any
	Timestamp time.Time
	Metadata  map[string]any
}

// Store persists one checkpoint per (thread, step).
//
// Implementations must persist a snapshot uncoupled from the caller's
// in-memory state, so later merges never mutate persisted data, and must
// overwrite any prior entry for the same (thread, step) so a retried save is
// idempotent. Saves and loads for different threads are independent; for the
// same thread they are serialized.
//
// Note that one run writes a single checkpoint per step using a
// representative state; with parallel branches carrying divergent states the
// representative is not necessarily the union of all branches.
type Store interface {
	// Save durably persists values for (threadID, step), replacing any prior
	// entry for that pair.
	Save(ctx context.Context, threadID string, values map[string]any, step int, metadata map[string]any) error

	// Load returns the checkpoint with the highest step for threadID, or
	// ErrThreadNotFound.
	Load(ctx context.Context, threadID string) (*Checkpoint, error)

	// LoadStep returns the checkpoint for the exact step, ErrStepNotFound if
	// the thread exists without that step, or ErrThreadNotFound.
	LoadStep(ctx context.Context, threadID string, step int) (*Checkpoint, error)

	// ListThreads returns all known thread ids, sorted.
	ListThreads(ctx context.Context) ([]string, error)

	// ListSteps returns the ascending step numbers recorded for threadID.
	ListSteps(ctx context.Context, threadID string) ([]int, error)

	// Delete removes every checkpoint for threadID. Deleting an unknown
	// thread is a no-op.
	Delete(ctx context.Context, threadID string) error
}
