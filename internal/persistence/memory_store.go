package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/petrijr/grafo/pkg/api"
)

// MemoryStore is a goroutine-safe Store backed by maps. Checkpoints are
// deep-copied on save and on load, so callers can keep merging their state
// without disturbing persisted entries.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]map[int]*api.Checkpoint
}

var _ api.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string]map[int]*api.Checkpoint)}
}

func (s *MemoryStore) Save(ctx context.Context, threadID string, values map[string]any, step int, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps, ok := s.threads[threadID]
	if !ok {
		steps = make(map[int]*api.Checkpoint)
		s.threads[threadID] = steps
	}
	steps[step] = &api.Checkpoint{
		ThreadID:  threadID,
		Step:      step,
		Values:    api.CloneValues(values),
		Timestamp: time.Now().UTC(),
		Metadata:  api.CloneValues(metadata),
	}
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, threadID string) (*api.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps, ok := s.threads[threadID]
	if !ok || len(steps) == 0 {
		return nil, api.ErrThreadNotFound
	}

	latest := -1
	for step := range steps {
		if step > latest {
			latest = step
		}
	}
	return copyCheckpoint(steps[latest]), nil
}

func (s *MemoryStore) LoadStep(ctx context.Context, threadID string, step int) (*api.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps, ok := s.threads[threadID]
	if !ok || len(steps) == 0 {
		return nil, api.ErrThreadNotFound
	}
	cp, ok := steps[step]
	if !ok {
		return nil, api.ErrStepNotFound
	}
	return copyCheckpoint(cp), nil
}

func (s *MemoryStore) ListThreads(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.threads))
	for id := range s.threads {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) ListSteps(ctx context.Context, threadID string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps, ok := s.threads[threadID]
	if !ok {
		return nil, api.ErrThreadNotFound
	}
	out := make([]int, 0, len(steps))
	for step := range steps {
		out = append(out, step)
	}
	sort.Ints(out)
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.threads, threadID)
	return nil
}

func copyCheckpoint(cp *api.Checkpoint) *api.Checkpoint {
	return &api.Checkpoint{
		ThreadID:  cp.ThreadID,
		Step:      cp.Step,
		Values:    api.CloneValues(cp.Values),
		Timestamp: cp.Timestamp,
		Metadata:  api.CloneValues(cp.Metadata),
	}
}

// MemoryHistory is a goroutine-safe, append-only run event log.
type MemoryHistory struct {
	mu     sync.Mutex
	events map[string][]api.RunEvent
}

var _ api.History = (*MemoryHistory)(nil)

// NewMemoryHistory creates an empty MemoryHistory.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{events: make(map[string][]api.RunEvent)}
}

func (h *MemoryHistory) Append(ctx context.Context, ev api.RunEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events[ev.ThreadID] = append(h.events[ev.ThreadID], ev)
	return nil
}

func (h *MemoryHistory) List(ctx context.Context, threadID string) ([]api.RunEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	evs := h.events[threadID]
	out := make([]api.RunEvent, len(evs))
	copy(out, evs)
	return out, nil
}
