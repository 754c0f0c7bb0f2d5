package api

import (
	"context"
	"sync"
	"time"
)

// RunEventType identifies a run history event.
type RunEventType string

const (
	EventGraphStarted     RunEventType = "graph.started"
	EventGraphCompleted   RunEventType = "graph.completed"
	EventNodeStarted      RunEventType = "node.started"
	EventNodeCompleted    RunEventType = "node.completed"
	EventNodeFailed       RunEventType = "node.failed"
	EventStepCompleted    RunEventType = "step.completed"
	EventInterruptRaised  RunEventType = "interrupt.raised"
	EventCheckpointSaved  RunEventType = "checkpoint.saved"
	EventCommandProcessed RunEventType = "command.processed"
)

// RunEvent is a minimal append-only history record for audit/debugging.
// It is intentionally small and stable; richer history can be layered later.
type RunEvent struct {
	ThreadID string
	At       time.Time
	Type     RunEventType

	// Optional context.
	Node string
	Step int

	// Small, human-oriented details (e.g. interrupt message, error string).
	// Keep this low-volume: do NOT dump state payloads here.
	Detail string
}

// History is an append-only store for run events.
type History interface {
	Append(ctx context.Context, ev RunEvent) error
	List(ctx context.Context, threadID string) ([]RunEvent, error)
}

// NoopHistory discards all events.
type NoopHistory struct{}

func (NoopHistory) Append(ctx context.Context, ev RunEvent) error { return nil }
func (NoopHistory) List(ctx context.Context, threadID string) ([]RunEvent, error) {
	return nil, nil
}

// HistoryObserver records run lifecycle events into a History. One
// HistoryObserver serves one run at a time: the thread id is captured from
// the graph_start event.
type HistoryObserver struct {
	NoopObserver

	history History

	mu       sync.Mutex
	threadID string
}

// NewHistoryObserver creates an observer appending to h.
func NewHistoryObserver(h History) *HistoryObserver {
	if h == nil {
		h = NoopHistory{}
	}
	return &HistoryObserver{history: h}
}

func (o *HistoryObserver) record(ctx context.Context, ev RunEvent) {
	o.mu.Lock()
	ev.ThreadID = o.threadID
	o.mu.Unlock()
	ev.At = time.Now()
	_ = o.history.Append(ctx, ev)
}

func (o *HistoryObserver) OnGraphStart(ctx context.Context, graph string, initial State, threadID string) {
	o.mu.Lock()
	o.threadID = threadID
	o.mu.Unlock()
	o.record(ctx, RunEvent{Type: EventGraphStarted, Detail: graph})
}

func (o *HistoryObserver) OnGraphEnd(ctx context.Context, final State, threadID string) {
	o.record(ctx, RunEvent{Type: EventGraphCompleted})
}

func (o *HistoryObserver) OnNodeStart(ctx context.Context, node string, before State, step int) {
	o.record(ctx, RunEvent{Type: EventNodeStarted, Node: node, Step: step})
}

func (o *HistoryObserver) OnNodeEnd(ctx context.Context, node string, before, after State, result NodeResult, d time.Duration, step int) {
	o.record(ctx, RunEvent{Type: EventNodeCompleted, Node: node, Step: step})
}

func (o *HistoryObserver) OnNodeError(ctx context.Context, node string, before State, err error, step int) {
	o.record(ctx, RunEvent{Type: EventNodeFailed, Node: node, Step: step, Detail: err.Error()})
}

func (o *HistoryObserver) OnStepComplete(ctx context.Context, step int, activeNodes []string, state State, d time.Duration) {
	o.record(ctx, RunEvent{Type: EventStepCompleted, Step: step})
}

func (o *HistoryObserver) OnCommandProcessed(ctx context.Context, node string, cmd Command, step int) {
	o.record(ctx, RunEvent{Type: EventCommandProcessed, Node: node, Step: step, Detail: cmd.Dest})
}

func (o *HistoryObserver) OnInterrupt(ctx context.Context, node string, intr Interrupt, step int) {
	o.record(ctx, RunEvent{Type: EventInterruptRaised, Node: node, Step: step, Detail: intr.Message})
}

func (o *HistoryObserver) OnCheckpointSaved(ctx context.Context, threadID string, step int) {
	o.record(ctx, RunEvent{Type: EventCheckpointSaved, Step: step})
}
