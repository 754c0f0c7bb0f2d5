package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives lifecycle callbacks from the runtime and from chat-model
// clients executing inside nodes.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay workflow execution. Observer callbacks
// may be invoked concurrently from multiple worker goroutines within one
// super-step. A panicking observer never reaches the scheduler: the runtime
// wraps the observer list with Recovered.
type Observer interface {
	// OnGraphStart is called once per run before the first super-step.
	OnGraphStart(ctx context.Context, graph string, initial State, threadID string)

	// OnGraphEnd is called exactly once per run, on success and on failure,
	// with the final (or last known) state.
	OnGraphEnd(ctx context.Context, final State, threadID string)

	// OnNodeStart is called before a node callable runs, with a snapshot of
	// the state it will receive.
	OnNodeStart(ctx context.Context, node string, before State, step int)

	// OnNodeEnd is called after a node callable returns, with the state
	// before, the state after applying the node's update, the raw result,
	// and the wall-clock duration.
	OnNodeEnd(ctx context.Context, node string, before, after State, result NodeResult, duration time.Duration, step int)

	// OnNodeError is called when a node callable fails; the run terminates
	// after this event and OnGraphEnd.
	OnNodeError(ctx context.Context, node string, before State, err error, step int)

	// OnStepComplete is called at each super-step barrier with the nodes
	// active in the next step and the step's representative state.
	OnStepComplete(ctx context.Context, step int, activeNodes []string, state State, duration time.Duration)

	// OnCommandProcessed is called when a Command result is applied.
	OnCommandProcessed(ctx context.Context, node string, cmd Command, step int)

	// OnInterrupt is called when a node raises an interrupt, before any
	// registered handler runs.
	OnInterrupt(ctx context.Context, node string, intr Interrupt, step int)

	// OnCheckpointSaved is called after the step's checkpoint is durably
	// written, before the next step begins.
	OnCheckpointSaved(ctx context.Context, threadID string, step int)

	// OnModelRequest and OnModelResponse are forwarded by chat-model clients
	// bound into chat nodes, keyed by the executing node's name.
	OnModelRequest(ctx context.Context, node string, messages []Message)
	OnModelResponse(ctx context.Context, node string, resp ChatResponse, err error)

	// OnShutdown is called when the run's observer list is released.
	OnShutdown(ctx context.Context)
}

// NoopObserver is an Observer that does nothing. Embed it to implement only
// the callbacks you care about.
type NoopObserver struct{}

func (NoopObserver) OnGraphStart(context.Context, string, State, string) {}
func (NoopObserver) OnGraphEnd(context.Context, State, string)           {}
func (NoopObserver) OnNodeStart(context.Context, string, State, int)     {}
func (NoopObserver) OnNodeEnd(context.Context, string, State, State, NodeResult, time.Duration, int) {
}
func (NoopObserver) OnNodeError(context.Context, string, State, error, int)              {}
func (NoopObserver) OnStepComplete(context.Context, int, []string, State, time.Duration) {}
func (NoopObserver) OnCommandProcessed(context.Context, string, Command, int)            {}
func (NoopObserver) OnInterrupt(context.Context, string, Interrupt, int)                 {}
func (NoopObserver) OnCheckpointSaved(context.Context, string, int)                      {}
func (NoopObserver) OnModelRequest(context.Context, string, []Message)                   {}
func (NoopObserver) OnModelResponse(context.Context, string, ChatResponse, error)        {}
func (NoopObserver) OnShutdown(context.Context)                                          {}

// CompositeObserver fans out events to multiple observers in order.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnGraphStart(ctx context.Context, graph string, initial State, threadID string) {
	for _, o := range c.observers {
		o.OnGraphStart(ctx, graph, initial, threadID)
	}
}

func (c *CompositeObserver) OnGraphEnd(ctx context.Context, final State, threadID string) {
	for _, o := range c.observers {
		o.OnGraphEnd(ctx, final, threadID)
	}
}

func (c *CompositeObserver) OnNodeStart(ctx context.Context, node string, before State, step int) {
	for _, o := range c.observers {
		o.OnNodeStart(ctx, node, before, step)
	}
}

func (c *CompositeObserver) OnNodeEnd(ctx context.Context, node string, before, after State, result NodeResult, d time.Duration, step int) {
	for _, o := range c.observers {
		o.OnNodeEnd(ctx, node, before, after, result, d, step)
	}
}

func (c *CompositeObserver) OnNodeError(ctx context.Context, node string, before State, err error, step int) {
	for _, o := range c.observers {
		o.OnNodeError(ctx, node, before, err, step)
	}
}

func (c *CompositeObserver) OnStepComplete(ctx context.Context, step int, activeNodes []string, state State, d time.Duration) {
	for _, o := range c.observers {
		o.OnStepComplete(ctx, step, activeNodes, state, d)
	}
}

func (c *CompositeObserver) OnCommandProcessed(ctx context.Context, node string, cmd Command, step int) {
	for _, o := range c.observers {
		o.OnCommandProcessed(ctx, node, cmd, step)
	}
}

func (c *CompositeObserver) OnInterrupt(ctx context.Context, node string, intr Interrupt, step int) {
	for _, o := range c.observers {
		o.OnInterrupt(ctx, node, intr, step)
	}
}

func (c *CompositeObserver) OnCheckpointSaved(ctx context.Context, threadID string, step int) {
	for _, o := range c.observers {
		o.OnCheckpointSaved(ctx, threadID, step)
	}
}

func (c *CompositeObserver) OnModelRequest(ctx context.Context, node string, messages []Message) {
	for _, o := range c.observers {
		o.OnModelRequest(ctx, node, messages)
	}
}

func (c *CompositeObserver) OnModelResponse(ctx context.Context, node string, resp ChatResponse, err error) {
	for _, o := range c.observers {
		o.OnModelResponse(ctx, node, resp, err)
	}
}

func (c *CompositeObserver) OnShutdown(ctx context.Context) {
	for _, o := range c.observers {
		o.OnShutdown(ctx)
	}
}

// Recovered wraps an observer so panics in its callbacks are logged to
// logger and suppressed instead of reaching the scheduler.
func Recovered(obs Observer, logger *slog.Logger) Observer {
	if obs == nil {
		return NoopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &recoveredObserver{inner: obs, logger: logger}
}

type recoveredObserver struct {
	inner  Observer
	logger *slog.Logger
}

func (r *recoveredObserver) guard(event string) {
	if p := recover(); p != nil {
		r.logger.Error("observer panic suppressed",
			slog.String("event", event),
			slog.Any("panic", p),
		)
	}
}

func (r *recoveredObserver) OnGraphStart(ctx context.Context, graph string, initial State, threadID string) {
	defer r.guard("graph_start")
	r.inner.OnGraphStart(ctx, graph, initial, threadID)
}

func (r *recoveredObserver) OnGraphEnd(ctx context.Context, final State, threadID string) {
	defer r.guard("graph_end")
	r.inner.OnGraphEnd(ctx, final, threadID)
}

func (r *recoveredObserver) OnNodeStart(ctx context.Context, node string, before State, step int) {
	defer r.guard("node_start")
	r.inner.OnNodeStart(ctx, node, before, step)
}

func (r *recoveredObserver) OnNodeEnd(ctx context.Context, node string, before, after State, result NodeResult, d time.Duration, step int) {
	defer r.guard("node_end")
	r.inner.OnNodeEnd(ctx, node, before, after, result, d, step)
}

func (r *recoveredObserver) OnNodeError(ctx context.Context, node string, before State, err error, step int) {
	defer r.guard("node_error")
	r.inner.OnNodeError(ctx, node, before, err, step)
}

func (r *recoveredObserver) OnStepComplete(ctx context.Context, step int, activeNodes []string, state State, d time.Duration) {
	defer r.guard("step_complete")
	r.inner.OnStepComplete(ctx, step, activeNodes, state, d)
}

func (r *recoveredObserver) OnCommandProcessed(ctx context.Context, node string, cmd Command, step int) {
	defer r.guard("command_processed")
	r.inner.OnCommandProcessed(ctx, node, cmd, step)
}

func (r *recoveredObserver) OnInterrupt(ctx context.Context, node string, intr Interrupt, step int) {
	defer r.guard("interrupt")
	r.inner.OnInterrupt(ctx, node, intr, step)
}

func (r *recoveredObserver) OnCheckpointSaved(ctx context.Context, threadID string, step int) {
	defer r.guard("checkpoint_saved")
	r.inner.OnCheckpointSaved(ctx, threadID, step)
}

func (r *recoveredObserver) OnModelRequest(ctx context.Context, node string, messages []Message) {
	defer r.guard("model_request")
	r.inner.OnModelRequest(ctx, node, messages)
}

func (r *recoveredObserver) OnModelResponse(ctx context.Context, node string, resp ChatResponse, err error) {
	defer r.guard("model_response")
	r.inner.OnModelResponse(ctx, node, resp, err)
}

func (r *recoveredObserver) OnShutdown(ctx context.Context) {
	defer r.guard("shutdown")
	r.inner.OnShutdown(ctx)
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs run lifecycle events
// using the provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnGraphStart(ctx context.Context, graph string, initial State, threadID string) {
	o.Logger.InfoContext(ctx, "graph_start",
		slog.String("graph", graph),
		slog.String("thread_id", threadID),
		slog.Int("keys", initial.Len()),
	)
}

func (o *LoggingObserver) OnGraphEnd(ctx context.Context, final State, threadID string) {
	o.Logger.InfoContext(ctx, "graph_end",
		slog.String("thread_id", threadID),
		slog.Int("keys", final.Len()),
	)
}

func (o *LoggingObserver) OnNodeStart(ctx context.Context, node string, before State, step int) {
	o.Logger.DebugContext(ctx, "node_start",
		slog.String("node", node),
		slog.Int("step", step),
	)
}

func (o *LoggingObserver) OnNodeEnd(ctx context.Context, node string, before, after State, result NodeResult, d time.Duration, step int) {
	o.Logger.DebugContext(ctx, "node_end",
		slog.String("node", node),
		slog.Int("step", step),
		slog.Duration("duration", d),
		slog.Int("result_kind", int(result.Kind())),
	)
}

func (o *LoggingObserver) OnNodeError(ctx context.Context, node string, before State, err error, step int) {
	o.Logger.ErrorContext(ctx, "node_error",
		slog.String("node", node),
		slog.Int("step", step),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnStepComplete(ctx context.Context, step int, activeNodes []string, state State, d time.Duration) {
	o.Logger.DebugContext(ctx, "step_complete",
		slog.Int("step", step),
		slog.Any("active_nodes", activeNodes),
		slog.Duration("duration", d),
	)
}

func (o *LoggingObserver) OnCommandProcessed(ctx context.Context, node string, cmd Command, step int) {
	o.Logger.DebugContext(ctx, "command_processed",
		slog.String("node", node),
		slog.String("dest", cmd.Dest),
		slog.Int("step", step),
	)
}

func (o *LoggingObserver) OnInterrupt(ctx context.Context, node string, intr Interrupt, step int) {
	o.Logger.InfoContext(ctx, "interrupt",
		slog.String("node", node),
		slog.String("message", intr.Message),
		slog.Int("step", step),
	)
}

func (o *LoggingObserver) OnCheckpointSaved(ctx context.Context, threadID string, step int) {
	o.Logger.DebugContext(ctx, "checkpoint_saved",
		slog.String("thread_id", threadID),
		slog.Int("step", step),
	)
}

func (o *LoggingObserver) OnModelRequest(ctx context.Context, node string, messages []Message) {
	o.Logger.DebugContext(ctx, "model_request",
		slog.String("node", node),
		slog.Int("messages", len(messages)),
	)
}

func (o *LoggingObserver) OnModelResponse(ctx context.Context, node string, resp ChatResponse, err error) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "model_response",
		slog.String("node", node),
		slog.Int("tool_calls", len(resp.ToolCalls)),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnShutdown(ctx context.Context) {
	o.Logger.DebugContext(ctx, "observer_shutdown")
}

// BasicMetrics collects simple counters and aggregate node durations. It
// implements Observer and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	graphsStarted   atomic.Int64
	graphsCompleted atomic.Int64
	nodesCompleted  atomic.Int64
	nodeErrors      atomic.Int64
	stepsCompleted  atomic.Int64
	interrupts      atomic.Int64
	totalNodeTime   atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	GraphsStarted   int64
	GraphsCompleted int64
	NodesCompleted  int64
	NodeErrors      int64
	StepsCompleted  int64
	Interrupts      int64
	AvgNodeDuration time.Duration
}

func (m *BasicMetrics) OnGraphStart(ctx context.Context, graph string, initial State, threadID string) {
	m.graphsStarted.Add(1)
}

func (m *BasicMetrics) OnGraphEnd(ctx context.Context, final State, threadID string) {
	m.graphsCompleted.Add(1)
}

func (m *BasicMetrics) OnNodeEnd(ctx context.Context, node string, before, after State, result NodeResult, d time.Duration, step int) {
	m.nodesCompleted.Add(1)
	m.totalNodeTime.Add(d.Nanoseconds())
}

func (m *BasicMetrics) OnNodeError(ctx context.Context, node string, before State, err error, step int) {
	m.nodeErrors.Add(1)
}

func (m *BasicMetrics) OnStepComplete(ctx context.Context, step int, activeNodes []string, state State, d time.Duration) {
	m.stepsCompleted.Add(1)
}

func (m *BasicMetrics) OnInterrupt(ctx context.Context, node string, intr Interrupt, step int) {
	m.interrupts.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	nodes := m.nodesCompleted.Load()
	totalNs := m.totalNodeTime.Load()

	var avg time.Duration
	if nodes > 0 {
		avg = time.Duration(totalNs / nodes)
	}

	return BasicMetricsSnapshot{
		GraphsStarted:   m.graphsStarted.Load(),
		GraphsCompleted: m.graphsCompleted.Load(),
		NodesCompleted:  nodes,
		NodeErrors:      m.nodeErrors.Load(),
		StepsCompleted:  m.stepsCompleted.Load(),
		Interrupts:      m.interrupts.Load(),
		AvgNodeDuration: avg,
	}
}
