package api

import "context"

// contextKey is a private type for context value keys so this package's
// keys cannot collide with other packages'.
type contextKey string

const (
	threadIDKey contextKey = "grafo.thread_id"
	nodeNameKey contextKey = "grafo.node"
	stepKey     contextKey = "grafo.step"
	observerKey contextKey = "grafo.observer"
)

// WithRunInfo injects execution metadata into the context handed to a node
// callable. The runtime calls this; nodes and node wrappers read it back
// with the accessors below.
func WithRunInfo(ctx context.Context, threadID, node string, step int, obs Observer) context.Context {
	ctx = context.WithValue(ctx, threadIDKey, threadID)
	ctx = context.WithValue(ctx, nodeNameKey, node)
	ctx = context.WithValue(ctx, stepKey, step)
	return context.WithValue(ctx, observerKey, obs)
}

// ThreadIDFromContext returns the executing run's thread id.
func ThreadIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(threadIDKey).(string)
	return id, ok
}

// NodeFromContext returns the executing node's name.
func NodeFromContext(ctx context.Context) (string, bool) {
	node, ok := ctx.Value(nodeNameKey).(string)
	return node, ok
}

// StepFromContext returns the current super-step number.
func StepFromContext(ctx context.Context) (int, bool) {
	step, ok := ctx.Value(stepKey).(int)
	return step, ok
}

// ObserverFromContext returns the run's observer list. Chat-model and tool
// clients use it to forward their request/response/error notifications,
// keyed by the executing node's name.
func ObserverFromContext(ctx context.Context) (Observer, bool) {
	obs, ok := ctx.Value(observerKey).(Observer)
	return obs, ok
}
