package api

import "context"

// Names of the synthetic entry and terminal nodes. Both are identity
// functions on state: they return an empty delta and exist so every run has
// a well-defined first and last frame.
const (
	Start  = "__start__"
	Finish = "__finish__"
)

// NodeKind tags a node for observers and diagram rendering.
type NodeKind string

const (
	KindFunction NodeKind = "function"
	KindChat     NodeKind = "chat"
	KindTool     NodeKind = "tool"
	KindStart    NodeKind = "start"
	KindFinish   NodeKind = "finish"
)

// NodeFunc is the canonical node callable: it receives the frame's state and
// returns one of the NodeResult variants. Blocking work must honor ctx.
type NodeFunc func(ctx context.Context, s State) (NodeResult, error)

// Node is an immutable descriptor for a unit of user computation. Nodes hold
// no mutable internal state; everything a node learns travels through the
// State it returns.
type Node struct {
	Name  string
	Kind  NodeKind
	Fn    NodeFunc
	Retry *RetryPolicy
}

// Identity returns an empty delta, leaving state untouched. START and FINISH
// use it.
func Identity(ctx context.Context, s State) (NodeResult, error) {
	return NodeResult{}, nil
}

// AdaptNode converts a callable in one of the supported shapes into a
// NodeFunc. Supported shapes take no arguments, the state, or the context
// and state, and return either a NodeResult or a plain delta map (with or
// without an error).
//
// Returning a nil map behaves as an empty delta.
func AdaptNode(fn any) (NodeFunc, error) {
	switch f := fn.(type) {
	case NodeFunc:
		return f, nil
	case func(ctx context.Context, s State) (NodeResult, error):
		return f, nil
	case func(s State) (NodeResult, error):
		return func(ctx context.Context, s State) (NodeResult, error) { return f(s) }, nil
	case func() (NodeResult, error):
		return func(ctx context.Context, s State) (NodeResult, error) { return f() }, nil
	case func(ctx context.Context, s State) (map[string]any, error):
		return func(ctx context.Context, s State) (NodeResult, error) {
			d, err := f(ctx, s)
			return Delta(d), err
		}, nil
	case func(s State) (map[string]any, error):
		return func(ctx context.Context, s State) (NodeResult, error) {
			d, err := f(s)
			return Delta(d), err
		}, nil
	case func(ctx context.Context, s State) map[string]any:
		return func(ctx context.Context, s State) (NodeResult, error) {
			return Delta(f(ctx, s)), nil
		}, nil
	case func(s State) map[string]any:
		return func(ctx context.Context, s State) (NodeResult, error) {
			return Delta(f(s)), nil
		}, nil
	case func() map[string]any:
		return func(ctx context.Context, s State) (NodeResult, error) {
			return Delta(f()), nil
		}, nil
	default:
		return nil, NewGraphError(ErrCodeBadCallable, "unsupported node callable %T", fn)
	}
}
