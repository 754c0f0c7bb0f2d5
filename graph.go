package grafo

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/petrijr/grafo/internal/runner"
	"github.com/petrijr/grafo/pkg/api"
)

// Graph is a compiled workflow, ready to run. It is immutable apart from
// the interrupt handler and safe for concurrent runs.
type Graph struct {
	core        *api.Graph
	logger      *slog.Logger
	onInterrupt InterruptHandler
}

// Core exposes the underlying topology for diagram rendering and custom
// tooling.
func (g *Graph) Core() *api.Graph { return g.core }

// Mermaid renders the graph as a Mermaid flowchart.
func (g *Graph) Mermaid() string { return g.core.Mermaid() }

// OnInterrupt registers the handler consulted when a node raises an
// interrupt. The handler returns the delta to inject before the node is
// re-run; without a handler an interrupt terminates the run cleanly with
// the pre-interrupt state.
func (g *Graph) OnInterrupt(h InterruptHandler) *Graph {
	g.onInterrupt = h
	return g
}

// runConfig collects per-run parameters.
type runConfig struct {
	store     Store
	threadID  string
	observers []Observer
	maxSteps  int
}

// RunOption configures a single Invoke, Stream or Resume call.
type RunOption func(*runConfig)

// WithStore persists a checkpoint per super-step into store. Without it,
// runs are not durable and Resume is unavailable.
func WithStore(store Store) RunOption {
	return func(c *runConfig) { c.store = store }
}

// WithThreadID names the run's thread. A random id is generated when unset.
func WithThreadID(id string) RunOption {
	return func(c *runConfig) { c.threadID = id }
}

// WithObserver subscribes an observer to the run's lifecycle events. May be
// given multiple times.
func WithObserver(obs ...Observer) RunOption {
	return func(c *runConfig) { c.observers = append(c.observers, obs...) }
}

// WithMaxSteps aborts the run with a GraphError after n super-steps. Cycles
// are legal, so runs whose routing never reaches FINISH are infinite; this
// is the guard. Zero means no limit.
func WithMaxSteps(n int) RunOption {
	return func(c *runConfig) { c.maxSteps = n }
}

// Invoke runs the graph to termination and returns the final state.
//
// The initial map becomes the seed state; an optional store, thread id,
// observers and step limit come from opts. Node faults are returned as
// *NodeError after the observer stream has seen node_error and graph_end.
func (g *Graph) Invoke(ctx context.Context, initial map[string]any, opts ...RunOption) (State, error) {
	return g.run(ctx, initial, 0, nil, opts)
}

// Stream is Invoke with a per-step callback: yield receives one StepSummary
// per super-step. Returning false from yield stops the run after the
// current step; nodes already dispatched in that step have completed.
func (g *Graph) Stream(ctx context.Context, initial map[string]any, yield func(StepSummary) bool, opts ...RunOption) (State, error) {
	return g.run(ctx, initial, 0, yield, opts)
}

// Resume loads threadID's latest checkpoint from the run's store, merges
// extra into it, and runs the graph again from START on that restored
// state, so nodes that ran before the interrupt execute again. It requires
// WithStore; resuming an unknown thread returns a GraphError.
func (g *Graph) Resume(ctx context.Context, threadID string, extra map[string]any, opts ...RunOption) (State, error) {
	cfg := g.config(opts)
	if cfg.store == nil {
		return State{}, api.NewGraphError(api.ErrCodeNoStore, "resume requires a checkpoint store")
	}

	cp, err := cfg.store.Load(ctx, threadID)
	if err != nil {
		return State{}, api.NewGraphError(api.ErrCodeUnknownThread, "resume thread %q: %v", threadID, err)
	}

	state := api.NewState(cp.Values, g.core.Reducers()).Merge(extra)
	cfg.threadID = threadID
	res, err := g.newRunner(cfg).Run(ctx, state, cp.Step, nil)
	return res.State, err
}

func (g *Graph) run(ctx context.Context, initial map[string]any, startStep int, yield runner.StreamFunc, opts []RunOption) (State, error) {
	cfg := g.config(opts)
	state := api.NewState(initial, g.core.Reducers())
	res, err := g.newRunner(cfg).Run(ctx, state, startStep, yield)
	return res.State, err
}

func (g *Graph) config(opts []RunOption) *runConfig {
	cfg := &runConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.threadID == "" {
		cfg.threadID = uuid.NewString()
	}
	return cfg
}

func (g *Graph) newRunner(cfg *runConfig) *runner.Runner {
	return runner.New(runner.Config{
		Graph:       g.core,
		Store:       cfg.store,
		ThreadID:    cfg.threadID,
		Observer:    api.NewCompositeObserver(cfg.observers...),
		OnInterrupt: g.onInterrupt,
		MaxSteps:    cfg.maxSteps,
		Logger:      g.logger,
	})
}
