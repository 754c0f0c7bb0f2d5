// Package runner implements the super-step scheduler that drives a compiled
// graph: per step it executes every active frame in parallel, waits on the
// barrier, merges results through the reducer table, routes frames for the
// next step, writes a checkpoint and notifies observers.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/petrijr/grafo/pkg/api"
)

// StepSummary is yielded to a Stream block once per super-step.
type StepSummary struct {
	Step        int
	State       api.State
	ActiveNodes []string
	Completed   bool
}

// StreamFunc receives one summary per super-step. Returning false stops the
// run cooperatively after the current step: frames already dispatched have
// completed (the barrier guarantees it), and no further step begins.
type StreamFunc func(StepSummary) bool

// InterruptHandler resolves an interrupt into a delta injected into the
// suspended frame's state before the node re-runs.
type InterruptHandler func(api.Interrupt) (map[string]any, error)

// Config assembles everything one run needs. Observer must already be a
// single value (compose with api.NewCompositeObserver); it is wrapped with
// api.Recovered here, so observer panics never reach the loop.
type Config struct {
	Graph       *api.Graph
	Store       api.Store
	ThreadID    string
	Observer    api.Observer
	OnInterrupt InterruptHandler
	MaxSteps    int
	Logger      *slog.Logger
}

// Result is what a finished run reports.
type Result struct {
	State    api.State
	Step     int
	ThreadID string
}

// Runner owns one run of one graph. It is not reusable.
type Runner struct {
	graph       *api.Graph
	store       api.Store
	threadID    string
	obs         api.Observer
	onInterrupt InterruptHandler
	maxSteps    int
	logger      *slog.Logger
}

// frame is the scheduled execution unit: a node name, the state view it
// will receive, and the super-step it executes in. Frames are born when a
// step's results are processed and die when the next step executes them.
type frame struct {
	node  string
	state api.State
	step  int
}

// outcome pairs a frame with what its node returned.
type outcome struct {
	frame  frame
	result api.NodeResult
	err    error
}

func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	return &Runner{
		graph:       cfg.Graph,
		store:       cfg.Store,
		threadID:    cfg.ThreadID,
		obs:         api.Recovered(obs, logger),
		onInterrupt: cfg.OnInterrupt,
		maxSteps:    cfg.MaxSteps,
		logger:      logger,
	}
}

// Run executes the loop starting from initial state seeded at START.
// startStep is 0 for a fresh run, or the resumed thread's last checkpointed
// step. Checkpoints are numbered by the super-step they conclude, so a run
// with three barriers records steps startStep, startStep+1, startStep+2.
//
// The thread state accumulates every update a step produces, in submission
// order, so the state visible at step N+1 reflects every delta from step N.
// Only Send payloads stay frame-local: each sent frame sees the thread
// state merged with its own payload.
func (r *Runner) Run(ctx context.Context, initial api.State, startStep int, yield StreamFunc) (Result, error) {
	r.obs.OnGraphStart(ctx, r.graph.Name(), initial, r.threadID)
	defer r.obs.OnShutdown(ctx)

	active := []frame{{node: api.Start, state: initial, step: startStep}}
	current := initial
	step := startStep
	barriers := 0

	fail := func(err error) (Result, error) {
		r.obs.OnGraphEnd(ctx, current, r.threadID)
		return Result{State: current, Step: step, ThreadID: r.threadID}, err
	}

	for len(active) > 0 {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if r.maxSteps > 0 && barriers >= r.maxSteps {
			return fail(api.NewGraphError(api.ErrCodeMaxSteps, "run exceeded %d steps", r.maxSteps))
		}

		stepStart := time.Now()

		// Dispatch every frame concurrently; the WaitGroup is the barrier.
		// Results land in a slice indexed by submission order, so the merge
		// below is deterministic regardless of completion order.
		results := make([]outcome, len(active))
		var wg sync.WaitGroup
		for i, f := range active {
			wg.Add(1)
			go func(i int, f frame) {
				defer wg.Done()
				results[i] = r.executeNode(ctx, f)
			}(i, f)
		}
		wg.Wait()
		barriers++

		// Merge phase: fold every update of this step into the thread
		// state before any routing, so routers and next frames observe the
		// whole step's work.
		for _, out := range results {
			if out.err != nil {
				return fail(out.err)
			}
			switch out.result.Kind() {
			case api.ResultDelta:
				current = current.Merge(out.result.Delta())
			case api.ResultCommand:
				if cmd := out.result.Command(); cmd != nil {
					current = current.Merge(cmd.Update)
				}
			}
		}

		// Route phase: translate each result into next frames, in result
		// order, edge-declaration order within a result.
		var next []frame
		var finalState *api.State
		for _, out := range results {
			frames, fin, err := r.processResult(ctx, out, current, step+1)
			if err != nil {
				return fail(err)
			}
			next = append(next, frames...)
			if fin != nil {
				finalState = fin
			}
		}

		// Representative state for this step's checkpoint: the final state
		// if one was produced, else the first next frame's state, else the
		// last known thread state. With divergent frame views (send
		// payloads) this is one frame's view, not a union.
		rep := current
		if finalState != nil {
			rep = *finalState
		} else if len(next) > 0 {
			rep = next[0].state
		}

		if r.store != nil {
			meta := map[string]any{"graph": r.graph.Name()}
			if err := r.store.Save(ctx, r.threadID, rep.Values(), step, meta); err != nil {
				return fail(fmt.Errorf("checkpoint save: %w", err))
			}
			r.obs.OnCheckpointSaved(ctx, r.threadID, step)
		}

		completed := finalState != nil || len(next) == 0
		activeNames := make([]string, len(next))
		for i, f := range next {
			activeNames[i] = f.node
		}
		r.obs.OnStepComplete(ctx, step, activeNames, rep, time.Since(stepStart))

		if yield != nil && !yield(StepSummary{Step: step, State: rep, ActiveNodes: activeNames, Completed: completed}) {
			current = rep
			break
		}

		step++

		if finalState != nil {
			// A frame routed to FINISH: the run is over. Any non-terminal
			// frames produced in the same step are discarded.
			current = *finalState
			break
		}
		active = next
	}

	r.obs.OnGraphEnd(ctx, current, r.threadID)
	return Result{State: current, Step: step, ThreadID: r.threadID}, nil
}

// executeNode wraps one node invocation with observer events, timing, panic
// capture and the node's retry policy.
func (r *Runner) executeNode(ctx context.Context, f frame) outcome {
	node, ok := r.graph.Node(f.node)
	if !ok {
		// Conditional routes are validated lazily; this is where a bad
		// destination surfaces.
		err := api.NewGraphError(api.ErrCodeUnknownNode, "routed to unknown node %q", f.node)
		r.obs.OnNodeError(ctx, f.node, f.state, err, f.step)
		return outcome{frame: f, err: err}
	}

	ctx = api.WithRunInfo(ctx, r.threadID, node.Name, f.step, r.obs)
	r.obs.OnNodeStart(ctx, node.Name, f.state, f.step)
	start := time.Now()

	res, err := r.invokeWithRetry(ctx, node, f.state)
	if err != nil {
		nerr := &api.NodeError{Node: node.Name, Err: err}
		r.obs.OnNodeError(ctx, node.Name, f.state, nerr, f.step)
		return outcome{frame: f, err: nerr}
	}

	after := f.state
	switch res.Kind() {
	case api.ResultDelta:
		after = f.state.Merge(res.Delta())
	case api.ResultCommand:
		if cmd := res.Command(); cmd != nil {
			after = f.state.Merge(cmd.Update)
		}
	}
	r.obs.OnNodeEnd(ctx, node.Name, f.state, after, res, time.Since(start), f.step)

	return outcome{frame: f, result: res}
}

func (r *Runner) invokeWithRetry(ctx context.Context, node api.Node, state api.State) (api.NodeResult, error) {
	maxAttempts := 1
	var backoff time.Duration
	if node.Retry != nil {
		if node.Retry.MaxAttempts > 0 {
			maxAttempts = node.Retry.MaxAttempts
		}
		backoff = node.Retry.InitialBackoff
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return api.NodeResult{}, err
		}

		res, err := r.invoke(ctx, node, state)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		if err := api.SleepBackoff(ctx, backoff); err != nil {
			return api.NodeResult{}, err
		}
		if node.Retry != nil {
			backoff = node.Retry.NextBackoff(backoff)
		}
	}
	return api.NodeResult{}, lastErr
}

// invoke calls the node callable, converting a panic into an error so user
// code cannot take down the scheduler goroutines.
func (r *Runner) invoke(ctx context.Context, node api.Node, state api.State) (res api.NodeResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return node.Fn(ctx, state)
}

// processResult turns one node outcome into zero or more next frames and,
// possibly, a final state. current is the thread state with the whole
// step's updates already merged; nextStep tags the frames with the
// super-step they will execute in.
func (r *Runner) processResult(ctx context.Context, out outcome, current api.State, nextStep int) ([]frame, *api.State, error) {
	f := out.frame
	res := out.result

	switch res.Kind() {
	case api.ResultCommand:
		cmd := res.Command()
		if cmd == nil {
			return r.routeFrames(ctx, f.node, current, nextStep)
		}
		r.obs.OnCommandProcessed(ctx, f.node, *cmd, f.step)
		if cmd.Dest != "" {
			// A forced destination bypasses edge evaluation entirely.
			if cmd.Dest == api.Finish {
				fin := current
				return nil, &fin, nil
			}
			return []frame{{node: cmd.Dest, state: current, step: nextStep}}, nil, nil
		}
		return r.routeFrames(ctx, f.node, current, nextStep)

	case api.ResultSend, api.ResultMultiSend:
		// Sends replace edge evaluation: each one schedules a frame whose
		// view is the thread state merged with its payload, FINISH included
		// (a FINISH frame runs as an identity node next step and
		// terminates then).
		var frames []frame
		for _, send := range res.Sends() {
			frames = append(frames, frame{node: send.To, state: current.Merge(send.Payload), step: nextStep})
		}
		return frames, nil, nil

	case api.ResultInterrupt:
		intr := res.Interrupt()
		r.obs.OnInterrupt(ctx, f.node, *intr, f.step)
		if r.onInterrupt == nil {
			// No handler: clean termination with the pre-interrupt state.
			fin := current
			return nil, &fin, nil
		}
		delta, err := r.onInterrupt(*intr)
		if err != nil {
			return nil, nil, &api.NodeError{Node: f.node, Err: fmt.Errorf("interrupt handler: %w", err)}
		}
		return []frame{{node: f.node, state: current.Merge(delta), step: nextStep}}, nil, nil

	default: // Delta and anything unclassified
		return r.routeFrames(ctx, f.node, current, nextStep)
	}
}

// routeFrames evaluates the source node's outgoing edges in declaration
// order against the thread state. A node with no outgoing edges routes to
// FINISH. Destinations equal to FINISH set the final state instead of
// producing a frame.
func (r *Runner) routeFrames(ctx context.Context, from string, current api.State, nextStep int) ([]frame, *api.State, error) {
	edges := r.graph.Outgoing(from)
	if from == api.Finish || len(edges) == 0 {
		fin := current
		return nil, &fin, nil
	}

	var frames []frame
	var finalState *api.State
	for _, e := range edges {
		dests, err := e.Route(ctx, current)
		if err != nil {
			return nil, nil, &api.NodeError{Node: from, Err: fmt.Errorf("route: %w", err)}
		}
		for _, dest := range dests {
			if dest == api.Finish {
				fin := current
				finalState = &fin
				continue
			}
			frames = append(frames, frame{node: dest, state: current, step: nextStep})
		}
	}
	return frames, finalState, nil
}
