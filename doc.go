// Package grafo is an embeddable runtime for stateful, multi-actor
// workflows expressed as directed graphs.
//
// A workflow is a set of named nodes connected by edges; a run carries a
// single keyed state value through the graph until a terminal node is
// reached. State is merged, never mutated: each node returns a partial
// update and per-key reducer functions combine updates deterministically,
// which is what makes parallel branches safe.
//
// # Core Concepts
//
// The grafo programming model is intentionally small and idiomatic:
//
//  1. Builder
//  2. Graph
//  3. NodeResult
//  4. Store
//  5. Observer
//
// # Builder
//
// Graphs are declared with a fluent builder and compiled up front:
//
//	g := grafo.NewGraph("greeter",
//	    grafo.WithReducer("messages", grafo.AppendReducer),
//	).
//	    Node("classify", classify).
//	    Node("respond", respond).
//	    ConditionalEdge("classify", route, map[string]string{
//	        "question": "respond",
//	        "done":     grafo.Finish,
//	    }).
//	    SetEntryPoint("classify").
//	    SetFinishPoint("respond").
//	    MustCompile()
//
// Compilation validates the topology (entry point present, static targets
// known, names unique) so runs never discover structural faults midway.
//
// # Execution
//
// Each run proceeds in super-steps: every active node executes in parallel,
// a barrier waits for all of them, their updates are merged through the
// reducers, edges route the merged state onward, a checkpoint is written and
// observers are notified. The loop ends when a frame reaches FINISH or no
// frames remain.
//
//	final, err := g.Invoke(ctx, map[string]any{"number": 5})
//
// Stream yields one summary per super-step; Resume reloads a thread's
// latest checkpoint from a Store and continues it. Nodes may return plain
// deltas, commands with a forced destination, dynamic sends (map-reduce
// fan-out), or interrupts that park the run for human input.
//
// # Stores
//
// Checkpoints persist between super-steps. Backends:
//
//   - In-memory (non-durable, best for tests)
//   - Files on disk, JSON or YAML encoded
//   - SQLite (embedded durability)
//   - Redis
//   - MongoDB
//
// # Observers
//
// Observers receive the full lifecycle stream (graph, node, step, command,
// interrupt, checkpoint events) plus model request/response notifications
// forwarded by chat clients. LoggingObserver, BasicMetrics and
// HistoryObserver cover the common cases; observer panics are suppressed so
// telemetry can never take a run down.
//
// For runnable examples, see example_test.go or the project README.
package grafo
