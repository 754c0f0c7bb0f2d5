package grafo

import (
	"fmt"
	"log/slog"

	"github.com/petrijr/grafo/pkg/api"
)

// Builder provides a fluent API for declaring graphs:
//
//	g := grafo.NewGraph("scoring").
//	    Node("check", check).
//	    Node("positive", positive).
//	    Node("other", other).
//	    ConditionalEdge("check", route, map[string]string{
//	        "yes": "positive",
//	        "no":  "other",
//	    }).
//	    SetEntryPoint("check").
//	    SetFinishPoint("positive").
//	    SetFinishPoint("other").
//	    MustCompile()
type Builder struct {
	name     string
	nodes    []api.Node
	edges    []api.Edge
	reducers map[string]api.ReducerFunc
	logger   *slog.Logger
	errs     []error
}

// BuilderOption configures a Builder at construction time.
type BuilderOption func(*Builder)

// WithReducer attaches a reducer to a state key. The reducer table is fixed
// for the lifetime of every run of the compiled graph.
func WithReducer(key string, fn ReducerFunc) BuilderOption {
	return func(b *Builder) {
		b.reducers[key] = fn
	}
}

// WithLogger sets the logger used for compile-time warnings and for
// suppressed observer faults at run time.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewGraph creates a new graph builder with the given name.
func NewGraph(name string, opts ...BuilderOption) *Builder {
	b := &Builder{
		name:     name,
		reducers: make(map[string]api.ReducerFunc),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Node adds a named node. fn may be any supported callable shape: taking no
// arguments, the state, or a context and the state, and returning a
// NodeResult or a plain delta map (with or without an error).
func (b *Builder) Node(name string, fn any) *Builder {
	return b.addNode(name, api.KindFunction, fn, nil)
}

// NodeWithRetry adds a node whose callable is retried per the given policy
// before a failure is reported.
func (b *Builder) NodeWithRetry(name string, fn any, retry RetryPolicy) *Builder {
	r := retry
	return b.addNode(name, api.KindFunction, fn, &r)
}

// ChatNode adds a node that delegates to a chat-model client: it reads the
// conversation from the "messages" key, calls the client, and appends the
// assistant reply. Attach AppendReducer to "messages" so turns accumulate.
func (b *Builder) ChatNode(name string, client ChatModel, systemPrompt string) *Builder {
	if client == nil {
		panic(fmt.Sprintf("grafo: chat node %q has nil client", name))
	}
	return b.addNode(name, api.KindChat, api.ChatNodeFunc(client, systemPrompt), nil)
}

// ToolNode adds a node that executes the tool calls found on the last
// message and appends one tool message per result.
func (b *Builder) ToolNode(name string, tools ...Tool) *Builder {
	return b.addNode(name, api.KindTool, api.ToolNodeFunc(tools), nil)
}

func (b *Builder) addNode(name string, kind api.NodeKind, fn any, retry *RetryPolicy) *Builder {
	if name == "" {
		panic("grafo: node name must not be empty")
	}
	if fn == nil {
		panic(fmt.Sprintf("grafo: node %q has nil function", name))
	}

	adapted, err := api.AdaptNode(fn)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("node %q: %w", name, err))
		return b
	}
	b.nodes = append(b.nodes, api.Node{Name: name, Kind: kind, Fn: adapted, Retry: retry})
	return b
}

// Edge adds a static edge from one node to another.
func (b *Builder) Edge(from, to string) *Builder {
	b.edges = append(b.edges, api.Edge{Kind: api.EdgeStatic, From: from, To: to})
	return b
}

// ConditionalEdge adds an edge whose destinations are computed by router
// against the merged state. The router's return value is coerced to a
// sequence of destination tokens and remapped through labels (tokens
// without a mapping pass through as node names).
func (b *Builder) ConditionalEdge(from string, router any, labels map[string]string) *Builder {
	if router == nil {
		panic(fmt.Sprintf("grafo: conditional edge from %q has nil router", from))
	}
	adapted, err := api.AdaptRouter(router)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("conditional edge from %q: %w", from, err))
		return b
	}
	b.edges = append(b.edges, api.Edge{Kind: api.EdgeConditional, From: from, Router: adapted, Labels: labels})
	return b
}

// FanOutEdge adds an edge that activates every target simultaneously.
func (b *Builder) FanOutEdge(from string, targets ...string) *Builder {
	b.edges = append(b.edges, api.Edge{Kind: api.EdgeFanOut, From: from, Targets: targets})
	return b
}

// SetEntryPoint marks name as the run entry: shorthand for Edge(Start, name).
func (b *Builder) SetEntryPoint(name string) *Builder {
	return b.Edge(Start, name)
}

// SetFinishPoint routes name to the terminal node: shorthand for
// Edge(name, Finish).
func (b *Builder) SetFinishPoint(name string) *Builder {
	return b.Edge(name, Finish)
}

// Compile validates the declared topology and returns an executable Graph.
func (b *Builder) Compile() (*Graph, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	core, err := api.NewGraph(b.name, b.nodes, b.edges, b.reducers, b.logger)
	if err != nil {
		return nil, err
	}
	return &Graph{core: core, logger: b.logger}, nil
}

// MustCompile is like Compile but panics on error. Useful for
// initialization in main().
func (b *Builder) MustCompile() *Graph {
	g, err := b.Compile()
	if err != nil {
		panic(err)
	}
	return g
}
