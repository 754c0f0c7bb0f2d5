package api

import (
	"log/slog"
	"sort"
)

// Graph is a compiled, immutable workflow topology: a namespace of nodes, an
// ordered list of edges, and the reducer table shared by every run.
//
// Graphs are built through the grafo builder and validated by NewGraph;
// once constructed they are safe for concurrent use by any number of runs.
type Graph struct {
	name     string
	nodes    map[string]Node
	order    []string // node registration order, for diagrams
	edges    []Edge
	reducers map[string]ReducerFunc
}

// NewGraph validates the given topology and returns a compiled Graph.
//
// Validation rules:
//   - node names are unique (the synthetic START and FINISH are injected
//     here and may not be redefined),
//   - START has at least one outgoing edge,
//   - static and fan-out destinations name existing nodes.
//
// Conditional edge targets are validated lazily at route time, since a
// router may compute destinations dynamically. Non-fatal oddities — nodes
// with no incoming edge, no statically provable path to FINISH — are logged
// as warnings on logger.
func NewGraph(name string, nodes []Node, edges []Edge, reducers map[string]ReducerFunc, logger *slog.Logger) (*Graph, error) {
	if logger == nil {
		logger = slog.Default()
	}

	g := &Graph{
		name:     name,
		nodes:    make(map[string]Node, len(nodes)+2),
		edges:    edges,
		reducers: reducers,
	}

	g.nodes[Start] = Node{Name: Start, Kind: KindStart, Fn: Identity}
	g.nodes[Finish] = Node{Name: Finish, Kind: KindFinish, Fn: Identity}
	g.order = append(g.order, Start)

	for _, n := range nodes {
		if _, exists := g.nodes[n.Name]; exists {
			return nil, NewGraphError(ErrCodeDuplicateNode, "duplicate node name %q", n.Name)
		}
		if n.Fn == nil {
			return nil, NewGraphError(ErrCodeBadCallable, "node %q has no callable", n.Name)
		}
		g.nodes[n.Name] = n
		g.order = append(g.order, n.Name)
	}
	g.order = append(g.order, Finish)

	entry := false
	for _, e := range g.edges {
		if _, ok := g.nodes[e.From]; !ok {
			return nil, NewGraphError(ErrCodeUnknownNode, "edge source %q is not a node", e.From)
		}
		if e.From == Start {
			entry = true
		}
		switch e.Kind {
		case EdgeStatic:
			if _, ok := g.nodes[e.To]; !ok {
				return nil, NewGraphError(ErrCodeUnknownNode, "edge %s -> %s targets unknown node", e.From, e.To)
			}
		case EdgeFanOut:
			for _, to := range e.Targets {
				if _, ok := g.nodes[to]; !ok {
					return nil, NewGraphError(ErrCodeUnknownNode, "fan-out from %s targets unknown node %q", e.From, to)
				}
			}
		}
	}
	if !entry {
		return nil, NewGraphError(ErrCodeNoEntryPoint, "graph %q has no entry point: add an edge from START", name)
	}

	g.warn(logger)
	return g, nil
}

// warn logs non-fatal structural oddities.
func (g *Graph) warn(logger *slog.Logger) {
	incoming := make(map[string]bool, len(g.nodes))
	for _, e := range g.edges {
		switch e.Kind {
		case EdgeStatic:
			incoming[e.To] = true
		case EdgeFanOut:
			for _, to := range e.Targets {
				incoming[to] = true
			}
		case EdgeConditional:
			for _, to := range e.Labels {
				incoming[to] = true
			}
		}
	}
	for _, name := range g.order {
		if name == Start || name == Finish {
			continue
		}
		if !incoming[name] {
			logger.Warn("node has no incoming edge", slog.String("graph", g.name), slog.String("node", name))
		}
	}

	if !g.staticPathToFinish() {
		logger.Warn("no statically provable path to FINISH", slog.String("graph", g.name))
	}
}

// staticPathToFinish walks static and fan-out edges from START. Conditional
// edges cannot prove reachability, but a node with no outgoing edges routes
// to FINISH by default, so such a node also counts.
func (g *Graph) staticPathToFinish() bool {
	seen := map[string]bool{Start: true}
	queue := []string{Start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == Finish {
			return true
		}
		out := g.Outgoing(cur)
		if len(out) == 0 && cur != Start {
			return true
		}
		for _, e := range out {
			var dests []string
			switch e.Kind {
			case EdgeStatic:
				dests = []string{e.To}
			case EdgeFanOut:
				dests = e.Targets
			}
			for _, d := range dests {
				if !seen[d] {
					seen[d] = true
					queue = append(queue, d)
				}
			}
		}
	}
	return false
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Node returns the named node and whether it exists.
func (g *Graph) Node(name string) (Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// NodeNames returns every node name in registration order, START first and
// FINISH last.
func (g *Graph) NodeNames() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Edges returns the edges in declaration order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Outgoing returns the edges leaving from, in declaration order.
func (g *Graph) Outgoing(from string) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.From == from {
			out = append(out, e)
		}
	}
	return out
}

// Reducers returns the reducer table shared by every run of this graph.
// Stores persist only key/value entries; reducers are reattached from here
// when a checkpoint is loaded.
func (g *Graph) Reducers() map[string]ReducerFunc {
	return g.reducers
}

// ReducerKeys returns the keys with a registered reducer, sorted.
func (g *Graph) ReducerKeys() []string {
	keys := make([]string, 0, len(g.reducers))
	for k := range g.reducers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
