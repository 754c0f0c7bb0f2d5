package api

import (
	"log/slog"
	"strings"
	"testing"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func fnNode(name string) Node {
	return Node{Name: name, Kind: KindFunction, Fn: Identity}
}

func TestNewGraphValidates(t *testing.T) {
	t.Run("no entry point", func(t *testing.T) {
		_, err := NewGraph("g", []Node{fnNode("a")}, []Edge{{Kind: EdgeStatic, From: "a", To: Finish}}, nil, discard())
		if !IsGraphError(err, ErrCodeNoEntryPoint) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("unknown static target", func(t *testing.T) {
		edges := []Edge{
			{Kind: EdgeStatic, From: Start, To: "a"},
			{Kind: EdgeStatic, From: "a", To: "ghost"},
		}
		_, err := NewGraph("g", []Node{fnNode("a")}, edges, nil, discard())
		if !IsGraphError(err, ErrCodeUnknownNode) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("unknown fan-out target", func(t *testing.T) {
		edges := []Edge{
			{Kind: EdgeStatic, From: Start, To: "a"},
			{Kind: EdgeFanOut, From: "a", Targets: []string{"ghost"}},
		}
		_, err := NewGraph("g", []Node{fnNode("a")}, edges, nil, discard())
		if !IsGraphError(err, ErrCodeUnknownNode) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("duplicate node", func(t *testing.T) {
		_, err := NewGraph("g", []Node{fnNode("a"), fnNode("a")},
			[]Edge{{Kind: EdgeStatic, From: Start, To: "a"}}, nil, discard())
		if !IsGraphError(err, ErrCodeDuplicateNode) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("conditional targets validated lazily", func(t *testing.T) {
		router, _ := AdaptRouter(func(s State) string { return "ghost" })
		edges := []Edge{
			{Kind: EdgeStatic, From: Start, To: "a"},
			{Kind: EdgeConditional, From: "a", Router: router},
		}
		if _, err := NewGraph("g", []Node{fnNode("a")}, edges, nil, discard()); err != nil {
			t.Fatalf("conditional target rejected at compile time: %v", err)
		}
	})
}

func TestGraphAccessors(t *testing.T) {
	edges := []Edge{
		{Kind: EdgeStatic, From: Start, To: "a"},
		{Kind: EdgeStatic, From: "a", To: "b"},
		{Kind: EdgeStatic, From: "a", To: Finish},
		{Kind: EdgeStatic, From: "b", To: Finish},
	}
	g, err := NewGraph("g", []Node{fnNode("a"), fnNode("b")}, edges, map[string]ReducerFunc{"seq": AppendReducer}, discard())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if _, ok := g.Node(Start); !ok {
		t.Fatal("START not injected")
	}
	if _, ok := g.Node(Finish); !ok {
		t.Fatal("FINISH not injected")
	}

	out := g.Outgoing("a")
	if len(out) != 2 || out[0].To != "b" || out[1].To != Finish {
		t.Fatalf("outgoing order wrong: %+v", out)
	}

	if keys := g.ReducerKeys(); len(keys) != 1 || keys[0] != "seq" {
		t.Fatalf("reducer keys: %v", keys)
	}
}

func TestMermaidStructure(t *testing.T) {
	router, _ := AdaptRouter(func(s State) string { return "yes" })
	edges := []Edge{
		{Kind: EdgeStatic, From: Start, To: "check"},
		{Kind: EdgeConditional, From: "check", Router: router, Labels: map[string]string{
			"yes": "positive",
			"no":  "other",
		}},
		{Kind: EdgeFanOut, From: "positive", Targets: []string{"other"}},
		{Kind: EdgeStatic, From: "other", To: Finish},
	}
	nodes := []Node{fnNode("check"), fnNode("positive"), fnNode("other")}
	g, err := NewGraph("g", nodes, edges, nil, discard())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	out := g.Mermaid()

	for _, want := range []string{
		"graph TD",
		`(("start"))`,
		`(("finish"))`,
		`check["check"]`,
		"__start__ --> check",
		`check -. "yes" .-> positive`,
		`check -. "no" .-> other`,
		"positive --> other",
		"other --> __finish__",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("diagram missing %q:\n%s", want, out)
		}
	}
}
