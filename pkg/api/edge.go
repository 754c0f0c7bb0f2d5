package api

import (
	"context"
	"fmt"
	"sort"
)

// EdgeKind discriminates the edge variants.
type EdgeKind int

const (
	// EdgeStatic always routes to a single destination.
	EdgeStatic EdgeKind = iota

	// EdgeConditional routes through a router callable whose return value is
	// coerced into a sequence of destination tokens, optionally remapped
	// through a label table.
	EdgeConditional

	// EdgeFanOut routes to a fixed list of destinations, all taken at once.
	EdgeFanOut
)

// RouterFunc is the canonical conditional router: it observes state and
// returns destination tokens. Routers must be pure; mutating state from a
// router is undefined behavior.
type RouterFunc func(ctx context.Context, s State) ([]string, error)

// Edge connects a source node to one or more destinations.
type Edge struct {
	Kind    EdgeKind
	From    string
	To      string            // static
	Targets []string          // fan-out
	Router  RouterFunc        // conditional
	Labels  map[string]string // conditional: router token -> node name
}

// Route evaluates the edge against state and returns the destination node
// names in order. It is pure and free of side effects.
func (e Edge) Route(ctx context.Context, s State) ([]string, error) {
	switch e.Kind {
	case EdgeStatic:
		return []string{e.To}, nil
	case EdgeFanOut:
		out := make([]string, len(e.Targets))
		copy(out, e.Targets)
		return out, nil
	case EdgeConditional:
		tokens, err := e.Router(ctx, s)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			if mapped, ok := e.Labels[tok]; ok {
				tok = mapped
			}
			out = append(out, tok)
		}
		return out, nil
	default:
		return nil, NewGraphError(ErrCodeUnknownNode, "edge from %q has unknown kind %d", e.From, e.Kind)
	}
}

// AdaptRouter converts a router callable in one of the supported shapes into
// a RouterFunc. Scalar returns become a single destination; map returns
// contribute their key set in sorted order.
func AdaptRouter(fn any) (RouterFunc, error) {
	switch f := fn.(type) {
	case RouterFunc:
		return f, nil
	case func(ctx context.Context, s State) ([]string, error):
		return f, nil
	case func(ctx context.Context, s State) (string, error):
		return func(ctx context.Context, s State) ([]string, error) {
			dest, err := f(ctx, s)
			if err != nil {
				return nil, err
			}
			return []string{dest}, nil
		}, nil
	case func(s State) string:
		return func(ctx context.Context, s State) ([]string, error) {
			return []string{f(s)}, nil
		}, nil
	case func(s State) []string:
		return func(ctx context.Context, s State) ([]string, error) {
			return f(s), nil
		}, nil
	case func(s State) any:
		return func(ctx context.Context, s State) ([]string, error) {
			return CoerceDestinations(f(s))
		}, nil
	case func(ctx context.Context, s State) (any, error):
		return func(ctx context.Context, s State) ([]string, error) {
			v, err := f(ctx, s)
			if err != nil {
				return nil, err
			}
			return CoerceDestinations(v)
		}, nil
	default:
		return nil, NewGraphError(ErrCodeBadCallable, "unsupported router callable %T", fn)
	}
}

// CoerceDestinations turns a router return value into an ordered sequence of
// destination tokens: a scalar becomes one token, a sequence keeps its
// order, and a map contributes its key set sorted.
func CoerceDestinations(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{t}, nil
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				s = fmt.Sprint(e)
			}
			out = append(out, s)
		}
		return out, nil
	case map[string]any:
		out := make([]string, 0, len(t))
		for k := range t {
			out = append(out, k)
		}
		sort.Strings(out)
		return out, nil
	case map[string]bool:
		out := make([]string, 0, len(t))
		for k := range t {
			out = append(out, k)
		}
		sort.Strings(out)
		return out, nil
	default:
		return nil, NewGraphError(ErrCodeBadCallable, "cannot coerce %T into destinations", v)
	}
}
