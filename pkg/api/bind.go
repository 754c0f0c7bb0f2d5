package api

import (
	"context"

	"github.com/mitchellh/mapstructure"
)

// DecodeState binds the state's entries onto a struct pointer using
// mapstructure field tags (falling back to field names).
func DecodeState(s State, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(s.Values())
}

// TypedNode wraps a strongly-typed function into a NodeFunc. The state is
// decoded into T before each call; the returned map is the node's delta.
//
// Example:
//
//	grafo.TypedNode(func(ctx context.Context, in Order) (map[string]any, error) {
//	    return map[string]any{"total": in.Quantity * in.Price}, nil
//	})
func TypedNode[T any](fn func(ctx context.Context, in T) (map[string]any, error)) NodeFunc {
	return func(ctx context.Context, s State) (NodeResult, error) {
		var in T
		if err := DecodeState(s, &in); err != nil {
			return NodeResult{}, &StateError{Message: "decode: " + err.Error()}
		}
		delta, err := fn(ctx, in)
		if err != nil {
			return NodeResult{}, err
		}
		return Delta(delta), nil
	}
}
