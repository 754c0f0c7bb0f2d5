package api

import "fmt"

// AppendReducer accumulates values into a sequence. Scalars on either side
// are coerced to a single-element sequence first; nil contributes nothing.
// Order is preserved: existing elements first, incoming elements after.
//
// Typical use is a "messages" key that every node appends to.
func AppendReducer(old, incoming any) any {
	out := toSequence(old)
	return append(out, toSequence(incoming)...)
}

// ConcatReducer concatenates the string forms of both values, treating nil
// as the empty string.
func ConcatReducer(old, incoming any) any {
	return toText(old) + toText(incoming)
}

// MergeMapReducer shallow-merges two map values, right-biased on key
// conflicts. A nil side is treated as empty; a non-map incoming value
// replaces the old one.
func MergeMapReducer(old, incoming any) any {
	oldMap, oldOK := old.(map[string]any)
	newMap, newOK := incoming.(map[string]any)
	if !newOK {
		if incoming == nil {
			return old
		}
		return incoming
	}

	out := make(map[string]any, len(oldMap)+len(newMap))
	if oldOK {
		for k, v := range oldMap {
			out[k] = v
		}
	}
	for k, v := range newMap {
		out[k] = v
	}
	return out
}

func toSequence(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]any, len(t))
		copy(out, t)
		return out
	default:
		return []any{v}
	}
}

func toText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
