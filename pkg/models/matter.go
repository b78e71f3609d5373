// Package models defines the shared value types for plans, steps, and
// execution records produced by the orchestrator.
package models

// Matter is the caller-supplied case payload. After validation it is
// guaranteed to contain "summary", "parties", and "documents"; every other
// field passes through the engine opaquely.
type Matter = map[string]any

// CopyMap returns a deep copy of a string-keyed payload. Nested maps and
// slices are copied recursively so that no step can alias another step's
// view of the matter.
func CopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

// CopySlice returns a deep copy of a slice payload.
func CopySlice(s []any) []any {
	if s == nil {
		return nil
	}
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CopyMap(val)
	case []any:
		return CopySlice(val)
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	case []map[string]any:
		out := make([]map[string]any, len(val))
		for i, m := range val {
			out[i] = CopyMap(m)
		}
		return out
	default:
		// Scalars (string, bool, numbers, nil) are immutable as far as the
		// engine is concerned.
		return v
	}
}
