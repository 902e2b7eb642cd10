package store

import (
	"fmt"
	"strings"
	"time"
)

// ApplyUpdates applies partial field updates to a document's data in place,
// resolving dotted paths and the Increment/ArrayUnion/ArrayRemove/
// ServerTimestamp sentinels. now is the adapter's clock reading for this
// write. Adapters share this so both resolve sentinels identically; callers
// must hold whatever write lock the adapter requires.
func ApplyUpdates(data map[string]any, fields map[string]any, now time.Time) map[string]any {
	if data == nil {
		data = map[string]any{}
	}
	for key, value := range fields {
		parent, leaf := descend(data, key)
		parent[leaf] = resolve(parent[leaf], value, now)
	}
	return data
}

// descend walks a dotted path creating intermediate maps, returning the
// innermost map and the final path segment.
func descend(data map[string]any, key string) (map[string]any, string) {
	parts := strings.Split(key, ".")
	cur := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
	return cur, parts[len(parts)-1]
}

func resolve(existing, value any, now time.Time) any {
	switch op := value.(type) {
	case incrementOp:
		return asInt(existing) + op.delta
	case arrayUnionOp:
		return unionArray(existing, op.values)
	case arrayRemoveOp:
		return removeFromArray(existing, op.values)
	case serverTimestampOp:
		return now
	case map[string]any:
		// Nested map values merge field by field rather than replacing the
		// whole subtree, so sentinels inside nested maps still resolve.
		base, ok := existing.(map[string]any)
		if !ok {
			base = map[string]any{}
		}
		return ApplyUpdates(base, op, now)
	default:
		return value
	}
}

func unionArray(existing any, values []any) []any {
	arr := toAnySlice(existing)
	for _, v := range values {
		found := false
		for _, e := range arr {
			if sameElement(e, v) {
				found = true
				break
			}
		}
		if !found {
			arr = append(arr, v)
		}
	}
	return arr
}

func removeFromArray(existing any, values []any) []any {
	arr := toAnySlice(existing)
	out := arr[:0]
	for _, e := range arr {
		keep := true
		for _, v := range values {
			if sameElement(e, v) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, e)
		}
	}
	return out
}

func toAnySlice(v any) []any {
	switch arr := v.(type) {
	case []any:
		return arr
	case []string:
		out := make([]any, len(arr))
		for i, s := range arr {
			out[i] = s
		}
		return out
	}
	return nil
}

// sameElement compares array members by rendered value so that a string
// stored through JSON and the same string passed directly compare equal.
func sameElement(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
