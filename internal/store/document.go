package store

import (
	"strings"
	"time"
)

// Document is an immutable snapshot of a stored document. Data values are
// JSON-shaped: numbers may arrive as float64 or int64 and timestamps as
// RFC 3339 strings depending on the adapter, so callers should read fields
// through the typed getters.
type Document struct {
	ID   string
	Data map[string]any
}

func (d Document) lookup(key string) (any, bool) {
	var cur any = d.Data
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Str returns the string at key (dotted paths allowed), or "".
func (d Document) Str(key string) string {
	v, ok := d.lookup(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Bool returns the bool at key, or false.
func (d Document) Bool(key string) bool {
	v, ok := d.lookup(key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Int returns the numeric value at key as int64, or 0.
func (d Document) Int(key string) int64 {
	v, ok := d.lookup(key)
	if !ok {
		return 0
	}
	return asInt(v)
}

// Time returns the timestamp at key, reporting whether one was present.
func (d Document) Time(key string) (time.Time, bool) {
	v, ok := d.lookup(key)
	if !ok {
		return time.Time{}, false
	}
	return asTime(v)
}

// Strs returns the string array at key, or nil.
func (d Document) Strs(key string) []string {
	v, ok := d.lookup(key)
	if !ok {
		return nil
	}
	switch arr := v.(type) {
	case []string:
		return append([]string(nil), arr...)
	case []any:
		out := make([]string, 0, len(arr))
		for _, e := range arr {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// IntMap returns the string-to-number map at key, or an empty map.
func (d Document) IntMap(key string) map[string]int64 {
	out := map[string]int64{}
	v, ok := d.lookup(key)
	if !ok {
		return out
	}
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for k, e := range m {
		out[k] = asInt(e)
	}
	return out
}

// Map returns the nested map at key, or nil.
func (d Document) Map(key string) map[string]any {
	v, ok := d.lookup(key)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case float32:
		return int64(n)
	}
	return 0
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
