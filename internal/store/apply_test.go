package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyUpdates_DottedPaths(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	data := map[string]any{}
	ApplyUpdates(data, map[string]any{
		"unreadCounts.uid1": int64(3),
		"settings.showOnline": true,
	}, now)

	counts, ok := data["unreadCounts"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, int64(3), counts["uid1"])
	settings, ok := data["settings"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, true, settings["showOnline"])
}

func TestApplyUpdates_Increment(t *testing.T) {
	now := time.Now().UTC()
	data := map[string]any{"unreadCounts": map[string]any{"uid2": float64(2)}}

	ApplyUpdates(data, map[string]any{"unreadCounts.uid2": Increment(1)}, now)
	ApplyUpdates(data, map[string]any{"unreadCounts.uid2": Increment(1)}, now)

	counts := data["unreadCounts"].(map[string]any)
	assert.Equal(t, int64(4), counts["uid2"])

	// Incrementing a missing field starts from zero.
	ApplyUpdates(data, map[string]any{"unreadCounts.uid9": Increment(5)}, now)
	assert.Equal(t, int64(5), counts["uid9"])
}

func TestApplyUpdates_ArrayUnion(t *testing.T) {
	now := time.Now().UTC()
	data := map[string]any{"likes": []any{"uid2"}}

	ApplyUpdates(data, map[string]any{"likes": ArrayUnion("uid3")}, now)
	ApplyUpdates(data, map[string]any{"likes": ArrayUnion("uid3")}, now)
	ApplyUpdates(data, map[string]any{"likes": ArrayUnion("uid2")}, now)

	assert.Equal(t, []any{"uid2", "uid3"}, data["likes"])
}

func TestApplyUpdates_ArrayRemove(t *testing.T) {
	now := time.Now().UTC()
	data := map[string]any{"blocked": []any{"uid2", "uid3"}}

	ApplyUpdates(data, map[string]any{"blocked": ArrayRemove("uid2")}, now)
	assert.Equal(t, []any{"uid3"}, data["blocked"])

	// Removing an absent value is a no-op.
	ApplyUpdates(data, map[string]any{"blocked": ArrayRemove("uid9")}, now)
	assert.Equal(t, []any{"uid3"}, data["blocked"])
}

func TestApplyUpdates_ServerTimestamp(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	data := map[string]any{}

	ApplyUpdates(data, map[string]any{"lastSeen": ServerTimestamp()}, now)

	assert.Equal(t, now, data["lastSeen"])
}

func TestApplyUpdates_NestedMapMerges(t *testing.T) {
	now := time.Now().UTC()
	data := map[string]any{
		"unreadCounts": map[string]any{"uid1": float64(4), "uid2": float64(0)},
	}

	ApplyUpdates(data, map[string]any{
		"unreadCounts": map[string]any{"uid1": int64(0)},
	}, now)

	counts := data["unreadCounts"].(map[string]any)
	assert.Equal(t, int64(0), counts["uid1"])
	assert.Equal(t, float64(0), counts["uid2"], "untouched sibling keys survive")
}

func TestDocument_Getters(t *testing.T) {
	doc := Document{
		ID: "uid1",
		Data: map[string]any{
			"firstName": "Ana",
			"online":    true,
			"likes":     []any{"uid2", "uid3"},
			"lastSeen":  "2025-06-01T12:00:00Z",
			"settings":  map[string]any{"showOnline": true},
			"unreadCounts": map[string]any{
				"uid1": float64(2),
			},
		},
	}

	assert.Equal(t, "Ana", doc.Str("firstName"))
	assert.True(t, doc.Bool("online"))
	assert.True(t, doc.Bool("settings.showOnline"))
	assert.Equal(t, []string{"uid2", "uid3"}, doc.Strs("likes"))
	assert.Equal(t, map[string]int64{"uid1": 2}, doc.IntMap("unreadCounts"))

	ts, ok := doc.Time("lastSeen")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), ts)

	_, ok = doc.Time("missing")
	assert.False(t, ok)
	assert.Equal(t, "", doc.Str("missing.nested"))
}
