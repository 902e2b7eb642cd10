package gormstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kindling/internal/store"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	st, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	return st
}

func TestStore_SetGet(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	err := st.Set(ctx, "users", "uid1", map[string]any{
		"firstName": "Ana",
		"likes":     []string{"uid2"},
	}, false)
	require.NoError(t, err)

	doc, err := st.Get(ctx, "users", "uid1")
	require.NoError(t, err)
	assert.Equal(t, "uid1", doc.ID)
	assert.Equal(t, "Ana", doc.Str("firstName"))
	assert.Equal(t, []string{"uid2"}, doc.Strs("likes"))
}

func TestStore_GetMissing(t *testing.T) {
	st := openStore(t)

	_, err := st.Get(context.Background(), "users", "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_SetMerge(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "users", "uid1", map[string]any{"firstName": "Ana", "online": true}, false))
	require.NoError(t, st.Set(ctx, "users", "uid1", map[string]any{"online": false}, true))

	doc, err := st.Get(ctx, "users", "uid1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", doc.Str("firstName"), "merge preserves unnamed fields")
	assert.False(t, doc.Bool("online"))

	// Without merge the document is replaced.
	require.NoError(t, st.Set(ctx, "users", "uid1", map[string]any{"online": true}, false))
	doc, err = st.Get(ctx, "users", "uid1")
	require.NoError(t, err)
	assert.Equal(t, "", doc.Str("firstName"))
}

func TestStore_UpdateMissing(t *testing.T) {
	st := openStore(t)

	err := st.Update(context.Background(), "users", "nobody", map[string]any{"online": true})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_UpdateIncrementAndUnion(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "chats", "c1", map[string]any{
		"unreadCounts": map[string]any{"uid1": 0, "uid2": 0},
	}, false))

	for i := 0; i < 5; i++ {
		require.NoError(t, st.Update(ctx, "chats", "c1", map[string]any{
			"unreadCounts.uid2": store.Increment(1),
		}))
	}
	require.NoError(t, st.Update(ctx, "chats", "c1", map[string]any{
		"members": store.ArrayUnion("uid1", "uid2", "uid1"),
	}))

	doc, err := st.Get(ctx, "chats", "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), doc.IntMap("unreadCounts")["uid2"])
	assert.Equal(t, int64(0), doc.IntMap("unreadCounts")["uid1"])
	assert.Equal(t, []string{"uid1", "uid2"}, doc.Strs("members"))
}

func TestStore_AddAssignsID(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	id1, err := st.Add(ctx, "chats/c1/messages", map[string]any{"text": "hi"})
	require.NoError(t, err)
	id2, err := st.Add(ctx, "chats/c1/messages", map[string]any{"text": "there"})
	require.NoError(t, err)
	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)

	docs, err := st.List(ctx, "chats/c1/messages")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestStore_SubscribeDoc(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "users", "uid1", map[string]any{"online": false}, false))

	var mu sync.Mutex
	var states []bool
	unsub, err := st.SubscribeDoc("users", "uid1", func(doc store.Document) {
		mu.Lock()
		states = append(states, doc.Bool("online"))
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, st.Update(ctx, "users", "uid1", map[string]any{"online": true}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false, true}, states, "initial state then change")
}

func TestStore_SubscribeCollection(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "chats", "c1", map[string]any{"lastMessage": ""}, false))

	var mu sync.Mutex
	var snaps []store.QuerySnapshot
	unsub, err := st.SubscribeCollection("chats", func(snap store.QuerySnapshot) {
		mu.Lock()
		snaps = append(snaps, snap)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.NoError(t, st.Set(ctx, "chats", "c2", map[string]any{"lastMessage": ""}, false))
	require.NoError(t, st.Update(ctx, "chats", "c1", map[string]any{"lastMessage": "hi"}))

	mu.Lock()
	require.Len(t, snaps, 3)
	assert.Len(t, snaps[0].Docs, 1, "initial snapshot carries existing docs")
	assert.Equal(t, store.Added, snaps[0].Changes[0].Kind)
	assert.Equal(t, store.Added, snaps[1].Changes[0].Kind, "new doc arrives as Added")
	assert.Equal(t, "c2", snaps[1].Changes[0].Doc.ID)
	assert.Equal(t, store.Modified, snaps[2].Changes[0].Kind, "update arrives as Modified")
	mu.Unlock()

	unsub()
	require.NoError(t, st.Set(ctx, "chats", "c3", map[string]any{}, false))

	mu.Lock()
	assert.Len(t, snaps, 3, "no delivery after unsubscribe")
	mu.Unlock()
}

func TestStore_UnsubscribeIdempotent(t *testing.T) {
	st := openStore(t)

	unsub, err := st.SubscribeCollection("chats", func(store.QuerySnapshot) {})
	require.NoError(t, err)
	unsub()
	unsub() // second call must not panic
}
