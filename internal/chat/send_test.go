package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kindling/internal/models"
	"kindling/internal/store"
	"kindling/internal/store/gormstore"
)

func setupChat(t *testing.T) *gormstore.Store {
	t.Helper()
	st, err := gormstore.OpenSQLite(":memory:")
	require.NoError(t, err)

	ctx := context.Background()
	for _, id := range []string{"uid1", "uid2", "uid3"} {
		u := &models.User{ID: id, FirstName: "User " + id}
		require.NoError(t, st.Set(ctx, models.UsersCollection, id, u.Fields(), false))
	}
	createChat(t, st, "uid1", "uid2")
	return st
}

func createChat(t *testing.T, st *gormstore.Store, a, b string) string {
	t.Helper()
	chatID := models.ChatID(a, b)
	require.NoError(t, st.Set(context.Background(), models.ChatsCollection, chatID, map[string]any{
		"members":         []string{a, b},
		"createdAt":       store.ServerTimestamp(),
		"lastMessage":     "",
		"lastMessageTime": store.ServerTimestamp(),
		"unreadCounts":    map[string]any{a: int64(0), b: int64(0)},
	}, false))
	return chatID
}

func loadConversation(t *testing.T, st store.Store, chatID string) *models.Conversation {
	t.Helper()
	doc, err := st.Get(context.Background(), models.ChatsCollection, chatID)
	require.NoError(t, err)
	return models.ConversationFromDocument(doc)
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()
	st := setupChat(t)

	stamp := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	st.SetClock(func() time.Time { return stamp })

	msg, err := SendMessage(ctx, st, "uid1_uid2", "uid1", "  Hello there  ")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", msg.Text, "text is trimmed before storage")
	assert.Equal(t, "uid1", msg.SenderID)
	assert.True(t, stamp.Equal(msg.Timestamp))

	conv := loadConversation(t, st, "uid1_uid2")
	assert.Equal(t, "Hello there", conv.LastMessage)
	assert.Equal(t, "uid1", conv.LastMessageSenderID)
	assert.Equal(t, int64(1), conv.UnreadFor("uid2"))
	assert.Equal(t, int64(0), conv.UnreadFor("uid1"), "senders never count their own messages")
}

func TestSendMessage_UnreadAccumulates(t *testing.T) {
	ctx := context.Background()
	st := setupChat(t)

	for i := 0; i < 3; i++ {
		_, err := SendMessage(ctx, st, "uid1_uid2", "uid1", "ping")
		require.NoError(t, err)
	}
	_, err := SendMessage(ctx, st, "uid1_uid2", "uid2", "pong")
	require.NoError(t, err)

	conv := loadConversation(t, st, "uid1_uid2")
	assert.Equal(t, int64(3), conv.UnreadFor("uid2"))
	assert.Equal(t, int64(1), conv.UnreadFor("uid1"))
}

func TestSendMessage_Validation(t *testing.T) {
	ctx := context.Background()
	st := setupChat(t)

	_, err := SendMessage(ctx, st, "uid1_uid2", "uid1", "   ")
	assert.True(t, models.IsCode(err, models.CodeInvalidMessage))

	_, err = SendMessage(ctx, st, "uid1_uid2", "uid1", strings.Repeat("a", MaxMessageLen+1))
	assert.True(t, models.IsCode(err, models.CodeInvalidMessage))

	_, err = SendMessage(ctx, st, "uid1_uid2", "uid3", "hi")
	assert.True(t, models.IsCode(err, models.CodeInvalidOperation))

	_, err = SendMessage(ctx, st, "uid1_uid9", "uid1", "hi")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestSendMessage_MaxLengthBoundary(t *testing.T) {
	ctx := context.Background()
	st := setupChat(t)

	msg, err := SendMessage(ctx, st, "uid1_uid2", "uid1", strings.Repeat("a", MaxMessageLen))
	require.NoError(t, err)
	assert.Len(t, msg.Text, MaxMessageLen)
}

func TestSendMessage_Blocked(t *testing.T) {
	ctx := context.Background()
	st := setupChat(t)

	require.NoError(t, st.Update(ctx, models.UsersCollection, "uid2", map[string]any{
		"blocked": store.ArrayUnion("uid1"),
	}))

	_, err := SendMessage(ctx, st, "uid1_uid2", "uid1", "hello?")
	assert.True(t, models.IsCode(err, models.CodeBlocked))

	// Nothing was written: no message, no unread bump.
	docs, err := st.List(ctx, models.MessagesCollection("uid1_uid2"))
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, int64(0), loadConversation(t, st, "uid1_uid2").UnreadFor("uid2"))

	// The block is directional: uid2 can still message uid1.
	_, err = SendMessage(ctx, st, "uid1_uid2", "uid2", "hello")
	assert.NoError(t, err)

	// Unblocking restores the send path.
	require.NoError(t, st.Update(ctx, models.UsersCollection, "uid2", map[string]any{
		"blocked": store.ArrayRemove("uid1"),
	}))
	_, err = SendMessage(ctx, st, "uid1_uid2", "uid1", "hello again")
	assert.NoError(t, err)
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	st := setupChat(t)

	for i := 0; i < 2; i++ {
		_, err := SendMessage(ctx, st, "uid1_uid2", "uid1", "ping")
		require.NoError(t, err)
	}

	stamp := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	st.SetClock(func() time.Time { return stamp })

	require.NoError(t, MarkRead(ctx, st, "uid1_uid2", "uid2"))

	conv := loadConversation(t, st, "uid1_uid2")
	assert.Equal(t, int64(0), conv.UnreadFor("uid2"))
	require.NotNil(t, conv.LastReadAt)
	assert.True(t, stamp.Equal(*conv.LastReadAt))

	// Idempotent from every focus/blur trigger.
	require.NoError(t, MarkRead(ctx, st, "uid1_uid2", "uid2"))
	assert.Equal(t, int64(0), loadConversation(t, st, "uid1_uid2").UnreadFor("uid2"))
}

func TestMarkRead_NonMember(t *testing.T) {
	ctx := context.Background()
	st := setupChat(t)

	err := MarkRead(ctx, st, "uid1_uid2", "uid3")
	assert.True(t, models.IsCode(err, models.CodeInvalidOperation))
}
