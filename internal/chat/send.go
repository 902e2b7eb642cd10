// Package chat keeps a client's view of one conversation consistent:
// message ordering by server timestamp, per-participant unread counters,
// and a monotonic read-receipt watermark.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"

	"kindling/internal/metrics"
	"kindling/internal/models"
	"kindling/internal/store"
)

var tracer = otel.Tracer("kindling/internal/chat")

// MaxMessageLen caps message text length after trimming.
const MaxMessageLen = 1000

// SendMessage appends a message to the conversation and updates the
// denormalized conversation fields, incrementing the recipient's unread
// entry by exactly one - never the sender's own.
//
// The recipient's block set is read immediately before the send. The check
// is best-effort against concurrent block actions; that race is an
// accepted tradeoff, not a security boundary.
func SendMessage(ctx context.Context, st store.Store, chatID, senderID, text string) (*models.Message, error) {
	ctx, span := tracer.Start(ctx, "chat.SendMessage")
	defer span.End()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, models.NewInvalidMessageError("Message text is required")
	}
	if len(trimmed) > MaxMessageLen {
		return nil, models.NewInvalidMessageError(fmt.Sprintf("Message too long (max %d characters)", MaxMessageLen))
	}

	conv, err := getConversation(ctx, st, chatID)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(senderID) {
		return nil, models.NewInvalidOperationError("Sender is not a member of this conversation")
	}
	recipientID := conv.OtherMember(senderID)

	recipientDoc, err := st.Get(ctx, models.UsersCollection, recipientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.NewNotFoundError("User", recipientID)
		}
		return nil, models.NewStoreUnavailableError(err)
	}
	if models.UserFromDocument(recipientDoc).HasBlocked(senderID) {
		metrics.MessagesBlocked.Inc()
		return nil, models.NewBlockedError("You cannot message this user")
	}

	// Two logical writes. Each is individually durable; they are not
	// atomic across the store boundary.
	msgID, err := st.Add(ctx, models.MessagesCollection(chatID), map[string]any{
		"senderId":  senderID,
		"text":      trimmed,
		"timestamp": store.ServerTimestamp(),
	})
	if err != nil {
		span.RecordError(err)
		return nil, models.NewStoreUnavailableError(err)
	}

	if err := st.Update(ctx, models.ChatsCollection, chatID, map[string]any{
		"lastMessage":                  trimmed,
		"lastMessageTime":              store.ServerTimestamp(),
		"lastMessageSenderId":          senderID,
		"unreadCounts." + recipientID: store.Increment(1),
	}); err != nil {
		span.RecordError(err)
		return nil, models.NewStoreUnavailableError(err)
	}

	metrics.MessagesSent.Inc()

	msgDoc, err := st.Get(ctx, models.MessagesCollection(chatID), msgID)
	if err != nil {
		return &models.Message{ID: msgID, SenderID: senderID, Text: trimmed}, nil
	}
	msg := models.MessageFromDocument(msgDoc)
	return &msg, nil
}

// MarkRead resets the reader's unread entry to zero and advances the
// conversation's read watermark to the store clock. Idempotent; callers
// trigger it on screen focus, screen blur, and app backgrounding while the
// conversation was active.
func MarkRead(ctx context.Context, st store.Store, chatID, readerID string) error {
	ctx, span := tracer.Start(ctx, "chat.MarkRead")
	defer span.End()

	conv, err := getConversation(ctx, st, chatID)
	if err != nil {
		return err
	}
	if !conv.HasMember(readerID) {
		return models.NewInvalidOperationError("Reader is not a member of this conversation")
	}

	if err := st.Update(ctx, models.ChatsCollection, chatID, map[string]any{
		"lastReadAt":                store.ServerTimestamp(),
		"unreadCounts." + readerID: int64(0),
	}); err != nil {
		span.RecordError(err)
		return models.NewStoreUnavailableError(err)
	}
	return nil
}

func getConversation(ctx context.Context, st store.Store, chatID string) (*models.Conversation, error) {
	doc, err := st.Get(ctx, models.ChatsCollection, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.NewNotFoundError("Conversation", chatID)
		}
		return nil, models.NewStoreUnavailableError(err)
	}
	return models.ConversationFromDocument(doc), nil
}
