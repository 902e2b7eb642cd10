package models

import (
	"sort"
	"strings"
	"time"

	"kindling/internal/store"
)

// ChatID derives the deterministic conversation id for an unordered pair:
// the two ids sorted and joined with "_". Both sides of a match derive the
// same id regardless of who completes it, so at most one conversation can
// ever exist per pair.
func ChatID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "_")
}

// Conversation represents a chat document: the single thread scoped to one
// matched pair, with denormalized last-message fields for list rendering.
type Conversation struct {
	ID                  string           `json:"id"`
	Members             []string         `json:"members"`
	CreatedAt           *time.Time       `json:"createdAt,omitempty"`
	LastMessage         string           `json:"lastMessage"`
	LastMessageTime     *time.Time       `json:"lastMessageTime,omitempty"`
	LastMessageSenderID string           `json:"lastMessageSenderId,omitempty"`
	LastReadAt          *time.Time       `json:"lastReadAt,omitempty"`
	UnreadCounts        map[string]int64 `json:"unreadCounts"`
}

// ConversationFromDocument decodes a chat snapshot.
func ConversationFromDocument(doc store.Document) *Conversation {
	c := &Conversation{
		ID:                  doc.ID,
		Members:             doc.Strs("members"),
		LastMessage:         doc.Str("lastMessage"),
		LastMessageSenderID: doc.Str("lastMessageSenderId"),
		UnreadCounts:        doc.IntMap("unreadCounts"),
	}
	if t, ok := doc.Time("createdAt"); ok {
		c.CreatedAt = &t
	}
	if t, ok := doc.Time("lastMessageTime"); ok {
		c.LastMessageTime = &t
	}
	if t, ok := doc.Time("lastReadAt"); ok {
		c.LastReadAt = &t
	}
	return c
}

// OtherMember returns the counterpart of userID in a two-member
// conversation, or "" if userID is not a member.
func (c *Conversation) OtherMember(userID string) string {
	if !contains(c.Members, userID) {
		return ""
	}
	for _, m := range c.Members {
		if m != userID {
			return m
		}
	}
	return ""
}

// UnreadFor returns the unread count entry for the given member.
func (c *Conversation) UnreadFor(userID string) int64 {
	return c.UnreadCounts[userID]
}

// HasMember reports whether userID participates in the conversation.
func (c *Conversation) HasMember(userID string) bool {
	return contains(c.Members, userID)
}

// Message represents a message document, immutable once written. Timestamp
// is server-assigned; display order is ascending by Timestamp, never by
// local append order.
type Message struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageFromDocument decodes a message snapshot.
func MessageFromDocument(doc store.Document) Message {
	m := Message{
		ID:       doc.ID,
		SenderID: doc.Str("senderId"),
		Text:     doc.Str("text"),
	}
	if t, ok := doc.Time("timestamp"); ok {
		m.Timestamp = t
	}
	return m
}

// SortMessages orders messages ascending by server timestamp, breaking ties
// by id for a stable render order.
func SortMessages(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].Timestamp.Equal(messages[j].Timestamp) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
}
