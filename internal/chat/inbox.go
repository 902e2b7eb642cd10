package chat

import (
	"sort"
	"sync"
	"time"

	"kindling/internal/models"
	"kindling/internal/store"
	"kindling/internal/subscriptions"
)

// InboxEntry is one row of the conversation list.
type InboxEntry struct {
	ChatID          string
	OtherUserID     string
	LastMessage     string
	LastMessageTime *time.Time
	LastSenderID    string
	Unread          int64
}

// Inbox maintains a user's conversation list, ordered by last activity
// descending with never-messaged conversations last.
type Inbox struct {
	store  store.Store
	userID string
	scope  *subscriptions.Scope

	mu       sync.Mutex
	entries  []InboxEntry
	onChange func([]InboxEntry)
}

// NewInbox returns a detached Inbox for the given user.
func NewInbox(st store.Store, userID string) *Inbox {
	return &Inbox{
		store:  st,
		userID: userID,
		scope:  subscriptions.NewScope(),
	}
}

// OnChange registers a callback fired with the full sorted list on every
// update, including the initial snapshot.
func (i *Inbox) OnChange(fn func([]InboxEntry)) {
	i.mu.Lock()
	i.onChange = fn
	i.mu.Unlock()
}

// Attach subscribes to the chats collection and starts maintaining the
// list.
func (i *Inbox) Attach() error {
	unsub, err := i.store.SubscribeCollection(models.ChatsCollection, i.observe)
	if err != nil {
		return models.NewStoreUnavailableError(err)
	}
	i.scope.Add(unsub)
	return nil
}

// Close tears down the inbox subscription.
func (i *Inbox) Close() {
	i.scope.Close()
}

// Entries returns the current sorted conversation list.
func (i *Inbox) Entries() []InboxEntry {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]InboxEntry(nil), i.entries...)
}

func (i *Inbox) observe(snap store.QuerySnapshot) {
	entries := make([]InboxEntry, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		conv := models.ConversationFromDocument(doc)
		if !conv.HasMember(i.userID) {
			continue
		}
		entry := InboxEntry{
			ChatID:       conv.ID,
			OtherUserID:  conv.OtherMember(i.userID),
			LastMessage:  conv.LastMessage,
			LastSenderID: conv.LastMessageSenderID,
			Unread:       conv.UnreadFor(i.userID),
		}
		// A conversation that has never carried a message sorts last even
		// though creation stamps lastMessageTime.
		if conv.LastMessage != "" {
			entry.LastMessageTime = conv.LastMessageTime
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(a, b int) bool {
		ta, tb := entries[a].LastMessageTime, entries[b].LastMessageTime
		switch {
		case ta == nil && tb == nil:
			return entries[a].ChatID < entries[b].ChatID
		case ta == nil:
			return false
		case tb == nil:
			return true
		default:
			return ta.After(*tb)
		}
	})

	i.mu.Lock()
	i.entries = entries
	fn := i.onChange
	i.mu.Unlock()

	if fn != nil {
		fn(append([]InboxEntry(nil), entries...))
	}
}
