package chat

import (
	"context"
	"sync"
	"time"

	"kindling/internal/models"
	"kindling/internal/store"
	"kindling/internal/subscriptions"
)

// Synchronizer owns one client's live view of a conversation: the ordered
// message stream, the local unread count, and the read watermark. One
// Synchronizer per open conversation screen; Close releases its
// subscriptions.
type Synchronizer struct {
	store  store.Store
	chatID string
	userID string
	scope  *subscriptions.Scope

	mu          sync.Mutex
	messages    []models.Message
	seen        map[string]bool
	unread      int64
	lastReadAt  time.Time
	initialized bool
	onMessage   func(models.Message)
}

// NewSynchronizer returns a detached Synchronizer for the given
// conversation and local user. Call Attach to start receiving updates.
func NewSynchronizer(st store.Store, chatID, userID string) *Synchronizer {
	return &Synchronizer{
		store:  st,
		chatID: chatID,
		userID: userID,
		scope:  subscriptions.NewScope(),
		seen:   map[string]bool{},
	}
}

// OnMessage registers a callback for messages observed after the initial
// snapshot. The initial catch-up never fires it: a listener attach must
// not replay pre-existing history as fresh arrivals.
func (s *Synchronizer) OnMessage(fn func(models.Message)) {
	s.mu.Lock()
	s.onMessage = fn
	s.mu.Unlock()
}

// Attach subscribes to the conversation document and its message stream.
func (s *Synchronizer) Attach(ctx context.Context) error {
	// Seed the watermark before subscribing so a notification decision
	// never runs against a zero watermark.
	if doc, err := s.store.Get(ctx, models.ChatsCollection, s.chatID); err == nil {
		s.observeConversation(doc)
	}

	docUnsub, err := s.store.SubscribeDoc(models.ChatsCollection, s.chatID, s.observeConversation)
	if err != nil {
		return models.NewStoreUnavailableError(err)
	}
	s.scope.Add(docUnsub)

	msgUnsub, err := s.store.SubscribeCollection(models.MessagesCollection(s.chatID), s.observeMessages)
	if err != nil {
		s.scope.Close()
		return models.NewStoreUnavailableError(err)
	}
	s.scope.Add(msgUnsub)
	return nil
}

// Close tears down every subscription this synchronizer owns.
func (s *Synchronizer) Close() {
	s.scope.Close()
}

// SendMessage sends from the local user in this conversation.
func (s *Synchronizer) SendMessage(ctx context.Context, text string) (*models.Message, error) {
	return SendMessage(ctx, s.store, s.chatID, s.userID, text)
}

// MarkRead marks the conversation read for the local user and advances the
// local watermark. Safe to call from every focus/blur/background trigger.
func (s *Synchronizer) MarkRead(ctx context.Context) error {
	if err := MarkRead(ctx, s.store, s.chatID, s.userID); err != nil {
		return err
	}
	s.advanceWatermark(time.Now().UTC())
	return nil
}

// Messages returns the current message list, ascending by server
// timestamp.
func (s *Synchronizer) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

// Unread returns the local user's unread count as last observed.
func (s *Synchronizer) Unread() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// LastReadAt returns the read watermark: the maximum of every locally
// initiated read and every value observed from the store. It never
// regresses, so a stale snapshot from another device cannot pull it back.
func (s *Synchronizer) LastReadAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReadAt
}

// Initialized reports whether the initial message snapshot has been
// consumed.
func (s *Synchronizer) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *Synchronizer) observeConversation(doc store.Document) {
	conv := models.ConversationFromDocument(doc)
	s.mu.Lock()
	s.unread = conv.UnreadFor(s.userID)
	s.mu.Unlock()
	if conv.LastReadAt != nil {
		s.advanceWatermark(*conv.LastReadAt)
	}
}

func (s *Synchronizer) advanceWatermark(t time.Time) {
	s.mu.Lock()
	if t.After(s.lastReadAt) {
		s.lastReadAt = t
	}
	s.mu.Unlock()
}

func (s *Synchronizer) observeMessages(snap store.QuerySnapshot) {
	msgs := make([]models.Message, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		msgs = append(msgs, models.MessageFromDocument(doc))
	}
	models.SortMessages(msgs)

	s.mu.Lock()
	s.messages = msgs

	if !s.initialized {
		s.initialized = true
		for _, m := range msgs {
			s.seen[m.ID] = true
		}
		s.mu.Unlock()
		return
	}

	var fresh []models.Message
	for _, change := range snap.Changes {
		if change.Kind != store.Added || s.seen[change.Doc.ID] {
			continue
		}
		s.seen[change.Doc.ID] = true
		fresh = append(fresh, models.MessageFromDocument(change.Doc))
	}
	fn := s.onMessage
	s.mu.Unlock()

	if fn == nil {
		return
	}
	for _, m := range fresh {
		fn(m)
	}
}
