// Package match records one-directional likes, detects mutual matches, and
// provisions the shared conversation for a matched pair.
package match

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kindling/internal/metrics"
	"kindling/internal/models"
	"kindling/internal/store"
)

var tracer = otel.Tracer("kindling/internal/match")

// Event is emitted when a mutual match is detected, carrying the matched
// counterpart's profile for the caller's UI.
type Event struct {
	UserID      string
	Counterpart *models.User
	ChatID      string
}

// Result reports the outcome of a like action.
type Result struct {
	// AlreadyLiked signals the idempotent no-op path: the liker had
	// already liked this candidate. Not an error.
	AlreadyLiked bool
	// Matched reports whether this like completed a mutual match.
	Matched bool
	// ChatID is the provisioned conversation id when Matched.
	ChatID string
	// Counterpart is the matched user's profile when Matched.
	Counterpart *models.User
}

// Engine implements the like/match flow. The two users' like sets are the
// single source of truth for matches: there is no separate "match decided"
// flag, so a match interrupted between the like write and conversation
// provisioning is re-derived the next time either party's likes are
// evaluated.
type Engine struct {
	store   store.Store
	onMatch func(Event)
}

// Option configures an Engine.
type Option func(*Engine)

// WithMatchHandler registers a callback invoked once per detected match on
// the detecting client.
func WithMatchHandler(fn func(Event)) Option {
	return func(e *Engine) { e.onMatch = fn }
}

// NewEngine returns an Engine backed by the given store.
func NewEngine(st store.Store, opts ...Option) *Engine {
	e := &Engine{store: st}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Like records likerID liking candidateID and runs match detection.
//
// Self-likes fail with INVALID_OPERATION. A repeated like is a no-op
// signalled through Result.AlreadyLiked and never re-fires the match
// event. When the candidate had already liked the liker, the mutual match
// is recorded on both user documents and the pair's conversation is
// created if absent; creation is existence-checked, so concurrent
// completing calls from both sides still end with exactly one conversation.
func (e *Engine) Like(ctx context.Context, likerID, candidateID string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "match.Like", trace.WithAttributes(
		attribute.String("liker_id", likerID),
	))
	defer span.End()

	if likerID == "" || candidateID == "" {
		return nil, models.NewInvalidOperationError("Both user ids are required")
	}
	if likerID == candidateID {
		return nil, models.NewInvalidOperationError("Users cannot like themselves")
	}

	liker, err := e.getUser(ctx, likerID)
	if err != nil {
		return nil, err
	}
	candidate, err := e.getUser(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	if liker.HasLiked(candidateID) {
		return &Result{AlreadyLiked: true}, nil
	}

	if err := e.store.Update(ctx, models.UsersCollection, likerID, map[string]any{
		"likes": store.ArrayUnion(candidateID),
	}); err != nil {
		span.RecordError(err)
		return nil, models.NewStoreUnavailableError(err)
	}
	metrics.LikesRecorded.Inc()

	if !candidate.HasLiked(likerID) {
		return &Result{}, nil
	}

	// Mutual: the like above is already durable, so even if provisioning
	// fails here the match resurfaces on the next evaluation of either
	// party's like sets.
	chatID, err := e.provisionMatch(ctx, likerID, candidateID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	slog.InfoContext(ctx, "mutual match detected", "user_id", likerID, "chat_id", chatID)
	metrics.MatchesDetected.Inc()
	if e.onMatch != nil {
		e.onMatch(Event{UserID: likerID, Counterpart: candidate, ChatID: chatID})
	}

	return &Result{Matched: true, ChatID: chatID, Counterpart: candidate}, nil
}

// Reconcile re-derives matches for one user from the like sets alone,
// provisioning anything a previously interrupted like call left pending.
// Callers may schedule this as an idle pass; the engine never runs it on
// its own.
func (e *Engine) Reconcile(ctx context.Context, userID string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "match.Reconcile")
	defer span.End()

	user, err := e.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var repaired []string
	for _, likedID := range user.Likes {
		liked, err := e.getUser(ctx, likedID)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				continue
			}
			return repaired, err
		}
		if !liked.HasLiked(userID) {
			continue
		}
		if user.HasMatched(likedID) {
			// Conversation may still be missing if creation failed after
			// the matchedUsers write; provisioning is idempotent.
			if _, perr := e.ensureConversation(ctx, userID, likedID); perr != nil {
				return repaired, perr
			}
			continue
		}
		if _, perr := e.provisionMatch(ctx, userID, likedID); perr != nil {
			return repaired, perr
		}
		repaired = append(repaired, likedID)
	}
	return repaired, nil
}

// LikedBy returns the users whose like sets contain userID, for the
// "liked you" screen.
func (e *Engine) LikedBy(ctx context.Context, userID string) ([]*models.User, error) {
	docs, err := e.store.List(ctx, models.UsersCollection)
	if err != nil {
		return nil, models.NewStoreUnavailableError(err)
	}
	var likedMe []*models.User
	for _, doc := range docs {
		if doc.ID == userID {
			continue
		}
		u := models.UserFromDocument(doc)
		if u.HasLiked(userID) {
			likedMe = append(likedMe, u)
		}
	}
	return likedMe, nil
}

// provisionMatch records the mutual match on both user documents and
// ensures the pair's conversation exists.
func (e *Engine) provisionMatch(ctx context.Context, likerID, candidateID string) (string, error) {
	if err := e.store.Update(ctx, models.UsersCollection, likerID, map[string]any{
		"matchedUsers": store.ArrayUnion(candidateID),
		"seenMatches":  store.ArrayUnion(candidateID),
	}); err != nil {
		return "", models.NewStoreUnavailableError(err)
	}
	if err := e.store.Update(ctx, models.UsersCollection, candidateID, map[string]any{
		"matchedUsers": store.ArrayUnion(likerID),
	}); err != nil {
		return "", models.NewStoreUnavailableError(err)
	}
	return e.ensureConversation(ctx, likerID, candidateID)
}

// ensureConversation creates the deterministic conversation for the pair
// if it does not already exist. Last writer on the no-op path wins; no
// duplicate conversation can result because both sides derive the same id.
func (e *Engine) ensureConversation(ctx context.Context, a, b string) (string, error) {
	chatID := models.ChatID(a, b)

	_, err := e.store.Get(ctx, models.ChatsCollection, chatID)
	if err == nil {
		return chatID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", models.NewStoreUnavailableError(err)
	}

	members := []string{a, b}
	if members[0] > members[1] {
		members[0], members[1] = members[1], members[0]
	}
	fields := map[string]any{
		"members":         members,
		"createdAt":       store.ServerTimestamp(),
		"lastMessage":     "",
		"lastMessageTime": store.ServerTimestamp(),
		"unreadCounts": map[string]any{
			a: int64(0),
			b: int64(0),
		},
	}

	if err := e.store.Set(ctx, models.ChatsCollection, chatID, fields, false); err != nil {
		return "", models.NewStoreUnavailableError(err)
	}
	return chatID, nil
}

func (e *Engine) getUser(ctx context.Context, id string) (*models.User, error) {
	doc, err := e.store.Get(ctx, models.UsersCollection, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewStoreUnavailableError(err)
	}
	return models.UserFromDocument(doc), nil
}
