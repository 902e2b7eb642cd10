// Package presence maintains the per-user online flag and last-seen
// timestamp, and projects them through the user's visibility preference at
// the point of consumption.
package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kindling/internal/models"
	"kindling/internal/store"
)

// AppState is an externally driven application lifecycle state.
type AppState string

const (
	// StateForeground means the app is active and visible.
	StateForeground AppState = "foreground"
	// StateBackground means the app has been backgrounded.
	StateBackground AppState = "background"
	// StateInactive covers transient inactive states (calls, app switcher).
	StateInactive AppState = "inactive"
)

// Status is a projected presence view of another user.
type Status struct {
	Online   bool
	LastSeen *time.Time
}

// Tracker writes true presence state for the local user. The publication
// gate lives in View, not here: the store always holds the truth and
// consumers decide what the viewer may see.
type Tracker struct {
	store store.Store
}

// NewTracker returns a Tracker backed by the given store.
func NewTracker(st store.Store) *Tracker {
	return &Tracker{store: st}
}

// SetOnline marks the user online. Called on sign-in and foreground entry.
func (t *Tracker) SetOnline(ctx context.Context, userID string) error {
	err := t.store.Update(ctx, models.UsersCollection, userID, map[string]any{
		"online": true,
	})
	return mapStoreErr(err, userID)
}

// SetOffline marks the user offline and stamps lastSeen with the store
// clock. Called on background entry, sign-out, and the termination hook.
func (t *Tracker) SetOffline(ctx context.Context, userID string) error {
	err := t.store.Update(ctx, models.UsersCollection, userID, map[string]any{
		"online":   false,
		"lastSeen": store.ServerTimestamp(),
	})
	return mapStoreErr(err, userID)
}

// HandleAppState applies an app lifecycle transition for the user.
func (t *Tracker) HandleAppState(ctx context.Context, userID string, state AppState) error {
	switch state {
	case StateForeground:
		return t.SetOnline(ctx, userID)
	case StateBackground, StateInactive:
		return t.SetOffline(ctx, userID)
	}
	return models.NewInvalidOperationError(fmt.Sprintf("unknown app state %q", state))
}

// View projects a user's presence for display to someone else. When the
// user has opted out of presence sharing the viewer sees offline with no
// last-seen time, regardless of actual state.
func View(u *models.User) Status {
	if u == nil || !u.Settings.ShowOnline {
		return Status{}
	}
	return Status{Online: u.Online, LastSeen: u.LastSeen}
}

// Watch subscribes to a counterpart's presence, delivering projected
// statuses. The returned handle must be released when the owning screen
// goes away.
func (t *Tracker) Watch(userID string, fn func(Status)) (store.Unsubscribe, error) {
	unsub, err := t.store.SubscribeDoc(models.UsersCollection, userID, func(doc store.Document) {
		fn(View(models.UserFromDocument(doc)))
	})
	if err != nil {
		slog.Warn("presence watch failed", "user_id", userID, "err", err)
		return nil, mapStoreErr(err, userID)
	}
	return unsub, nil
}

// FormatLastSeen renders a last-seen timestamp the way the chat header
// shows it.
func FormatLastSeen(lastSeen, now time.Time) string {
	minutes := int(now.Sub(lastSeen).Minutes())
	switch {
	case minutes < 1:
		return "just now"
	case minutes < 60:
		return fmt.Sprintf("%dm ago", minutes)
	case minutes < 1440:
		return fmt.Sprintf("%dh ago", minutes/60)
	default:
		return fmt.Sprintf("%dd ago", minutes/1440)
	}
}

func mapStoreErr(err error, userID string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return models.NewNotFoundError("User", userID)
	}
	return models.NewStoreUnavailableError(err)
}
