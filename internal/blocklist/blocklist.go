// Package blocklist maintains each user's set of blocked counterparts.
// Blocks are directional: A blocking B suppresses B's messages to A but
// does not hide B from A or remove prior history.
package blocklist

import (
	"context"
	"errors"

	"kindling/internal/models"
	"kindling/internal/store"
)

// Manager reads and writes block sets through the document store.
type Manager struct {
	store store.Store
}

// NewManager returns a Manager backed by the given store.
func NewManager(st store.Store) *Manager {
	return &Manager{store: st}
}

// Block adds blockedID to blockerID's block set. Idempotent set add.
func (m *Manager) Block(ctx context.Context, blockerID, blockedID string) error {
	if err := validatePair(blockerID, blockedID); err != nil {
		return err
	}
	err := m.store.Update(ctx, models.UsersCollection, blockerID, map[string]any{
		"blocked": store.ArrayUnion(blockedID),
	})
	return mapStoreErr(err, "User", blockerID)
}

// Unblock removes blockedID from blockerID's block set. Idempotent.
func (m *Manager) Unblock(ctx context.Context, blockerID, blockedID string) error {
	if err := validatePair(blockerID, blockedID); err != nil {
		return err
	}
	err := m.store.Update(ctx, models.UsersCollection, blockerID, map[string]any{
		"blocked": store.ArrayRemove(blockedID),
	})
	return mapStoreErr(err, "User", blockerID)
}

// IsBlocked reports whether a has blocked b. Directional.
func (m *Manager) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	doc, err := m.store.Get(ctx, models.UsersCollection, a)
	if err != nil {
		return false, mapStoreErr(err, "User", a)
	}
	return models.UserFromDocument(doc).HasBlocked(b), nil
}

// Blocked returns a's full block set, for list screens annotating "you
// blocked this user" without hiding the conversation.
func (m *Manager) Blocked(ctx context.Context, a string) ([]string, error) {
	doc, err := m.store.Get(ctx, models.UsersCollection, a)
	if err != nil {
		return nil, mapStoreErr(err, "User", a)
	}
	return models.UserFromDocument(doc).Blocked, nil
}

func validatePair(a, b string) error {
	if a == "" || b == "" {
		return models.NewInvalidOperationError("Both user ids are required")
	}
	if a == b {
		return models.NewInvalidOperationError("Users cannot block themselves")
	}
	return nil
}

func mapStoreErr(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewStoreUnavailableError(err)
}
