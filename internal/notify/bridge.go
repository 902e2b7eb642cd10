// Package notify decides whether an incoming message should raise a local
// notification and hands accepted ones to the dispatch collaborator.
package notify

import (
	"context"
	"log/slog"
	"time"

	"kindling/internal/featureflags"
	"kindling/internal/metrics"
	"kindling/internal/models"
)

// Notification is the payload handed to the dispatch collaborator.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// Dispatcher is the external notification-dispatch capability.
type Dispatcher interface {
	ScheduleLocalNotification(ctx context.Context, n Notification) error
}

// State is the local client state a notification decision runs against.
type State struct {
	// LocalUserID is the signed-in user on this device.
	LocalUserID string
	// ScreenFocused is true while the conversation's screen is focused.
	ScreenFocused bool
	// AppForegrounded is true while the app is in an active state.
	AppForegrounded bool
	// LastReadAt is the conversation's read watermark.
	LastReadAt time.Time
	// InitialSnapshot is true while the message is part of the first
	// snapshot delivered after subscribing.
	InitialSnapshot bool
}

// Decision reports whether the message should raise a notification. Pure
// function, no side effects.
//
// Every message replayed by the initial snapshot catch-up is rejected:
// a subscription's first callback delivers the entire existing history,
// and without this guard each app start would re-notify all of it.
func Decision(msg models.Message, s State) bool {
	if s.InitialSnapshot {
		return false
	}
	if msg.SenderID == s.LocalUserID {
		return false
	}
	if s.ScreenFocused || s.AppForegrounded {
		return false
	}
	return msg.Timestamp.After(s.LastReadAt)
}

// Bridge connects synchronizer message events to the dispatcher.
type Bridge struct {
	dispatcher Dispatcher
	flags      *featureflags.Manager
	flagName   string
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithRolloutFlag gates dispatching behind a feature flag evaluated per
// local user, so notifications can be rolled out gradually.
func WithRolloutFlag(m *featureflags.Manager, name string) Option {
	return func(b *Bridge) {
		b.flags = m
		b.flagName = name
	}
}

// NewBridge returns a Bridge using the given dispatcher.
func NewBridge(d Dispatcher, opts ...Option) *Bridge {
	b := &Bridge{dispatcher: d}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Handle runs the decision for one incoming message and schedules a local
// notification when it passes. senderName titles the notification; chatID
// rides along in the data payload for tap-to-open navigation.
func (b *Bridge) Handle(ctx context.Context, msg models.Message, s State, senderName, chatID string) bool {
	if b.flags != nil && !b.flags.Enabled(b.flagName, s.LocalUserID) {
		return false
	}
	if !Decision(msg, s) {
		return false
	}
	n := Notification{
		Title: senderName,
		Body:  msg.Text,
		Data: map[string]string{
			"chatId":   chatID,
			"senderId": msg.SenderID,
		},
	}
	if err := b.dispatcher.ScheduleLocalNotification(ctx, n); err != nil {
		slog.WarnContext(ctx, "failed to schedule notification", "chat_id", chatID, "err", err)
		return false
	}
	metrics.NotificationsScheduled.Inc()
	return true
}
