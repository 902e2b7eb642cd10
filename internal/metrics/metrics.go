// Package metrics exposes engine counters for scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LikesRecorded counts one-directional likes durably written.
	LikesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kindling_likes_recorded_total",
		Help: "One-directional like actions recorded in the store.",
	})

	// MatchesDetected counts mutual matches detected on the like path.
	MatchesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kindling_matches_detected_total",
		Help: "Mutual matches detected and provisioned.",
	})

	// MessagesSent counts messages durably appended.
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kindling_messages_sent_total",
		Help: "Messages appended to conversations.",
	})

	// MessagesBlocked counts sends rejected by the recipient's block list.
	MessagesBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kindling_messages_blocked_total",
		Help: "Message sends rejected because the recipient blocked the sender.",
	})

	// NotificationsScheduled counts local notifications handed to the
	// dispatcher.
	NotificationsScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kindling_notifications_scheduled_total",
		Help: "Local notifications scheduled by the bridge.",
	})
)
