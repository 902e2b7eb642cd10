package models

import (
	"time"

	"kindling/internal/store"
)

// Collection names in the document store.
const (
	UsersCollection = "users"
	ChatsCollection = "chats"
)

// MessagesCollection returns the per-conversation message subcollection.
func MessagesCollection(chatID string) string {
	return ChatsCollection + "/" + chatID + "/messages"
}

// Settings holds per-user preferences consulted by other components.
type Settings struct {
	// ShowOnline gates whether online/lastSeen are ever shown truthfully to
	// other users. The tracker always writes true state; consumers gate.
	ShowOnline bool `json:"showOnline"`
}

// User represents a user document. Likes, MatchedUsers, and Blocked are
// sets: membership is at-most-once regardless of repeated writes.
type User struct {
	ID           string     `json:"id"`
	FirstName    string     `json:"firstName"`
	Photos       []string   `json:"photos,omitempty"`
	Likes        []string   `json:"likes"`        // ids this user has liked
	MatchedUsers []string   `json:"matchedUsers"` // ids confirmed mutual
	SeenMatches  []string   `json:"seenMatches"`  // matches already shown in the UI
	Blocked      []string   `json:"blocked"`      // ids this user has blocked
	Online       bool       `json:"online"`
	LastSeen     *time.Time `json:"lastSeen,omitempty"`
	Settings     Settings   `json:"settings"`
	Location     *GeoPoint  `json:"location,omitempty"`
}

// UserFromDocument decodes a user snapshot.
func UserFromDocument(doc store.Document) *User {
	u := &User{
		ID:           doc.ID,
		FirstName:    doc.Str("firstName"),
		Photos:       doc.Strs("photos"),
		Likes:        doc.Strs("likes"),
		MatchedUsers: doc.Strs("matchedUsers"),
		SeenMatches:  doc.Strs("seenMatches"),
		Blocked:      doc.Strs("blocked"),
		Online:       doc.Bool("online"),
		Settings:     Settings{ShowOnline: doc.Bool("settings.showOnline")},
	}
	if t, ok := doc.Time("lastSeen"); ok {
		u.LastSeen = &t
	}
	if loc := doc.Map("location"); loc != nil {
		if p, err := NormalizeGeo(loc); err == nil {
			u.Location = &p
		}
	}
	return u
}

// Fields renders the user for document creation at signup.
func (u *User) Fields() map[string]any {
	fields := map[string]any{
		"firstName":    u.FirstName,
		"likes":        strSlice(u.Likes),
		"matchedUsers": strSlice(u.MatchedUsers),
		"seenMatches":  strSlice(u.SeenMatches),
		"blocked":      strSlice(u.Blocked),
		"online":       u.Online,
		"settings":     map[string]any{"showOnline": u.Settings.ShowOnline},
	}
	if len(u.Photos) > 0 {
		fields["photos"] = strSlice(u.Photos)
	}
	if u.LastSeen != nil {
		fields["lastSeen"] = *u.LastSeen
	}
	if u.Location != nil {
		fields["location"] = map[string]any{
			"latitude":  u.Location.Latitude,
			"longitude": u.Location.Longitude,
		}
	}
	return fields
}

// HasLiked reports whether this user has liked the given user.
func (u *User) HasLiked(id string) bool { return contains(u.Likes, id) }

// HasMatched reports whether the given user is a confirmed mutual match.
func (u *User) HasMatched(id string) bool { return contains(u.MatchedUsers, id) }

// HasBlocked reports whether this user has blocked the given user.
func (u *User) HasBlocked(id string) bool { return contains(u.Blocked, id) }

func contains(set []string, id string) bool {
	for _, e := range set {
		if e == id {
			return true
		}
	}
	return false
}

func strSlice(set []string) []string {
	if set == nil {
		return []string{}
	}
	return set
}
