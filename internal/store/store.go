// Package store defines the document-store abstraction the engine reads and
// writes through: per-document get/set/update with atomic field operations,
// store-assigned ids, and push-style change subscriptions.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the document does not exist.
var ErrNotFound = errors.New("document not found")

// Unsubscribe tears down a subscription. Safe to call more than once.
type Unsubscribe func()

// ChangeKind classifies a document change inside a QuerySnapshot.
type ChangeKind int

const (
	// Added indicates a document not seen by this subscription before.
	Added ChangeKind = iota
	// Modified indicates an update to a previously delivered document.
	Modified
)

// Change pairs a changed document with the kind of change.
type Change struct {
	Kind ChangeKind
	Doc  Document
}

// QuerySnapshot is delivered to collection subscribers. The first snapshot
// after subscribing carries the full existing collection with every change
// marked Added; later snapshots carry the full set plus the delta.
type QuerySnapshot struct {
	Docs    []Document
	Changes []Change
}

// Store is the external document database the engine delegates persistence
// to. Implementations must resolve ServerTimestamp sentinels from their own
// clock and apply Increment atomically, never as client read-then-write.
type Store interface {
	// Get returns the document or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Set writes the document. With merge, existing fields not named in
	// fields are preserved.
	Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error

	// Update applies partial field updates to an existing document. Keys may
	// use dotted paths ("unreadCounts.<uid>") and values may be the
	// Increment, ArrayUnion, ArrayRemove, and ServerTimestamp sentinels.
	// Returns ErrNotFound if the document does not exist.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Add appends a new document with a store-assigned id.
	Add(ctx context.Context, collection string, fields map[string]any) (string, error)

	// List returns every document in the collection.
	List(ctx context.Context, collection string) ([]Document, error)

	// SubscribeDoc delivers the current document state immediately (if it
	// exists), then every subsequent change.
	SubscribeDoc(collection, id string, fn func(Document)) (Unsubscribe, error)

	// SubscribeCollection delivers an initial QuerySnapshot of the whole
	// collection, then one snapshot per change.
	SubscribeCollection(collection string, fn func(QuerySnapshot)) (Unsubscribe, error)
}

type incrementOp struct{ delta int64 }

type arrayUnionOp struct{ values []any }

type arrayRemoveOp struct{ values []any }

type serverTimestampOp struct{}

// Increment returns a sentinel that atomically adds delta to a numeric field.
func Increment(delta int64) any { return incrementOp{delta: delta} }

// ArrayUnion returns a sentinel that adds values to an array field with
// set semantics: at-most-once membership regardless of repeated calls.
func ArrayUnion(values ...any) any { return arrayUnionOp{values: values} }

// ArrayRemove returns a sentinel that removes values from an array field.
func ArrayRemove(values ...any) any { return arrayRemoveOp{values: values} }

// ServerTimestamp returns a sentinel resolved to the store's clock at write
// time. Local wall clocks are never trusted for ordering.
func ServerTimestamp() any { return serverTimestampOp{} }
