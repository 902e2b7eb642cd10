// Package redisstore implements the document store on Redis: documents as
// JSON strings, optimistic WATCH transactions for atomic field updates, and
// pub/sub for cross-client change subscriptions.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"kindling/internal/store"
)

const txRetries = 16

// Store is a Redis-backed document store. Unlike the gorm adapter its
// change subscriptions cross process boundaries, which is what a multi-
// device user needs.
type Store struct {
	client *redis.Client
	clock  func() time.Time
}

// New wraps an existing Redis client.
func New(client *redis.Client) *Store {
	s := &Store{client: client}
	s.clock = s.serverNow
	return s
}

// Open connects to the given Redis address ("host:port").
func Open(addr string) *Store {
	return New(redis.NewClient(&redis.Options{Addr: addr}))
}

// SetClock overrides the write clock. Test hook.
func (s *Store) SetClock(clock func() time.Time) { s.clock = clock }

// serverNow reads the Redis server clock so timestamps are assigned by the
// store, not by whichever client happens to write.
func (s *Store) serverNow() time.Time {
	t, err := s.client.Time(context.Background()).Result()
	if err != nil {
		return time.Now().UTC()
	}
	return t.UTC()
}

func docKey(collection, id string) string { return "doc:" + collection + ":" + id }

func colKey(collection string) string { return "col:" + collection }

func colChannel(collection string) string { return "ch:" + collection }

func docChannel(collection, id string) string { return "ch:" + collection + ":" + id }

// event is the pub/sub payload for a changed document.
type event struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	raw, err := s.client.Get(ctx, docKey(collection, id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return store.Document{}, store.ErrNotFound
		}
		return store.Document{}, err
	}
	return decode(id, raw)
}

// Set implements store.Store.
func (s *Store) Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	return s.write(ctx, collection, id, func(data map[string]any, exists bool) (map[string]any, error) {
		if !merge || !exists {
			data = map[string]any{}
		}
		return store.ApplyUpdates(data, fields, s.clock()), nil
	})
}

// Update implements store.Store. The WATCH transaction retries on write
// conflicts so increments from racing clients are never lost.
func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.write(ctx, collection, id, func(data map[string]any, exists bool) (map[string]any, error) {
		if !exists {
			return nil, store.ErrNotFound
		}
		return store.ApplyUpdates(data, fields, s.clock()), nil
	})
}

// Add implements store.Store with a generated uuid id.
func (s *Store) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, fields, false); err != nil {
		return "", err
	}
	return id, nil
}

// List implements store.Store.
func (s *Store) List(ctx context.Context, collection string) ([]store.Document, error) {
	ids, err := s.client.SMembers(ctx, colKey(collection)).Result()
	if err != nil {
		return nil, err
	}
	docs := make([]store.Document, 0, len(ids))
	for _, id := range ids {
		doc, derr := s.Get(ctx, collection, id)
		if derr != nil {
			if errors.Is(derr, store.ErrNotFound) {
				continue
			}
			return nil, derr
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// SubscribeDoc implements store.Store.
func (s *Store) SubscribeDoc(collection, id string, fn func(store.Document)) (store.Unsubscribe, error) {
	ctx := context.Background()
	pubsub := s.client.Subscribe(ctx, docChannel(collection, id))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	if doc, err := s.Get(ctx, collection, id); err == nil {
		fn(doc)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			var ev event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				slog.Warn("dropping malformed change event", "channel", msg.Channel, "err", err)
				continue
			}
			fn(store.Document{ID: ev.ID, Data: ev.Data})
		}
	}()

	return closeOnce(pubsub, done), nil
}

// SubscribeCollection implements store.Store. Subscribes to the change
// channel before reading the initial snapshot so no write is missed; a
// write racing the snapshot may be delivered twice, which subscribers
// already tolerate (changes are keyed by document id).
func (s *Store) SubscribeCollection(collection string, fn func(store.QuerySnapshot)) (store.Unsubscribe, error) {
	ctx := context.Background()
	pubsub := s.client.Subscribe(ctx, colChannel(collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	initial, err := s.List(ctx, collection)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	state := map[string]store.Document{}
	changes := make([]store.Change, 0, len(initial))
	for _, doc := range initial {
		state[doc.ID] = doc
		changes = append(changes, store.Change{Kind: store.Added, Doc: doc})
	}
	fn(store.QuerySnapshot{Docs: snapshotDocs(state), Changes: changes})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			var ev event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				slog.Warn("dropping malformed change event", "channel", msg.Channel, "err", err)
				continue
			}
			doc := store.Document{ID: ev.ID, Data: ev.Data}
			kind := store.Modified
			if _, known := state[doc.ID]; !known {
				kind = store.Added
			}
			state[doc.ID] = doc
			fn(store.QuerySnapshot{
				Docs:    snapshotDocs(state),
				Changes: []store.Change{{Kind: kind, Doc: doc}},
			})
		}
	}()

	return closeOnce(pubsub, done), nil
}

func closeOnce(pubsub *redis.PubSub, done chan struct{}) store.Unsubscribe {
	var once sync.Once
	return func() {
		once.Do(func() {
			_ = pubsub.Close()
			<-done
		})
	}
}

func snapshotDocs(state map[string]store.Document) []store.Document {
	docs := make([]store.Document, 0, len(state))
	for _, doc := range state {
		docs = append(docs, doc)
	}
	return docs
}

// write runs an optimistic read-modify-write on one document and publishes
// the result to the document and collection channels.
func (s *Store) write(
	ctx context.Context,
	collection, id string,
	mutate func(data map[string]any, exists bool) (map[string]any, error),
) error {
	key := docKey(collection, id)

	var published []byte
	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		exists := true
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				return err
			}
			exists = false
			raw = "{}"
		}

		data := map[string]any{}
		if uerr := json.Unmarshal([]byte(raw), &data); uerr != nil {
			return uerr
		}

		mutated, merr := mutate(data, exists)
		if merr != nil {
			return merr
		}

		encoded, eerr := json.Marshal(mutated)
		if eerr != nil {
			return eerr
		}

		// Round-trip so the published payload carries the same JSON-shaped
		// values a later Get would return.
		normalized := map[string]any{}
		if uerr := json.Unmarshal(encoded, &normalized); uerr != nil {
			return uerr
		}
		published, eerr = json.Marshal(event{ID: id, Data: normalized})
		if eerr != nil {
			return eerr
		}

		_, perr := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, string(encoded), 0)
			pipe.SAdd(ctx, colKey(collection), id)
			return nil
		})
		return perr
	}

	for attempt := 0; attempt < txRetries; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			s.publish(ctx, collection, id, published)
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update of %s lost %d optimistic races, giving up", key, txRetries)
}

func (s *Store) publish(ctx context.Context, collection, id string, payload []byte) {
	if err := s.client.Publish(ctx, colChannel(collection), payload).Err(); err != nil {
		slog.Warn("publish failed", "collection", collection, "err", err)
	}
	if err := s.client.Publish(ctx, docChannel(collection, id), payload).Err(); err != nil {
		slog.Warn("publish failed", "collection", collection, "doc", id, "err", err)
	}
}

func decode(id, raw string) (store.Document, error) {
	data := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return store.Document{}, err
	}
	return store.Document{ID: id, Data: data}, nil
}
