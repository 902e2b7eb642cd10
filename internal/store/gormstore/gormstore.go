// Package gormstore implements the document store on a relational database
// through GORM: one documents table keyed by collection and document id,
// with JSON payloads and in-process change subscriptions.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"kindling/internal/store"
)

type record struct {
	Collection string `gorm:"primaryKey;size:191"`
	DocID      string `gorm:"primaryKey;size:191;column:doc_id"`
	Data       string `gorm:"type:text"`
	UpdatedAt  time.Time
}

func (record) TableName() string { return "documents" }

// Store is a GORM-backed document store. Subscriptions are in-process:
// every writer in the process fans changes out to local subscribers after
// commit, which matches the single-client scheduling model the engine runs
// under.
type Store struct {
	db    *gorm.DB
	clock func() time.Time

	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber
}

type subscriber struct {
	collection string
	docID      string // empty for collection subscriptions
	docFn      func(store.Document)
	colFn      func(store.QuerySnapshot)
	seen       map[string]bool // doc ids already delivered to colFn
}

// Open wraps an existing GORM handle and migrates the documents table.
func Open(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, err
	}
	return &Store{
		db:    db,
		clock: func() time.Time { return time.Now().UTC() },
		subs:  map[int]*subscriber{},
	}, nil
}

// OpenSQLite opens a SQLite-backed store; path may be ":memory:".
func OpenSQLite(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	// A second pooled connection to ":memory:" would open a separate empty
	// database; a single connection also serializes writers.
	if sqlDB, derr := db.DB(); derr == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return Open(db)
}

// OpenPostgres opens a PostgreSQL-backed store.
func OpenPostgres(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	return Open(db)
}

// SetClock overrides the store clock. Test hook.
func (s *Store) SetClock(clock func() time.Time) { s.clock = clock }

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var rec record
	err := s.db.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return store.Document{}, store.ErrNotFound
		}
		return store.Document{}, err
	}
	return decode(rec)
}

// Set implements store.Store.
func (s *Store) Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	doc, err := s.write(ctx, collection, id, func(data map[string]any, exists bool) (map[string]any, error) {
		if !merge || !exists {
			data = map[string]any{}
		}
		return store.ApplyUpdates(data, fields, s.clock()), nil
	})
	if err != nil {
		return err
	}
	s.fanout(ctx, collection, doc)
	return nil
}

// Update implements store.Store. The read-modify-write runs inside one
// transaction with the row locked, so Increment never loses an update to a
// concurrent writer.
func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	doc, err := s.write(ctx, collection, id, func(data map[string]any, exists bool) (map[string]any, error) {
		if !exists {
			return nil, store.ErrNotFound
		}
		return store.ApplyUpdates(data, fields, s.clock()), nil
	})
	if err != nil {
		return err
	}
	s.fanout(ctx, collection, doc)
	return nil
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
	var recs []record
	err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("doc_id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	docs := make([]store.Document, 0, len(recs))
	for _, rec := range recs {
		doc, derr := decode(rec)
		if derr != nil {
			return nil, derr
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// SubscribeDoc implements store.Store. The current state, if any, is
// delivered synchronously before SubscribeDoc returns.
func (s *Store) SubscribeDoc(collection, id string, fn func(store.Document)) (store.Unsubscribe, error) {
	unsub := s.register(&subscriber{collection: collection, docID: id, docFn: fn})
	if doc, err := s.Get(context.Background(), collection, id); err == nil {
		fn(doc)
	}
	return unsub, nil
}

// SubscribeCollection implements store.Store. The initial snapshot carries
// the whole collection with every document marked Added.
func (s *Store) SubscribeCollection(collection string, fn func(store.QuerySnapshot)) (store.Unsubscribe, error) {
	sub := &subscriber{collection: collection, colFn: fn, seen: map[string]bool{}}
	unsub := s.register(sub)
	docs, err := s.List(context.Background(), collection)
	if err != nil {
		unsub()
		return nil, err
	}
	changes := make([]store.Change, 0, len(docs))
	s.mu.Lock()
	for _, doc := range docs {
		sub.seen[doc.ID] = true
		changes = append(changes, store.Change{Kind: store.Added, Doc: doc})
	}
	s.mu.Unlock()
	fn(store.QuerySnapshot{Docs: docs, Changes: changes})
	return unsub, nil
}

func (s *Store) register(sub *subscriber) store.Unsubscribe {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// write runs a transactional read-modify-write on one document row and
// returns the resulting snapshot.
func (s *Store) write(
	ctx context.Context,
	collection, id string,
	mutate func(data map[string]any, exists bool) (map[string]any, error),
) (store.Document, error) {
	var out store.Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec record
		exists := true
		query := tx.Where("collection = ? AND doc_id = ?", collection, id)
		if tx.Dialector.Name() != "sqlite" {
			// SQLite serializes writers on its own and rejects FOR UPDATE.
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		err := query.First(&rec).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			exists = false
			rec = record{Collection: collection, DocID: id, Data: "{}"}
		}

		data := map[string]any{}
		if rec.Data != "" {
			if uerr := json.Unmarshal([]byte(rec.Data), &data); uerr != nil {
				return uerr
			}
		}

		mutated, merr := mutate(data, exists)
		if merr != nil {
			return merr
		}

		encoded, eerr := json.Marshal(mutated)
		if eerr != nil {
			return eerr
		}
		rec.Data = string(encoded)
		rec.UpdatedAt = s.clock()

		if serr := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "doc_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).Create(&rec).Error; serr != nil {
			return serr
		}

		var derr error
		out, derr = decode(rec)
		return derr
	})
	if err != nil {
		return store.Document{}, err
	}
	return out, nil
}

// fanout delivers a changed document to matching subscribers. Delivery is
// synchronous in the writer's goroutine so subscribers observe changes in
// commit order.
func (s *Store) fanout(ctx context.Context, collection string, doc store.Document) {
	s.mu.RLock()
	targets := make([]*subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.collection == collection && (sub.docID == "" || sub.docID == doc.ID) {
			targets = append(targets, sub)
		}
	}
	s.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	var docs []store.Document
	for _, sub := range targets {
		if sub.docFn != nil {
			sub.docFn(doc)
			continue
		}
		if docs == nil {
			listed, err := s.List(ctx, collection)
			if err != nil {
				continue
			}
			docs = listed
		}
		kind := store.Modified
		s.mu.Lock()
		if !sub.seen[doc.ID] {
			kind = store.Added
			sub.seen[doc.ID] = true
		}
		s.mu.Unlock()
		sub.colFn(store.QuerySnapshot{
			Docs:    docs,
			Changes: []store.Change{{Kind: kind, Doc: doc}},
		})
	}
}

// decode parses a row back into a Document. All values come back
// JSON-shaped (float64 numbers, RFC 3339 timestamp strings), the same
// shapes the redis adapter produces.
func decode(rec record) (store.Document, error) {
	data := map[string]any{}
	if rec.Data != "" {
		if err := json.Unmarshal([]byte(rec.Data), &data); err != nil {
			return store.Document{}, err
		}
	}
	return store.Document{ID: rec.DocID, Data: data}, nil
}
