// Package redisstore implements persistence.Store on Redis. Each collection is one hash
// whose fields are document ids and whose values are JSON entries.
package redisstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/facility-reservations/internal/persistence"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "reservations"

// entry is the stored JSON value. Seq orders listings by first write.
type entry struct {
	Seq    int64          `json:"seq"`
	Fields map[string]any `json:"fields"`
}

// Store keeps documents in Redis hashes.
type Store struct {
	rdb    *redis.Client
	prefix string
	newID  func() string
}

// New wraps an existing client. An empty prefix uses DefaultPrefix.
func New(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix, newID: uuid.NewString}
}

// Connect creates a client for addr and pings it.
func Connect(ctx context.Context, addr string) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return New(rdb, ""), nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) hashKey(collection string) string { return s.prefix + ":" + collection }
func (s *Store) seqKey() string                   { return s.prefix + ":seq" }

// ListAll returns every document of the collection in insertion order.
func (s *Store) ListAll(ctx context.Context, collection string) ([]persistence.Document, error) {
	raw, err := s.rdb.HGetAll(ctx, s.hashKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list %s: %w", collection, err)
	}

	type ordered struct {
		seq int64
		doc persistence.Document
	}
	items := make([]ordered, 0, len(raw))
	for id, value := range raw {
		e, err := decodeEntry(value)
		if err != nil {
			return nil, fmt.Errorf("redis: decode %s/%s: %w", collection, id, err)
		}
		items = append(items, ordered{seq: e.Seq, doc: persistence.Document{ID: id, Fields: e.Fields}})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].seq == items[j].seq {
			return items[i].doc.ID < items[j].doc.ID
		}
		return items[i].seq < items[j].seq
	})

	docs := make([]persistence.Document, len(items))
	for i, item := range items {
		docs[i] = item.doc
	}
	return docs, nil
}

// Insert stores a new document under a generated id.
func (s *Store) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := s.newID()
	seq, err := s.rdb.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return "", fmt.Errorf("redis: insert %s/%s: %w", collection, id, err)
	}
	value, err := encodeEntry(entry{Seq: seq, Fields: fields})
	if err != nil {
		return "", err
	}
	created, err := s.rdb.HSetNX(ctx, s.hashKey(collection), id, value).Result()
	if err != nil {
		return "", fmt.Errorf("redis: insert %s/%s: %w", collection, id, err)
	}
	if !created {
		return "", fmt.Errorf("redis: insert %s/%s: %w", collection, id, persistence.ErrDuplicate)
	}
	return id, nil
}

// SetByID creates or replaces the document with the given id, keeping its sequence.
func (s *Store) SetByID(ctx context.Context, collection, id string, fields map[string]any) error {
	key := s.hashKey(collection)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		seq, err := s.existingSeq(ctx, tx, key, id)
		if err != nil {
			return err
		}
		if seq == 0 {
			if seq, err = s.rdb.Incr(ctx, s.seqKey()).Result(); err != nil {
				return err
			}
		}
		value, err := encodeEntry(entry{Seq: seq, Fields: fields})
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, value)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("redis: set %s/%s: %w", collection, id, err)
	}
	return nil
}

// UpdateByID merges fields into an existing document.
func (s *Store) UpdateByID(ctx context.Context, collection, id string, fields map[string]any) error {
	key := s.hashKey(collection)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, id).Result()
		if errors.Is(err, redis.Nil) {
			return persistence.ErrNotFound
		}
		if err != nil {
			return err
		}
		e, err := decodeEntry(raw)
		if err != nil {
			return err
		}
		for k, v := range fields {
			e.Fields[k] = v
		}
		value, err := encodeEntry(e)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, value)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, persistence.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("redis: update %s/%s: %w", collection, id, err)
	}
	return nil
}

// DeleteByID removes a document.
func (s *Store) DeleteByID(ctx context.Context, collection, id string) error {
	n, err := s.rdb.HDel(ctx, s.hashKey(collection), id).Result()
	if err != nil {
		return fmt.Errorf("redis: delete %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetByID returns a single document.
func (s *Store) GetByID(ctx context.Context, collection, id string) (persistence.Document, error) {
	raw, err := s.rdb.HGet(ctx, s.hashKey(collection), id).Result()
	if errors.Is(err, redis.Nil) {
		return persistence.Document{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Document{}, fmt.Errorf("redis: get %s/%s: %w", collection, id, err)
	}
	e, err := decodeEntry(raw)
	if err != nil {
		return persistence.Document{}, fmt.Errorf("redis: decode %s/%s: %w", collection, id, err)
	}
	return persistence.Document{ID: id, Fields: e.Fields}, nil
}

// QueryByField scans the collection hash and keeps documents whose field equals value.
func (s *Store) QueryByField(ctx context.Context, collection, field string, value any) ([]persistence.Document, error) {
	docs, err := s.ListAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	var out []persistence.Document
	for _, doc := range docs {
		if fieldEquals(doc.Fields[field], value) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *Store) existingSeq(ctx context.Context, tx *redis.Tx, key, id string) (int64, error) {
	raw, err := tx.HGet(ctx, key, id).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	e, err := decodeEntry(raw)
	if err != nil {
		return 0, err
	}
	return e.Seq, nil
}

// fieldEquals compares JSON encodings so json.Number from storage matches Go numbers.
func fieldEquals(stored, want any) bool {
	if stored == nil {
		return want == nil
	}
	a, errA := json.Marshal(stored)
	b, errB := json.Marshal(want)
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

func encodeEntry(e entry) (string, error) {
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	body, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("%w: %v", persistence.ErrInvalidDocument, err)
	}
	return string(body), nil
}

func decodeEntry(raw string) (entry, error) {
	dec := json.NewDecoder(bytes.NewBufferString(raw))
	dec.UseNumber()
	var e entry
	if err := dec.Decode(&e); err != nil {
		return entry{}, fmt.Errorf("%w: %v", persistence.ErrInvalidDocument, err)
	}
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	return e, nil
}

var _ persistence.Store = (*Store)(nil)
