// Package memory provides an in-process persistence.Store used by tests and by the
// "memory" store backend.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/example/facility-reservations/internal/persistence"
)

type collection struct {
	order []string
	docs  map[string]map[string]any
}

// Store keeps documents in maps guarded by a RWMutex. Listing preserves insertion order.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	newID       func() string
}

// New returns an empty store that assigns uuid identifiers on Insert.
func New() *Store {
	return NewWithIDGenerator(nil)
}

// NewWithIDGenerator returns an empty store using idGenerator for Insert.
func NewWithIDGenerator(idGenerator func() string) *Store {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	return &Store{collections: make(map[string]*collection), newID: idGenerator}
}

func (s *Store) collectionLocked(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]map[string]any)}
		s.collections[name] = c
	}
	return c
}

// ListAll returns every document of the collection in insertion order.
func (s *Store) ListAll(ctx context.Context, name string) ([]persistence.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, nil
	}
	docs := make([]persistence.Document, 0, len(c.order))
	for _, id := range c.order {
		docs = append(docs, persistence.Document{ID: id, Fields: persistence.CloneFields(c.docs[id])})
	}
	return docs, nil
}

// Insert stores fields under a freshly generated id.
func (s *Store) Insert(ctx context.Context, name string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collectionLocked(name)
	id := s.newID()
	if _, ok := c.docs[id]; ok {
		return "", fmt.Errorf("memory: %s/%s: %w", name, id, persistence.ErrDuplicate)
	}
	c.docs[id] = persistence.CloneFields(fields)
	c.order = append(c.order, id)
	return id, nil
}

// SetByID creates or replaces a document.
func (s *Store) SetByID(ctx context.Context, name, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collectionLocked(name)
	if _, ok := c.docs[id]; !ok {
		c.order = append(c.order, id)
	}
	c.docs[id] = persistence.CloneFields(fields)
	return nil
}

// UpdateByID merges fields into an existing document.
func (s *Store) UpdateByID(ctx context.Context, name, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return persistence.ErrNotFound
	}
	existing, ok := c.docs[id]
	if !ok {
		return persistence.ErrNotFound
	}
	merged := persistence.CloneFields(existing)
	for k, v := range fields {
		merged[k] = v
	}
	c.docs[id] = merged
	return nil
}

// DeleteByID removes a document.
func (s *Store) DeleteByID(ctx context.Context, name, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return persistence.ErrNotFound
	}
	if _, ok := c.docs[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// GetByID returns a single document.
func (s *Store) GetByID(ctx context.Context, name, id string) (persistence.Document, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return persistence.Document{}, persistence.ErrNotFound
	}
	fields, ok := c.docs[id]
	if !ok {
		return persistence.Document{}, persistence.ErrNotFound
	}
	return persistence.Document{ID: id, Fields: persistence.CloneFields(fields)}, nil
}

// QueryByField returns documents whose field deep-equals value, in insertion order.
func (s *Store) QueryByField(ctx context.Context, name, field string, value any) ([]persistence.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, nil
	}
	var docs []persistence.Document
	for _, id := range c.order {
		fields := c.docs[id]
		got, ok := fields[field]
		if !ok || !reflect.DeepEqual(got, value) {
			continue
		}
		docs = append(docs, persistence.Document{ID: id, Fields: persistence.CloneFields(fields)})
	}
	return docs, nil
}

var _ persistence.Store = (*Store)(nil)
