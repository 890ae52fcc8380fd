package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fairyhunter13/cafe-inventory/internal/model"
)

type collectionState struct {
	docs  map[string]Fields
	order []string
}

// Memory is an in-process Store used for local runs and tests.
type Memory struct {
	mu sync.RWMutex
	m  map[string]*collectionState
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{m: make(map[string]*collectionState)}
}

func (s *Memory) collection(name string) *collectionState {
	c, ok := s.m[name]
	if !ok {
		c = &collectionState{docs: make(map[string]Fields)}
		s.m[name] = c
	}
	return c
}

func (s *Memory) List(_ context.Context, collection string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.m[collection]
	if !ok {
		return []Document{}, nil
	}
	out := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, Document{ID: id, Fields: c.docs[id].Clone()})
	}
	return out, nil
}

func (s *Memory) Get(_ context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.m[collection]
	if !ok {
		return Document{}, errors.Wrapf(model.ErrNotFound, "%s/%s", collection, id)
	}
	f, ok := c.docs[id]
	if !ok {
		return Document{}, errors.Wrapf(model.ErrNotFound, "%s/%s", collection, id)
	}
	return Document{ID: id, Fields: f.Clone()}, nil
}

func (s *Memory) Create(_ context.Context, collection string, fields Fields) (Document, error) {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collection(collection)
	c.docs[id] = fields.Clone()
	c.order = append(c.order, id)
	return Document{ID: id, Fields: fields.Clone()}, nil
}

func (s *Memory) Update(_ context.Context, collection, id string, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[collection]
	if !ok {
		return errors.Wrapf(model.ErrNotFound, "%s/%s", collection, id)
	}
	cur, ok := c.docs[id]
	if !ok {
		return errors.Wrapf(model.ErrNotFound, "%s/%s", collection, id)
	}
	next := cur.Clone()
	for k, v := range fields {
		next[k] = v
	}
	c.docs[id] = next
	return nil
}

func (s *Memory) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[collection]
	if !ok {
		return errors.Wrapf(model.ErrNotFound, "%s/%s", collection, id)
	}
	if _, ok := c.docs[id]; !ok {
		return errors.Wrapf(model.ErrNotFound, "%s/%s", collection, id)
	}
	delete(c.docs, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Memory) Adjust(_ context.Context, collection, id, field string, delta, floor int64) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[collection]
	if !ok {
		return Document{}, errors.Wrapf(model.ErrNotFound, "%s/%s", collection, id)
	}
	cur, ok := c.docs[id]
	if !ok {
		return Document{}, errors.Wrapf(model.ErrNotFound, "%s/%s", collection, id)
	}
	n, ok := AddInt64(cur.Int(field), delta)
	if !ok {
		return Document{}, OutOfRange(collection, id, field, delta)
	}
	if n < floor {
		return Document{}, errors.Wrapf(model.ErrInsufficientStock, "%s/%s %s=%d delta=%d", collection, id, field, cur.Int(field), delta)
	}
	next := cur.Clone()
	next[field] = n
	c.docs[id] = next
	return Document{ID: id, Fields: next.Clone()}, nil
}

func (s *Memory) Close() error { return nil }
