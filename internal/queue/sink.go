package queue

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/fairyhunter13/cafe-inventory/internal/model"
)

// Sink consumes change events drained by the workers.
type Sink interface {
	Handle(ctx context.Context, ev model.Event) error
}

// Journal keeps the most recent events in a fixed-size ring.
type Journal struct {
	mu   sync.RWMutex
	buf  []model.Event
	next int
	full bool
}

// NewJournal returns a Journal holding up to size events.
func NewJournal(size int) *Journal {
	if size <= 0 {
		size = 256
	}
	return &Journal{buf: make([]model.Event, size)}
}

func (j *Journal) Handle(_ context.Context, ev model.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.buf[j.next] = ev
	j.next = (j.next + 1) % len(j.buf)
	if j.next == 0 {
		j.full = true
	}
	return nil
}

// Recent returns up to limit events, newest first. limit <= 0 returns all.
func (j *Journal) Recent(limit int) []model.Event {
	j.mu.RLock()
	n := j.next
	if j.full {
		n = len(j.buf)
	}
	out := make([]model.Event, n)
	copy(out, j.buf[:n])
	j.mu.RUnlock()

	// workers deliver concurrently, so ring order is only roughly sequential
	sort.Slice(out, func(a, b int) bool { return out[a].Sequence > out[b].Sequence })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Handle(ctx context.Context, ev model.Event) error {
	var first error
	for _, s := range m {
		if err := s.Handle(ctx, ev); err != nil && first == nil {
			first = errors.Wrapf(err, "sink %T", s)
		}
	}
	return first
}
