package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/cafe-inventory/internal/model"
)

type staticLister struct {
	products []model.Product
	err      error
	calls    atomic.Int32
}

func (s *staticLister) ListProducts(context.Context) ([]model.Product, error) {
	s.calls.Add(1)
	return s.products, s.err
}

func TestAuditFindsLowStock(t *testing.T) {
	l := &staticLister{products: []model.Product{
		{ID: "p1", Name: "Muffin", Quantity: 10},
		{ID: "p2", Name: "Latte", Quantity: 5},
		{ID: "p3", Name: "Bagel", Quantity: 0},
	}}
	low, err := NewStockAudit(l, 5).Audit(context.Background())
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, "p2", low[0].ID)
	assert.Equal(t, "p3", low[1].ID)
}

func TestAuditPropagatesStoreError(t *testing.T) {
	l := &staticLister{err: errors.Wrap(model.ErrStoreUnavailable, "down")}
	_, err := NewStockAudit(l, 5).Audit(context.Background())
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)

	// Run only logs
	NewStockAudit(l, 5).Run()
	assert.EqualValues(t, 2, l.calls.Load())
}

func TestSchedulerRunsJob(t *testing.T) {
	l := &staticLister{}
	s := NewScheduler()
	require.NoError(t, s.Add("stock_audit", "@every 1s", NewStockAudit(l, 5)))
	assert.Equal(t, 1, s.Len())
	s.Start()
	defer s.Stop(context.Background())

	require.Eventually(t, func() bool { return l.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler()
	err := s.Add("stock_audit", "every hour", NewStockAudit(&staticLister{}, 5))
	assert.Error(t, err)
	assert.Zero(t, s.Len())
}

type countingPruner struct{ calls atomic.Int32 }

func (c *countingPruner) PruneExpired() int {
	c.calls.Add(1)
	return 0
}

func TestSchedulerRunsSessionPrune(t *testing.T) {
	p := &countingPruner{}
	s := NewScheduler()
	require.NoError(t, s.Add("session_prune", "@every 1s", NewSessionPrune(p)))
	s.Start()
	defer s.Stop(context.Background())

	require.Eventually(t, func() bool { return p.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}
