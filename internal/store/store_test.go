package store

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/cafe-inventory/internal/model"
)

func TestMemoryCreateListOrder(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	a, err := s.Create(ctx, "products", Fields{"name": "Muffin"})
	require.NoError(t, err)
	b, err := s.Create(ctx, "products", Fields{"name": "Scone"})
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)

	docs, err := s.List(ctx, "products")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, a.ID, docs[0].ID)
	assert.Equal(t, "Scone", docs[1].Fields.String("name"))

	empty, err := s.List(ctx, "users")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMemoryUpdateMergesFields(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	d, _ := s.Create(ctx, "products", Fields{"name": "Muffin", "quantity": int64(1)})
	require.NoError(t, s.Update(ctx, "products", d.ID, Fields{"quantity": int64(4)}))
	got, err := s.Get(ctx, "products", d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Muffin", got.Fields.String("name"))
	assert.Equal(t, int64(4), got.Fields.Int("quantity"))

	err = s.Update(ctx, "products", "missing", Fields{"name": "x"})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryDeleteTwice(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	d, _ := s.Create(ctx, "users", Fields{"name": "Chrissy"})
	require.NoError(t, s.Delete(ctx, "users", d.ID))
	assert.ErrorIs(t, s.Delete(ctx, "users", d.ID), model.ErrNotFound)
	_, err := s.Get(ctx, "users", d.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryReturnsCopies(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	d, _ := s.Create(ctx, "products", Fields{"name": "Muffin"})
	d.Fields["name"] = "changed"
	got, _ := s.Get(ctx, "products", d.ID)
	assert.Equal(t, "Muffin", got.Fields.String("name"))
}

func TestMemoryAdjustFloor(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	d, _ := s.Create(ctx, "products", Fields{"quantity": int64(5)})

	got, err := s.Adjust(ctx, "products", d.ID, "quantity", -5, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Fields.Int("quantity"))

	_, err = s.Adjust(ctx, "products", d.ID, "quantity", -1, 0)
	assert.ErrorIs(t, err, model.ErrInsufficientStock)

	got, err = s.Adjust(ctx, "products", d.ID, "quantity", 12, NoFloor)
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.Fields.Int("quantity"))

	_, err = s.Adjust(ctx, "products", "missing", "quantity", 1, NoFloor)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryAdjustRejectsOverflow(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	d, _ := s.Create(ctx, "products", Fields{"quantity": int64(10)})

	_, err := s.Adjust(ctx, "products", d.ID, "quantity", math.MaxInt64, NoFloor)
	require.ErrorIs(t, err, model.ErrValidation)
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"amount"}, ve.Fields)

	got, err := s.Get(ctx, "products", d.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Fields.Int("quantity"))
}

func TestAddInt64(t *testing.T) {
	cases := []struct {
		cur, delta, want int64
		ok               bool
	}{
		{10, 5, 15, true},
		{10, -15, -5, true},
		{math.MaxInt64 - 1, 1, math.MaxInt64, true},
		{1, math.MaxInt64, 0, false},
		{math.MinInt64, -1, 0, false},
	}
	for _, c := range cases {
		n, ok := AddInt64(c.cur, c.delta)
		assert.Equal(t, c.ok, ok, "%d%+d", c.cur, c.delta)
		if c.ok {
			assert.Equal(t, c.want, n)
		}
	}
}

func TestMemoryConcurrentSellsNeverGoNegative(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	d, _ := s.Create(ctx, "products", Fields{"quantity": int64(50)})
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Adjust(ctx, "products", d.ID, "quantity", -1, 0); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	got, _ := s.Get(ctx, "products", d.ID)
	assert.Equal(t, int64(0), got.Fields.Int("quantity"))
	assert.Equal(t, 50, ok)
}

func TestFieldsConversions(t *testing.T) {
	f := Fields{
		"a": json.Number("7"),
		"b": float64(2.5),
		"c": "12",
		"d": int(3),
	}
	assert.Equal(t, int64(7), f.Int("a"))
	assert.Equal(t, 2.5, f.Float("b"))
	assert.Equal(t, int64(12), f.Int("c"))
	assert.Equal(t, float64(3), f.Float("d"))
	assert.Equal(t, "2.5", f.String("b"))
	assert.Equal(t, int64(0), f.Int("missing"))
	assert.Equal(t, "", f.String("missing"))
}
