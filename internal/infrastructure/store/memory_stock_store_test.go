package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/candleworks-fulfillment/internal/domain/stock"
)

func TestMemoryStockStore_Adjust(t *testing.T) {
	s := NewMemoryStockStore()
	ctx := context.Background()
	key := stock.Key{ProductSlug: "juniper-candle", VariantID: "8oz"}

	quantity, err := s.Adjust(ctx, key, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, quantity)

	quantity, err = s.Adjust(ctx, key, -4)
	require.NoError(t, err)
	assert.Equal(t, 6, quantity)
}

func TestMemoryStockStore_Adjust_NeverGoesNegative(t *testing.T) {
	s := NewMemoryStockStore()
	ctx := context.Background()
	key := stock.Key{ProductSlug: "juniper-candle"}

	require.NoError(t, s.Set(ctx, key, 2))

	_, err := s.Adjust(ctx, key, -3)
	assert.ErrorIs(t, err, stock.ErrInsufficientStock)

	quantity, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, quantity)
}

func TestMemoryStockStore_Adjust_MissingCounter(t *testing.T) {
	s := NewMemoryStockStore()
	ctx := context.Background()
	key := stock.Key{ProductSlug: "never-stocked"}

	_, err := s.Adjust(ctx, key, -1)
	assert.ErrorIs(t, err, stock.ErrCounterNotFound)

	// A positive adjustment creates the counter.
	quantity, err := s.Adjust(ctx, key, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, quantity)
}

// Concurrent purchases against a finite counter: exactly the stocked quantity
// succeeds, the remainder fail, and the counter lands on zero.
func TestMemoryStockStore_Adjust_ConcurrentOversell(t *testing.T) {
	s := NewMemoryStockStore()
	ctx := context.Background()
	key := stock.Key{ProductSlug: "juniper-candle"}

	const stocked = 50
	const buyers = 100
	require.NoError(t, s.Set(ctx, key, stocked))

	var wg sync.WaitGroup
	results := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Adjust(ctx, key, -1)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, stock.ErrInsufficientStock)
		}
	}
	assert.Equal(t, stocked, succeeded)

	quantity, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, quantity)
}
