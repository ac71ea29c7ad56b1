package store

import (
	"context"
	"sync"

	"github.com/example/candleworks-fulfillment/internal/domain/stock"
)

// MemoryStockStore is an in-memory stock.Store. The check and the delta are
// applied under one mutex, so concurrent adjusters can never observe a
// between-states counter.
type MemoryStockStore struct {
	mu       sync.Mutex
	counters map[stock.Key]int
}

func NewMemoryStockStore() *MemoryStockStore {
	return &MemoryStockStore{counters: make(map[stock.Key]int)}
}

func (s *MemoryStockStore) Adjust(ctx context.Context, key stock.Key, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.counters[key]
	if !ok && delta < 0 {
		return 0, stock.ErrCounterNotFound
	}
	next := current + delta
	if next < 0 {
		return 0, stock.ErrInsufficientStock
	}
	s.counters[key] = next
	return next, nil
}

func (s *MemoryStockStore) Set(ctx context.Context, key stock.Key, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key] = quantity
	return nil
}

func (s *MemoryStockStore) Get(ctx context.Context, key stock.Key) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quantity, ok := s.counters[key]
	if !ok {
		return 0, stock.ErrCounterNotFound
	}
	return quantity, nil
}
