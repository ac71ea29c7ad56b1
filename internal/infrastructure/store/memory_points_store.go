package store

import (
	"context"
	"sync"

	"github.com/example/candleworks-fulfillment/internal/domain/points"
)

// MemoryPointsStore is an in-memory points.Store. Apply serializes all
// balance mutations per store, which enforces the invariant that the balance
// equals the running sum of appended transactions.
type MemoryPointsStore struct {
	mu       sync.Mutex
	balances map[string]int
	log      map[string][]*points.Transaction
}

func NewMemoryPointsStore() *MemoryPointsStore {
	return &MemoryPointsStore{
		balances: make(map[string]int),
		log:      make(map[string][]*points.Transaction),
	}
}

func (s *MemoryPointsStore) Apply(ctx context.Context, txn *points.Transaction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.balances[txn.UserID] + txn.Amount
	if next < 0 {
		return 0, points.ErrInsufficientPoints
	}
	s.balances[txn.UserID] = next
	c := *txn
	s.log[txn.UserID] = append(s.log[txn.UserID], &c)
	return next, nil
}

func (s *MemoryPointsStore) Balance(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID], nil
}

func (s *MemoryPointsStore) History(ctx context.Context, userID string) ([]*points.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*points.Transaction, len(s.log[userID]))
	for i, txn := range s.log[userID] {
		c := *txn
		out[i] = &c
	}
	return out, nil
}
