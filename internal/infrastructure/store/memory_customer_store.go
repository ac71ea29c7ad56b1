package store

import (
	"context"
	"sync"

	"github.com/example/candleworks-fulfillment/internal/identity"
)

// MemoryCustomerStore is an in-memory identity.Store.
type MemoryCustomerStore struct {
	mu      sync.Mutex
	byID    map[string]*identity.Customer
	byEmail map[string]*identity.Customer
}

func NewMemoryCustomerStore() *MemoryCustomerStore {
	return &MemoryCustomerStore{
		byID:    make(map[string]*identity.Customer),
		byEmail: make(map[string]*identity.Customer),
	}
}

func (s *MemoryCustomerStore) Insert(ctx context.Context, c *identity.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[c.Email]; ok {
		return identity.ErrEmailTaken
	}
	clone := *c
	s.byID[c.ID] = &clone
	s.byEmail[c.Email] = &clone
	return nil
}

func (s *MemoryCustomerStore) FindByEmail(ctx context.Context, email string) (*identity.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byEmail[email]
	if !ok {
		return nil, identity.ErrCustomerNotFound
	}
	clone := *c
	return &clone, nil
}

func (s *MemoryCustomerStore) FindByID(ctx context.Context, id string) (*identity.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, identity.ErrCustomerNotFound
	}
	clone := *c
	return &clone, nil
}
