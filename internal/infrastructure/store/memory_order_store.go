package store

import (
	"context"
	"sync"
	"time"

	"github.com/example/candleworks-fulfillment/internal/domain/order"
)

// MemoryOrderStore is an in-memory order.Store for tests and local
// development. All conditional transitions happen under one mutex, which
// gives the same atomicity the Postgres store gets from conditional UPDATEs.
type MemoryOrderStore struct {
	mu     sync.Mutex
	orders map[order.Key]*order.Order
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{orders: make(map[order.Key]*order.Order)}
}

func (s *MemoryOrderStore) Insert(ctx context.Context, o *order.Order) (*order.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.orders[o.Key]; ok {
		return cloneOrder(existing), false, nil
	}
	s.orders[o.Key] = cloneOrder(o)
	return cloneOrder(o), true, nil
}

func (s *MemoryOrderStore) Get(ctx context.Context, key order.Key) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[key]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemoryOrderStore) Complete(ctx context.Context, key order.Key, at time.Time) (*order.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[key]
	if !ok {
		return nil, false, order.ErrOrderNotFound
	}
	if o.Status != order.StatusPending {
		return cloneOrder(o), false, nil
	}
	o.Status = order.StatusCompleted
	o.CompletedAt = &at
	return cloneOrder(o), true, nil
}

func (s *MemoryOrderStore) Transition(ctx context.Context, key order.Key, target order.Status, tracking, carrier string, at time.Time) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[key]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	if !o.CanTransitionTo(target) {
		return nil, order.ErrInvalidTransition
	}
	o.Status = target
	if tracking != "" {
		o.TrackingNumber = tracking
	}
	if carrier != "" {
		o.CarrierCode = carrier
	}
	switch target {
	case order.StatusShipped:
		o.ShippedAt = &at
	case order.StatusDelivered:
		o.DeliveredAt = &at
	}
	return cloneOrder(o), nil
}

func (s *MemoryOrderStore) MarkPointsAwarded(ctx context.Context, key order.Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[key]
	if !ok {
		return false, order.ErrOrderNotFound
	}
	if o.PointsAwarded {
		return false, nil
	}
	o.PointsAwarded = true
	return true, nil
}

func (s *MemoryOrderStore) SetUser(ctx context.Context, key order.Key, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[key]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.UserID = userID
	return nil
}

func (s *MemoryOrderStore) Replace(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.Key]; !ok {
		return order.ErrOrderNotFound
	}
	s.orders[o.Key] = cloneOrder(o)
	return nil
}

func (s *MemoryOrderStore) Delete(ctx context.Context, key order.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[key]; !ok {
		return order.ErrOrderNotFound
	}
	delete(s.orders, key)
	return nil
}

func (s *MemoryOrderStore) GuestOrdersByEmail(ctx context.Context, email string) ([]*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*order.Order
	for _, o := range s.orders {
		if o.UserID == "" && o.Email == email {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (s *MemoryOrderStore) ListByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*order.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func cloneOrder(o *order.Order) *order.Order {
	c := *o
	c.Items = append([]order.Item(nil), o.Items...)
	return &c
}
