package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/candleworks-fulfillment/internal/domain/order"
	"github.com/example/candleworks-fulfillment/internal/domain/points"
)

// In-package stubs: the shared memory stores live in a package that imports
// this one, so the test brings its own minimal implementations.

type stubCustomerStore struct {
	mu      sync.Mutex
	byEmail map[string]*Customer
}

func newStubCustomerStore() *stubCustomerStore {
	return &stubCustomerStore{byEmail: make(map[string]*Customer)}
}

func (s *stubCustomerStore) Insert(ctx context.Context, c *Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[c.Email]; ok {
		return ErrEmailTaken
	}
	s.byEmail[c.Email] = c
	return nil
}

func (s *stubCustomerStore) FindByEmail(ctx context.Context, email string) (*Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byEmail[email]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	return c, nil
}

func (s *stubCustomerStore) FindByID(ctx context.Context, id string) (*Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.byEmail {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, ErrCustomerNotFound
}

type stubOrderStore struct {
	mu     sync.Mutex
	orders map[order.Key]*order.Order
}

func newStubOrderStore() *stubOrderStore {
	return &stubOrderStore{orders: make(map[order.Key]*order.Order)}
}

func (s *stubOrderStore) Insert(ctx context.Context, o *order.Order) (*order.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.orders[o.Key]; ok {
		return existing, false, nil
	}
	c := *o
	s.orders[o.Key] = &c
	return &c, true, nil
}

func (s *stubOrderStore) Get(ctx context.Context, key order.Key) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[key]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

func (s *stubOrderStore) Complete(ctx context.Context, key order.Key, at time.Time) (*order.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[key]
	if !ok {
		return nil, false, order.ErrOrderNotFound
	}
	if o.Status != order.StatusPending {
		return o, false, nil
	}
	o.Status = order.StatusCompleted
	o.CompletedAt = &at
	return o, true, nil
}

func (s *stubOrderStore) Transition(ctx context.Context, key order.Key, target order.Status, tracking, carrier string, at time.Time) (*order.Order, error) {
	return nil, order.ErrInvalidTransition
}

func (s *stubOrderStore) MarkPointsAwarded(ctx context.Context, key order.Key) (bool, error) {
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

func (s *stubOrderStore) SetUser(ctx context.Context, key order.Key, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[key]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.UserID = userID
	return nil
}

func (s *stubOrderStore) Replace(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.Key]; !ok {
		return order.ErrOrderNotFound
	}
	c := *o
	s.orders[o.Key] = &c
	return nil
}

func (s *stubOrderStore) Delete(ctx context.Context, key order.Key) error { return nil }

func (s *stubOrderStore) GuestOrdersByEmail(ctx context.Context, email string) ([]*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*order.Order
	for _, o := range s.orders {
		if o.UserID == "" && o.Email == email {
			c := *o
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *stubOrderStore) ListByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*order.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

type stubPointsStore struct {
	mu       sync.Mutex
	balances map[string]int
}

func (s *stubPointsStore) Apply(ctx context.Context, txn *points.Transaction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balances == nil {
		s.balances = make(map[string]int)
	}
	next := s.balances[txn.UserID] + txn.Amount
	if next < 0 {
		return 0, points.ErrInsufficientPoints
	}
	s.balances[txn.UserID] = next
	return next, nil
}

func (s *stubPointsStore) Balance(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID], nil
}

func (s *stubPointsStore) History(ctx context.Context, userID string) ([]*points.Transaction, error) {
	return nil, nil
}

type fixture struct {
	service *Service
	orders  *order.Ledger
	points  *points.Ledger
}

func newFixture() *fixture {
	orders := order.NewLedger(newStubOrderStore(), nil, nil)
	pts := points.NewLedger(&stubPointsStore{}, nil, nil)
	return &fixture{
		service: NewService(newStubCustomerStore(), orders, pts, nil),
		orders:  orders,
		points:  pts,
	}
}

func seedGuestOrder(t *testing.T, f *fixture, key, email string, subtotal int, complete bool) {
	t.Helper()
	ctx := context.Background()
	_, _, err := f.orders.Create(ctx, order.CreateParams{
		Key:      order.Key(key),
		Email:    email,
		Items:    []order.Item{{ProductSlug: "juniper-candle", Quantity: 1, UnitPrice: subtotal}},
		Subtotal: subtotal,
		Total:    subtotal,
	})
	require.NoError(t, err)
	if complete {
		_, _, err = f.orders.Complete(ctx, order.Key(key))
		require.NoError(t, err)
	}
}

// ============================================
// Register Tests
// ============================================

func TestService_Register(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	c, err := f.service.Register(ctx, "  Buyer@Example.COM  ", "hunter2hunter2", "Sam")

	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", c.Email)
	assert.Equal(t, "customer", c.Role)
	assert.NotEmpty(t, c.ID)
	assert.NotEqual(t, "hunter2hunter2", c.PasswordHash)
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.service.Register(ctx, "buyer@example.com", "hunter2hunter2", "Sam")
	require.NoError(t, err)

	_, err = f.service.Register(ctx, "BUYER@example.com", "otherpassword", "Sam Again")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestService_Register_EmptyEmail(t *testing.T) {
	f := newFixture()

	_, err := f.service.Register(context.Background(), "   ", "hunter2hunter2", "Sam")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

// ============================================
// Authenticate Tests
// ============================================

func TestService_Authenticate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	registered, err := f.service.Register(ctx, "buyer@example.com", "hunter2hunter2", "Sam")
	require.NoError(t, err)

	c, err := f.service.Authenticate(ctx, "Buyer@Example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, c.ID)

	_, err = f.service.Authenticate(ctx, "buyer@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.service.Authenticate(ctx, "nobody@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// ============================================
// ResolveByEmail Tests
// ============================================

func TestService_ResolveByEmail(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	c, err := f.service.Register(ctx, "buyer@example.com", "hunter2hunter2", "Sam")
	require.NoError(t, err)

	userID, found, err := f.service.ResolveByEmail(ctx, "BUYER@example.com")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, c.ID, userID)

	_, found, err = f.service.ResolveByEmail(ctx, "guest@example.com")
	require.NoError(t, err)
	assert.False(t, found)
}

// ============================================
// Guest Order Linking Tests
// ============================================

func TestService_Register_LinksGuestOrders(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	seedGuestOrder(t, f, "cs_old_1", "buyer@example.com", 4499, true)
	seedGuestOrder(t, f, "cs_old_2", "buyer@example.com", 2000, true)
	seedGuestOrder(t, f, "cs_other", "other@example.com", 9999, true)

	c, err := f.service.Register(ctx, "buyer@example.com", "hunter2hunter2", "Sam")
	require.NoError(t, err)

	mine, err := f.orders.ListByUser(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	// 45 points for the 4499 order plus 20 for the 2000 one.
	balance, err := f.points.Balance(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 65, balance)
}

func TestService_LinkGuestOrders_ReplaySafe(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	seedGuestOrder(t, f, "cs_old", "buyer@example.com", 4499, true)

	c, err := f.service.Register(ctx, "buyer@example.com", "hunter2hunter2", "Sam")
	require.NoError(t, err)

	// Registration already linked; an explicit replay credits nothing extra.
	_, err = f.service.LinkGuestOrders(ctx, c.ID, "buyer@example.com")
	require.NoError(t, err)

	balance, err := f.points.Balance(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 45, balance)
}

func TestService_LinkGuestOrders_PendingEarnsNothing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	seedGuestOrder(t, f, "cs_pending", "buyer@example.com", 4499, false)

	c, err := f.service.Register(ctx, "buyer@example.com", "hunter2hunter2", "Sam")
	require.NoError(t, err)

	mine, err := f.orders.ListByUser(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	balance, err := f.points.Balance(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}
