package stock

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/candleworks-fulfillment/internal/events"
)

// stubStockStore applies the check-and-delta under one mutex, mirroring the
// conditional-update contract of the real stores.
type stubStockStore struct {
	mu       sync.Mutex
	counters map[Key]int
}

func newStubStockStore() *stubStockStore {
	return &stubStockStore{counters: make(map[Key]int)}
}

func (s *stubStockStore) Adjust(ctx context.Context, key Key, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.counters[key]
	if !ok && delta < 0 {
		return 0, ErrCounterNotFound
	}
	next := current + delta
	if next < 0 {
		return 0, ErrInsufficientStock
	}
	s.counters[key] = next
	return next, nil
}

func (s *stubStockStore) Set(ctx context.Context, key Key, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key] = quantity
	return nil
}

func (s *stubStockStore) Get(ctx context.Context, key Key) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quantity, ok := s.counters[key]
	if !ok {
		return 0, ErrCounterNotFound
	}
	return quantity, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(ctx context.Context, key string, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func newTestStockLedger() (*Ledger, *stubStockStore, *capturePublisher) {
	store := newStubStockStore()
	publisher := &capturePublisher{}
	return NewLedger(store, publisher, nil), store, publisher
}

// ============================================
// Key Tests
// ============================================

func TestKey_String(t *testing.T) {
	assert.Equal(t, "juniper-candle", Key{ProductSlug: "juniper-candle"}.String())
	assert.Equal(t, "juniper-candle:8oz", Key{ProductSlug: "juniper-candle", VariantID: "8oz"}.String())
}

// ============================================
// Adjust Tests
// ============================================

func TestLedger_Adjust_IncrementAndDecrement(t *testing.T) {
	ledger, _, _ := newTestStockLedger()
	ctx := context.Background()
	key := Key{ProductSlug: "juniper-candle", VariantID: "8oz"}

	quantity, err := ledger.Adjust(ctx, key, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, quantity)

	quantity, err = ledger.Adjust(ctx, key, -3)
	require.NoError(t, err)
	assert.Equal(t, 7, quantity)
}

func TestLedger_Adjust_RejectsOversell(t *testing.T) {
	ledger, _, _ := newTestStockLedger()
	ctx := context.Background()
	key := Key{ProductSlug: "juniper-candle"}

	_, err := ledger.Adjust(ctx, key, 5)
	require.NoError(t, err)

	_, err = ledger.Adjust(ctx, key, -6)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// Failed adjustment left the counter unchanged.
	quantity, err := ledger.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 5, quantity)
}

func TestLedger_Adjust_ZeroDeltaReadsCurrent(t *testing.T) {
	ledger, _, publisher := newTestStockLedger()
	ctx := context.Background()
	key := Key{ProductSlug: "juniper-candle"}

	_, err := ledger.Adjust(ctx, key, 4)
	require.NoError(t, err)

	quantity, err := ledger.Adjust(ctx, key, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, quantity)

	// Zero delta publishes nothing.
	assert.Len(t, publisher.events, 1)
}

func TestLedger_Adjust_MissingCounterDecrement(t *testing.T) {
	ledger, _, _ := newTestStockLedger()

	_, err := ledger.Adjust(context.Background(), Key{ProductSlug: "nope"}, -1)
	assert.Error(t, err)
}

func TestLedger_Adjust_PublishesEvent(t *testing.T) {
	ledger, _, publisher := newTestStockLedger()
	key := Key{ProductSlug: "juniper-candle", VariantID: "8oz"}

	_, err := ledger.Adjust(context.Background(), key, 12)
	require.NoError(t, err)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.TypeStockAdjusted, publisher.events[0].Type)
	assert.Equal(t, "juniper-candle:8oz", publisher.events[0].Key)
}

// ============================================
// SetAbsolute Tests
// ============================================

func TestLedger_SetAbsolute(t *testing.T) {
	ledger, _, publisher := newTestStockLedger()
	ctx := context.Background()
	key := Key{ProductSlug: "juniper-candle"}

	require.NoError(t, ledger.SetAbsolute(ctx, key, 42))

	quantity, err := ledger.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 42, quantity)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.TypeStockSet, publisher.events[0].Type)
}

func TestLedger_SetAbsolute_RejectsNegative(t *testing.T) {
	ledger, _, _ := newTestStockLedger()

	err := ledger.SetAbsolute(context.Background(), Key{ProductSlug: "juniper-candle"}, -1)
	assert.ErrorIs(t, err, ErrNegativeStock)
}

func TestLedger_SetAbsolute_ZeroIsValid(t *testing.T) {
	ledger, _, _ := newTestStockLedger()
	ctx := context.Background()
	key := Key{ProductSlug: "juniper-candle"}

	require.NoError(t, ledger.SetAbsolute(ctx, key, 0))

	quantity, err := ledger.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, quantity)
}

func TestLedger_VariantCountersAreIndependent(t *testing.T) {
	ledger, _, _ := newTestStockLedger()
	ctx := context.Background()
	base := Key{ProductSlug: "juniper-candle"}
	variant := Key{ProductSlug: "juniper-candle", VariantID: "8oz"}

	require.NoError(t, ledger.SetAbsolute(ctx, base, 10))
	require.NoError(t, ledger.SetAbsolute(ctx, variant, 3))

	_, err := ledger.Adjust(ctx, variant, -3)
	require.NoError(t, err)

	quantity, err := ledger.Get(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 10, quantity)
}
