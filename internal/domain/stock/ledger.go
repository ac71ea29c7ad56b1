package stock

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/candleworks-fulfillment/internal/events"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNegativeStock     = errors.New("stock quantity must not be negative")
	ErrCounterNotFound   = errors.New("stock counter not found")
)

// Key identifies one counter. Variant-level and base-product counters are
// independent keys; there is no aggregation between them.
type Key struct {
	ProductSlug string `json:"product_slug"`
	VariantID   string `json:"variant_id,omitempty"`
}

func (k Key) String() string {
	if k.VariantID == "" {
		return k.ProductSlug
	}
	return k.ProductSlug + ":" + k.VariantID
}

// Counter is a point-in-time view of one stock counter.
type Counter struct {
	Key      Key `json:"key"`
	Quantity int `json:"quantity"`
}

// Store holds the counters. Adjust must be a single atomic conditional
// mutation at the storage layer: the non-negative check happens together with
// the delta, not as a follow-up read.
type Store interface {
	// Adjust applies delta to the counter's current value and returns the new
	// quantity. When the result would be negative it fails with
	// ErrInsufficientStock and leaves the counter unchanged.
	Adjust(ctx context.Context, key Key, delta int) (int, error)

	// Set overwrites the counter (administrative correction).
	Set(ctx context.Context, key Key, quantity int) error

	// Get returns the current quantity, or ErrCounterNotFound.
	Get(ctx context.Context, key Key) (int, error)
}

// Ledger wraps the counter store with validation, logging and event
// publication for the external mirror.
type Ledger struct {
	store     Store
	publisher events.Publisher
	logger    *zap.Logger
}

func NewLedger(store Store, publisher events.Publisher, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, publisher: publisher, logger: logger}
}

// Adjust applies delta atomically. A negative delta that would take the
// counter below zero is rejected with ErrInsufficientStock.
func (l *Ledger) Adjust(ctx context.Context, key Key, delta int) (int, error) {
	if delta == 0 {
		return l.store.Get(ctx, key)
	}

	quantity, err := l.store.Adjust(ctx, key, delta)
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			l.logger.Warn("stock adjustment rejected",
				zap.String("stock_key", key.String()),
				zap.Int("delta", delta))
			return 0, err
		}
		return 0, fmt.Errorf("stock adjust %s: %w", key, err)
	}

	l.logger.Debug("stock adjusted",
		zap.String("stock_key", key.String()),
		zap.Int("delta", delta),
		zap.Int("quantity", quantity))
	l.publish(ctx, events.TypeStockAdjusted, key, StockAdjusted{
		ProductSlug: key.ProductSlug,
		VariantID:   key.VariantID,
		Delta:       delta,
		Quantity:    quantity,
	})
	return quantity, nil
}

// SetAbsolute overwrites a counter for administrative correction. Negative
// values are rejected.
func (l *Ledger) SetAbsolute(ctx context.Context, key Key, quantity int) error {
	if quantity < 0 {
		return ErrNegativeStock
	}
	if err := l.store.Set(ctx, key, quantity); err != nil {
		return fmt.Errorf("stock set %s: %w", key, err)
	}

	l.logger.Info("stock counter set",
		zap.String("stock_key", key.String()),
		zap.Int("quantity", quantity))
	l.publish(ctx, events.TypeStockSet, key, StockAdjusted{
		ProductSlug: key.ProductSlug,
		VariantID:   key.VariantID,
		Quantity:    quantity,
	})
	return nil
}

// Get returns the current quantity for key.
func (l *Ledger) Get(ctx context.Context, key Key) (int, error) {
	return l.store.Get(ctx, key)
}

func (l *Ledger) publish(ctx context.Context, eventType string, key Key, payload StockAdjusted) {
	if l.publisher == nil {
		return
	}
	evt, err := events.New(eventType, key.String(), payload)
	if err != nil {
		l.logger.Error("failed to build stock event", zap.Error(err))
		return
	}
	if err := l.publisher.Publish(ctx, key.String(), evt); err != nil {
		l.logger.Error("failed to publish stock event",
			zap.String("stock_key", key.String()), zap.Error(err))
	}
}
