package order

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/candleworks-fulfillment/internal/events"
)

// CreateParams carries everything needed to record a captured sale.
type CreateParams struct {
	Key            Key
	Email          string
	UserID         string
	Items          []Item
	Subtotal       int
	Shipping       int
	Tax            int
	Total          int
	PointsRedeemed int
	PaymentMethod  string
	Notes          string
}

// Ledger is the order state machine. Every mutation goes through a Store
// primitive; the ledger adds validation, event publication and audit logging.
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

// Create inserts a new order for the idempotency key, or returns the existing
// record untouched. created=false means a previous delivery already recorded
// the order.
func (l *Ledger) Create(ctx context.Context, p CreateParams) (*Order, bool, error) {
	if p.Key == "" {
		return nil, false, fmt.Errorf("order create: empty key")
	}
	if len(p.Items) == 0 {
		return nil, false, ErrEmptyOrder
	}
	if p.Total < 0 {
		return nil, false, ErrInvalidTotal
	}

	o := &Order{
		Key:            p.Key,
		Email:          p.Email,
		UserID:         p.UserID,
		Status:         StatusPending,
		Items:          p.Items,
		Subtotal:       p.Subtotal,
		Shipping:       p.Shipping,
		Tax:            p.Tax,
		Total:          p.Total,
		PointsRedeemed: p.PointsRedeemed,
		PaymentMethod:  p.PaymentMethod,
		Notes:          p.Notes,
		CreatedAt:      time.Now(),
	}

	existing, created, err := l.store.Insert(ctx, o)
	if err != nil {
		return nil, false, fmt.Errorf("order create: %w", err)
	}
	if !created {
		l.logger.Info("order create replayed, returning existing record",
			zap.String("order_key", p.Key.String()),
			zap.String("status", string(existing.Status)))
		return existing, false, nil
	}

	l.logger.Info("order created",
		zap.String("order_key", p.Key.String()),
		zap.String("email", p.Email),
		zap.Bool("guest", o.IsGuest()),
		zap.Int("total", p.Total))
	return o, true, nil
}

// Complete transitions the order from pending to completed exactly once.
// transitioned=false means the order was already completed (or further along)
// and the call had no side effects.
func (l *Ledger) Complete(ctx context.Context, key Key) (*Order, bool, error) {
	o, transitioned, err := l.store.Complete(ctx, key, time.Now())
	if err != nil {
		return nil, false, fmt.Errorf("order complete: %w", err)
	}
	if !transitioned {
		l.logger.Info("order already completed, no-op",
			zap.String("order_key", key.String()))
		return o, false, nil
	}

	l.logger.Info("order completed", zap.String("order_key", key.String()))
	l.publish(ctx, events.TypeOrderCompleted, key.String(), OrderCompleted{
		Key:            key.String(),
		Email:          o.Email,
		UserID:         o.UserID,
		Items:          o.Items,
		Subtotal:       o.Subtotal,
		Total:          o.Total,
		PointsEarned:   o.PointsEarned,
		PointsRedeemed: o.PointsRedeemed,
		CompletedAt:    *o.CompletedAt,
	})
	return o, true, nil
}

// UpdateShipping moves an order forward to shipped or delivered and records
// tracking details. The transition is monotonic: an update that would move the
// order backwards fails with ErrInvalidTransition.
func (l *Ledger) UpdateShipping(ctx context.Context, key Key, tracking, carrier string, target Status) (*Order, error) {
	if target != StatusShipped && target != StatusDelivered {
		return nil, fmt.Errorf("%w: shipping update to %s", ErrInvalidTransition, target)
	}

	o, err := l.store.Transition(ctx, key, target, tracking, carrier, time.Now())
	if err != nil {
		return nil, fmt.Errorf("order shipping update: %w", err)
	}

	eventType := events.TypeOrderShipped
	if target == StatusDelivered {
		eventType = events.TypeOrderDelivered
	}
	l.logger.Info("order shipping updated",
		zap.String("order_key", key.String()),
		zap.String("status", string(target)),
		zap.String("tracking_number", tracking))
	l.publish(ctx, eventType, key.String(), OrderShipped{
		Key:            key.String(),
		Email:          o.Email,
		TrackingNumber: tracking,
		CarrierCode:    carrier,
		Status:         target,
		UpdatedAt:      time.Now(),
	})
	return o, nil
}

// MarkPointsAwarded flips the per-order accrual flag. It returns true only for
// the single caller that flipped it, which is the caller allowed to append the
// earn transaction.
func (l *Ledger) MarkPointsAwarded(ctx context.Context, key Key) (bool, error) {
	awarded, err := l.store.MarkPointsAwarded(ctx, key)
	if err != nil {
		return false, fmt.Errorf("order mark points awarded: %w", err)
	}
	return awarded, nil
}

// SetPointsEarned records the accrued amount on the order for display.
func (l *Ledger) SetPointsEarned(ctx context.Context, key Key, points int) error {
	o, err := l.store.Get(ctx, key)
	if err != nil {
		return err
	}
	o.PointsEarned = points
	return l.store.Replace(ctx, o)
}

// SetPointsRedeemed records the debited amount on the order after the redeem
// transaction lands.
func (l *Ledger) SetPointsRedeemed(ctx context.Context, key Key, points int) error {
	o, err := l.store.Get(ctx, key)
	if err != nil {
		return err
	}
	o.PointsRedeemed = points
	return l.store.Replace(ctx, o)
}

// AttachUser re-parents an order to a registered user (retroactive linking).
func (l *Ledger) AttachUser(ctx context.Context, key Key, userID string) error {
	if err := l.store.SetUser(ctx, key, userID); err != nil {
		return fmt.Errorf("order attach user: %w", err)
	}
	return nil
}

// Get returns the order for key.
func (l *Ledger) Get(ctx context.Context, key Key) (*Order, error) {
	return l.store.Get(ctx, key)
}

// GuestOrdersByEmail returns completed guest orders for an email address.
func (l *Ledger) GuestOrdersByEmail(ctx context.Context, email string) ([]*Order, error) {
	return l.store.GuestOrdersByEmail(ctx, email)
}

// ListByUser returns all orders attached to a registered user.
func (l *Ledger) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	return l.store.ListByUser(ctx, userID)
}

// Repair overwrites an order record. Break-glass tool: the before/after state
// is logged for manual audit.
func (l *Ledger) Repair(ctx context.Context, o *Order) error {
	before, err := l.store.Get(ctx, o.Key)
	if err != nil {
		return fmt.Errorf("order repair: %w", err)
	}
	if err := l.store.Replace(ctx, o); err != nil {
		return fmt.Errorf("order repair: %w", err)
	}
	l.logger.Warn("order repaired",
		zap.String("order_key", o.Key.String()),
		zap.Any("before", before),
		zap.Any("after", o))
	return nil
}

// Delete removes an order record. Break-glass tool, logged with the removed
// state for manual audit.
func (l *Ledger) Delete(ctx context.Context, key Key) error {
	before, err := l.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("order delete: %w", err)
	}
	if err := l.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("order delete: %w", err)
	}
	l.logger.Warn("order deleted", zap.Any("before", before))
	return nil
}

func (l *Ledger) publish(ctx context.Context, eventType, key string, payload any) {
	if l.publisher == nil {
		return
	}
	evt, err := events.New(eventType, key, payload)
	if err != nil {
		l.logger.Error("failed to build event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := l.publisher.Publish(ctx, key, evt); err != nil {
		l.logger.Error("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}
