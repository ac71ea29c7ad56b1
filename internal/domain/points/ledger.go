package points

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/candleworks-fulfillment/internal/events"
	"github.com/example/candleworks-fulfillment/internal/metrics"
)

var (
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrInvalidAmount      = errors.New("point amount must be positive")
)

// One point per whole currency unit of product subtotal; redeemed points are
// worth five minor units each (100 points = 5.00).
const (
	minorUnitsPerPoint   = 100
	redemptionValueMinor = 5
)

type TransactionType string

const (
	TypeEarn   TransactionType = "earn"
	TypeRedeem TransactionType = "redeem"
	TypeAdjust TransactionType = "adjust"
)

// Transaction is one append-only ledger entry. Amount is signed: earn entries
// are positive, redeem entries negative, adjustments either.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      int             `json:"amount"`
	Type        TransactionType `json:"type"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Store persists the ledger. Apply must atomically append the transaction and
// move the balance, rejecting any application that would take the balance
// below zero with ErrInsufficientPoints.
type Store interface {
	Apply(ctx context.Context, txn *Transaction) (newBalance int, err error)
	Balance(ctx context.Context, userID string) (int, error)
	History(ctx context.Context, userID string) ([]*Transaction, error)
}

// EarnedPoints converts a product subtotal in minor currency units to points,
// rounding half away from zero at the .5 boundary. Shipping and tax are the
// caller's problem: only the product subtotal goes in here.
func EarnedPoints(subtotalMinor int) int {
	if subtotalMinor >= 0 {
		return (subtotalMinor + minorUnitsPerPoint/2) / minorUnitsPerPoint
	}
	return -((-subtotalMinor + minorUnitsPerPoint/2) / minorUnitsPerPoint)
}

// RedemptionValue returns the discount in minor currency units for a number
// of redeemed points.
func RedemptionValue(points int) int {
	return points * redemptionValueMinor
}

// Ledger maintains per-user balances over an append-only transaction log.
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

// Earn appends an earn transaction and increments the balance. At-most-once
// semantics per completed order are owned by the caller (the order ledger's
// points-awarded flag).
func (l *Ledger) Earn(ctx context.Context, userID string, amount int, description string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	txn := newTransaction(userID, amount, TypeEarn, description)
	balance, err := l.store.Apply(ctx, txn)
	if err != nil {
		return nil, fmt.Errorf("points earn: %w", err)
	}
	metrics.PointsEarned.Add(float64(amount))
	l.logger.Info("points earned",
		zap.String("user_id", userID),
		zap.Int("amount", amount),
		zap.Int("balance", balance))
	l.publish(ctx, events.TypePointsEarned, userID, BalanceChanged{
		UserID:      userID,
		Amount:      amount,
		Balance:     balance,
		Description: description,
	})
	return txn, nil
}

// Redeem appends a redeem transaction and decrements the balance. The balance
// floor is enforced atomically with the append: a redeem that exceeds the
// balance at evaluation time fails with ErrInsufficientPoints and appends
// nothing.
func (l *Ledger) Redeem(ctx context.Context, userID string, amount int, description string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	txn := newTransaction(userID, -amount, TypeRedeem, description)
	balance, err := l.store.Apply(ctx, txn)
	if err != nil {
		if errors.Is(err, ErrInsufficientPoints) {
			l.logger.Warn("points redemption rejected",
				zap.String("user_id", userID),
				zap.Int("requested", amount))
			return nil, err
		}
		return nil, fmt.Errorf("points redeem: %w", err)
	}
	metrics.PointsRedeemed.Add(float64(amount))
	l.logger.Info("points redeemed",
		zap.String("user_id", userID),
		zap.Int("amount", amount),
		zap.Int("balance", balance))
	l.publish(ctx, events.TypePointsRedeemed, userID, BalanceChanged{
		UserID:      userID,
		Amount:      -amount,
		Balance:     balance,
		Description: description,
	})
	return txn, nil
}

// Adjust appends an administrative adjustment. Signed amount; the zero floor
// still applies.
func (l *Ledger) Adjust(ctx context.Context, userID string, amount int, description string) (*Transaction, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	txn := newTransaction(userID, amount, TypeAdjust, description)
	balance, err := l.store.Apply(ctx, txn)
	if err != nil {
		return nil, fmt.Errorf("points adjust: %w", err)
	}
	l.logger.Warn("points adjusted",
		zap.String("user_id", userID),
		zap.Int("amount", amount),
		zap.Int("balance", balance),
		zap.String("description", description))
	return txn, nil
}

// Balance returns the current balance for a user. Users with no transactions
// have balance zero.
func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	return l.store.Balance(ctx, userID)
}

// History returns the user's transactions, oldest first.
func (l *Ledger) History(ctx context.Context, userID string) ([]*Transaction, error) {
	return l.store.History(ctx, userID)
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

func newTransaction(userID string, amount int, txnType TransactionType, description string) *Transaction {
	return &Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Amount:      amount,
		Type:        txnType,
		Description: description,
		CreatedAt:   time.Now(),
	}
}
