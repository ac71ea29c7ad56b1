package order

import (
	"context"
	"errors"
	"time"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyOrder        = errors.New("order must have at least one item")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrInvalidTotal      = errors.New("order total must not be negative")
)

// Key is the canonical opaque order identifier. It doubles as the idempotency
// key for the payment event that produced the order: the upstream payment
// session id and the order id are the same value.
type Key string

func (k Key) String() string { return string(k) }

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// statusRank orders the steady-state statuses. Transitions only move to a
// higher rank; cancelled sits outside the ladder and is reachable only through
// administrative repair.
var statusRank = map[Status]int{
	StatusPending:   0,
	StatusCompleted: 1,
	StatusShipped:   2,
	StatusDelivered: 3,
}

// CanTransitionTo reports whether the order may move forward to target.
func (o *Order) CanTransitionTo(target Status) bool {
	from, ok := statusRank[o.Status]
	if !ok {
		return false
	}
	to, ok := statusRank[target]
	if !ok {
		return false
	}
	return to > from
}

// Item is one ordered line.
type Item struct {
	ProductSlug string `json:"product_slug"`
	VariantID   string `json:"variant_id,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int    `json:"unit_price"` // minor currency units
}

// Order is the durable record of a captured sale. All monetary fields are
// integer minor currency units.
type Order struct {
	Key            Key        `json:"key"`
	Email          string     `json:"email"`
	UserID         string     `json:"user_id,omitempty"` // empty => guest
	Status         Status     `json:"status"`
	Items          []Item     `json:"items"`
	Subtotal       int        `json:"subtotal"`
	Shipping       int        `json:"shipping"`
	Tax            int        `json:"tax"`
	Total          int        `json:"total"`
	PointsEarned   int        `json:"points_earned"`
	PointsRedeemed int        `json:"points_redeemed"`
	PointsAwarded  bool       `json:"points_awarded"` // earn transaction appended
	PaymentMethod  string     `json:"payment_method,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	TrackingNumber string     `json:"tracking_number,omitempty"`
	CarrierCode    string     `json:"carrier_code,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ShippedAt      *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
}

// IsGuest reports whether the order has no registered user attached.
func (o *Order) IsGuest() bool { return o.UserID == "" }

// Store persists orders. Insert and the transition methods are the atomic
// primitives the ledger is built on: each one is a single conditional mutation
// at the storage layer, never a read followed by a separate write.
type Store interface {
	// Insert stores the order iff no record exists for its key. When a record
	// already exists it is returned unchanged with created=false.
	Insert(ctx context.Context, o *Order) (existing *Order, created bool, err error)

	// Get returns the order for key, or ErrOrderNotFound.
	Get(ctx context.Context, key Key) (*Order, error)

	// Complete transitions pending->completed. transitioned=false when the
	// order was already past pending. Returns the post-transition record.
	Complete(ctx context.Context, key Key, at time.Time) (o *Order, transitioned bool, err error)

	// Transition moves the order forward to target (shipped/delivered),
	// recording tracking details. Fails with ErrInvalidTransition when target
	// does not rank above the current status.
	Transition(ctx context.Context, key Key, target Status, tracking, carrier string, at time.Time) (*Order, error)

	// MarkPointsAwarded sets the points-awarded flag iff it is unset.
	// awarded=true means this call set the flag and the caller owns the earn.
	MarkPointsAwarded(ctx context.Context, key Key) (awarded bool, err error)

	// SetUser re-parents the order to a registered user.
	SetUser(ctx context.Context, key Key, userID string) error

	// Replace overwrites the full record (administrative repair only).
	Replace(ctx context.Context, o *Order) error

	// Delete removes the record (administrative only).
	Delete(ctx context.Context, key Key) error

	GuestOrdersByEmail(ctx context.Context, email string) ([]*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
}
