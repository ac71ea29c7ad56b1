package promotion

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCodeNotFound        = errors.New("promotion code not found")
	ErrNotActive           = errors.New("promotion is not active")
	ErrUsageLimitReached   = errors.New("promotion usage limit reached")
	ErrPerUserLimitReached = errors.New("promotion per-user limit reached")
	ErrMinSubtotalNotMet   = errors.New("cart subtotal below promotion minimum")
	ErrScopeMismatch       = errors.New("promotion not available for this customer")
)

type DiscountType string

const (
	TypePercent      DiscountType = "percent"
	TypeFixedAmount  DiscountType = "fixed_amount"
	TypeFreeShipping DiscountType = "free_shipping"
)

type UserScope string

const (
	ScopeAny         UserScope = "any"
	ScopeNewCustomer UserScope = "new_customer"
	ScopeGuestOnly   UserScope = "guest_only"
)

// Promotion is a discount rule. Promotions are authored by the catalog admin
// tooling and consumed read-only here; only the usage counters mutate.
type Promotion struct {
	ID            string       `json:"id"`
	Code          string       `json:"code,omitempty"` // empty => automatic
	Name          string       `json:"name"`
	Type          DiscountType `json:"type"`
	Percent       int          `json:"percent,omitempty"`      // for TypePercent
	AmountMinor   int          `json:"amount_minor,omitempty"` // for TypeFixedAmount
	MinSubtotal   int          `json:"min_subtotal,omitempty"`
	Scope         UserScope    `json:"scope"`
	UsageLimit    int          `json:"usage_limit,omitempty"`     // 0 => unlimited
	PerUserLimit  int          `json:"per_user_limit,omitempty"`  // 0 => unlimited
	StartsAt      *time.Time   `json:"starts_at,omitempty"`
	EndsAt        *time.Time   `json:"ends_at,omitempty"`
	Priority      int          `json:"priority"`
	Stackable     bool         `json:"stackable"`
	UsageCount    int          `json:"usage_count"`
}

// IsAutomatic reports whether the promotion applies without a code.
func (p *Promotion) IsAutomatic() bool { return p.Code == "" }

// activeAt checks the date window.
func (p *Promotion) activeAt(now time.Time) bool {
	if p.StartsAt != nil && now.Before(*p.StartsAt) {
		return false
	}
	if p.EndsAt != nil && now.After(*p.EndsAt) {
		return false
	}
	return true
}

// Discount computes the discount in minor currency units against a product
// subtotal. Percent discounts round half away from zero, matching the points
// math. Free-shipping promotions carry no subtotal discount here; the
// checkout layer zeroes the shipping line instead.
func (p *Promotion) Discount(subtotal int) int {
	switch p.Type {
	case TypePercent:
		return (subtotal*p.Percent + 50) / 100
	case TypeFixedAmount:
		if p.AmountMinor > subtotal {
			return subtotal
		}
		return p.AmountMinor
	default:
		return 0
	}
}

// CartContext describes the cart and customer a promotion is evaluated
// against. UserID is empty for guests.
type CartContext struct {
	Subtotal      int
	UserID        string
	Email         string
	IsNewCustomer bool
}

// Store gives read access to promotions plus the atomic usage counters.
// ConsumeUsage must enforce both limits together with the increment, so a
// limit-1 promotion hit by two concurrent requests succeeds exactly once.
type Store interface {
	FindByCode(ctx context.Context, code string) (*Promotion, error)
	ListAutomatic(ctx context.Context) ([]*Promotion, error)
	UserUsageCount(ctx context.Context, promoID, userID string) (int, error)

	// ConsumeUsage atomically increments the global (and, when userID is set,
	// per-user) usage counters, failing with ErrUsageLimitReached or
	// ErrPerUserLimitReached without mutation when a ceiling would be crossed.
	ConsumeUsage(ctx context.Context, promoID, userID string) error

	// Upsert is for the catalog collaborator and test seeding.
	Upsert(ctx context.Context, p *Promotion) error
}
