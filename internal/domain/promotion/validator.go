package promotion

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Result is a successfully validated promotion with its computed discount.
type Result struct {
	Promotion     *Promotion `json:"promotion"`
	DiscountMinor int        `json:"discount_minor"`
	FreeShipping  bool       `json:"free_shipping"`
}

// Validator evaluates promotion codes and discovers automatically applicable
// promotions for a cart.
type Validator struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewValidator(store Store, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{store: store, logger: logger, now: time.Now}
}

// ValidateCode resolves a code and runs the eligibility pipeline. The first
// failing check determines the returned error.
func (v *Validator) ValidateCode(ctx context.Context, code string, cart CartContext) (*Result, error) {
	p, err := v.store.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := v.checkEligibility(ctx, p, cart); err != nil {
		v.logger.Info("promotion code rejected",
			zap.String("code", code),
			zap.String("reason", err.Error()))
		return nil, err
	}
	return v.result(p, cart), nil
}

// Discover evaluates every active automatic promotion through the same
// pipeline and returns the eligible ones ordered by descending priority,
// ties broken by descending discount. Callers apply the head of the list.
func (v *Validator) Discover(ctx context.Context, cart CartContext) ([]*Result, error) {
	promos, err := v.store.ListAutomatic(ctx)
	if err != nil {
		return nil, fmt.Errorf("promotion discover: %w", err)
	}

	var eligible []*Result
	for _, p := range promos {
		if err := v.checkEligibility(ctx, p, cart); err != nil {
			continue
		}
		eligible = append(eligible, v.result(p, cart))
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Promotion.Priority != eligible[j].Promotion.Priority {
			return eligible[i].Promotion.Priority > eligible[j].Promotion.Priority
		}
		return eligible[i].DiscountMinor > eligible[j].DiscountMinor
	})
	return eligible, nil
}

// Consume records one redemption against the promotion's usage limits. The
// increment and the ceiling check happen atomically in the store.
func (v *Validator) Consume(ctx context.Context, promoID, userID string) error {
	if err := v.store.ConsumeUsage(ctx, promoID, userID); err != nil {
		return err
	}
	v.logger.Info("promotion consumed",
		zap.String("promotion_id", promoID),
		zap.String("user_id", userID))
	return nil
}

// checkEligibility runs the pipeline in its fixed order: date window, global
// usage, per-user usage, minimum subtotal, user scope.
func (v *Validator) checkEligibility(ctx context.Context, p *Promotion, cart CartContext) error {
	if !p.activeAt(v.now()) {
		return ErrNotActive
	}
	if p.UsageLimit > 0 && p.UsageCount >= p.UsageLimit {
		return ErrUsageLimitReached
	}
	if p.PerUserLimit > 0 && cart.UserID != "" {
		used, err := v.store.UserUsageCount(ctx, p.ID, cart.UserID)
		if err != nil {
			return fmt.Errorf("promotion per-user usage: %w", err)
		}
		if used >= p.PerUserLimit {
			return ErrPerUserLimitReached
		}
	}
	if cart.Subtotal < p.MinSubtotal {
		return ErrMinSubtotalNotMet
	}
	switch p.Scope {
	case ScopeNewCustomer:
		if cart.UserID == "" || !cart.IsNewCustomer {
			return ErrScopeMismatch
		}
	case ScopeGuestOnly:
		if cart.UserID != "" {
			return ErrScopeMismatch
		}
	}
	return nil
}

func (v *Validator) result(p *Promotion, cart CartContext) *Result {
	return &Result{
		Promotion:     p,
		DiscountMinor: p.Discount(cart.Subtotal),
		FreeShipping:  p.Type == TypeFreeShipping,
	}
}
