package fulfillment

import "context"

// IdentityResolver looks up a registered customer by email. found=false for
// guests; errors are reserved for lookup failures.
type IdentityResolver interface {
	ResolveByEmail(ctx context.Context, email string) (userID string, found bool, err error)
}

// PriceResolver maps an upstream price identifier to an internal product and
// variant when the event metadata carries no mapping for it.
type PriceResolver interface {
	Resolve(ctx context.Context, priceID string) (productSlug, variantID string, ok bool, err error)
}

// PromotionConsumer counts one redemption against a promotion's usage limits.
// userID is empty for guest orders.
type PromotionConsumer interface {
	Consume(ctx context.Context, promoID, userID string) error
}

// Notifier sends the invoice notification for a completed order. Best-effort:
// failures are logged and never affect the order.
type Notifier interface {
	SendInvoice(ctx context.Context, orderKey, email string) error
}

// MailingList subscribes a customer to the marketing list. Best-effort.
type MailingList interface {
	Subscribe(ctx context.Context, email string) error
}
