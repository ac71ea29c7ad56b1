package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/candleworks-fulfillment/internal/domain/order"
	"github.com/example/candleworks-fulfillment/internal/domain/points"
	"github.com/example/candleworks-fulfillment/internal/domain/stock"
)

// outboundTimeout bounds every call to an external collaborator so a slow
// identity lookup or notifier can never gate the order-completion path.
const outboundTimeout = 5 * time.Second

// LineItem is one captured charge line from the payment event.
type LineItem struct {
	PriceID     string `json:"price_id"`
	Description string `json:"description,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitAmount  int    `json:"unit_amount"` // minor currency units, discount already applied
}

// Metadata is the checkout-time context the upstream processor echoes back.
// PriceMap maps price ids to "slug" or "slug:variant" internal identifiers.
type Metadata struct {
	UserID         string            `json:"user_id,omitempty"`
	PromotionID    string            `json:"promotion_id,omitempty"`
	PointsRedeemed int               `json:"points_redeemed,omitempty"`
	Shipping       int               `json:"shipping,omitempty"`
	Tax            int               `json:"tax,omitempty"`
	PaymentMethod  string            `json:"payment_method,omitempty"`
	PriceMap       map[string]string `json:"price_map,omitempty"`
}

// PaymentEvent is one authenticated payment-confirmation event. SessionID is
// the idempotency key and becomes the order key.
type PaymentEvent struct {
	SessionID     string     `json:"session_id"`
	LineItems     []LineItem `json:"line_items"`
	CustomerEmail string     `json:"customer_email"`
	Metadata      Metadata   `json:"metadata"`
}

// Processor turns payment-confirmation events into order, stock and points
// state. The steps form a small saga: the payment upstream is already
// captured and irreversible, so the order record must land exactly once while
// the secondary effects (stock precision, notifications) stay best-effort.
type Processor struct {
	orders      *order.Ledger
	stock       *stock.Ledger
	points      *points.Ledger
	promotions  PromotionConsumer
	identity    IdentityResolver
	prices      PriceResolver
	notifier    Notifier
	mailingList MailingList
	logger      *zap.Logger
}

type Config struct {
	Orders      *order.Ledger
	Stock       *stock.Ledger
	Points      *points.Ledger
	Promotions  PromotionConsumer
	Identity    IdentityResolver
	Prices      PriceResolver
	Notifier    Notifier
	MailingList MailingList
	Logger      *zap.Logger
}

func NewProcessor(cfg Config) *Processor {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		orders:      cfg.Orders,
		stock:       cfg.Stock,
		points:      cfg.Points,
		promotions:  cfg.Promotions,
		identity:    cfg.Identity,
		prices:      cfg.Prices,
		notifier:    cfg.Notifier,
		mailingList: cfg.MailingList,
		logger:      logger,
	}
}

// Process handles one payment-confirmation event. Safe under webhook
// redelivery: the idempotency gate runs before any mutation.
func (p *Processor) Process(ctx context.Context, evt PaymentEvent) (*order.Order, error) {
	if evt.SessionID == "" {
		return nil, fmt.Errorf("payment event: empty session id")
	}
	key := order.Key(evt.SessionID)
	log := p.logger.With(zap.String("order_key", evt.SessionID))

	// 1. Fast-path replay check. A completed order for this session means a
	// previous delivery already did all the work.
	if existing, err := p.orders.Get(ctx, key); err == nil {
		if existing.Status != order.StatusPending {
			log.Info("payment event replayed for completed order, no-op")
			return existing, nil
		}
	} else if !errors.Is(err, order.ErrOrderNotFound) {
		return nil, fmt.Errorf("payment event: idempotency check: %w", err)
	}

	// 2. Resolve line items. Unmapped items are logged and skipped; the
	// payment is captured either way.
	items, subtotal := p.resolveItems(ctx, evt, log)
	if len(items) == 0 {
		return nil, fmt.Errorf("payment event: no resolvable line items")
	}

	// 3. Identity resolution with a bounded timeout.
	userID := p.resolveUser(ctx, evt, log)

	// 4. Claim the idempotency key. Create either wins the key or returns
	// the record a concurrent delivery inserted; the check above is only a
	// fast path and two first deliveries can both get past it.
	o, created, err := p.orders.Create(ctx, order.CreateParams{
		Key:           key,
		Email:         normalizeEmail(evt.CustomerEmail),
		UserID:        userID,
		Items:         items,
		Subtotal:      subtotal,
		Shipping:      evt.Metadata.Shipping,
		Tax:           evt.Metadata.Tax,
		Total:         subtotal + evt.Metadata.Shipping + evt.Metadata.Tax,
		PaymentMethod: evt.Metadata.PaymentMethod,
	})
	if err != nil {
		return nil, fmt.Errorf("payment event: %w", err)
	}
	if !created && o.Status != order.StatusPending {
		log.Info("payment event replayed for completed order, no-op")
		return o, nil
	}

	// 4a. Single-delivery effects, performed only by the caller that won the
	// key. A delivery that lost the claim must not decrement stock, debit
	// points or consume promotion usage a second time.
	if created {
		p.claimedEffects(ctx, evt, key, userID, items, log)
	}

	// 5. Complete the order. The pending->completed transition is conditional
	// in the store, so exactly one delivery transitions it.
	o, transitioned, err := p.orders.Complete(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("payment event: %w", err)
	}

	// 5a. Earn points on the product subtotal, gated by the per-order flag so
	// a replay racing past the fast-path check still credits once.
	if userID != "" {
		p.earnOnce(ctx, o, userID, log)
	}

	// 6. Best-effort side effects, only for the delivery that performed the
	// transition. Failures are logged, never rolled back.
	if transitioned {
		p.sideEffects(ctx, o, log)
	}

	return o, nil
}

// claimedEffects runs the once-per-order mutations: the stock decrement, the
// pre-authorized point redemption and the promotion usage increment. The
// caller holds the freshly claimed order key, still pending.
func (p *Processor) claimedEffects(ctx context.Context, evt PaymentEvent, key order.Key, userID string, items []order.Item, log *zap.Logger) {
	// Stock decrements are best-effort relative to the captured payment.
	for _, item := range items {
		skey := stock.Key{ProductSlug: item.ProductSlug, VariantID: item.VariantID}
		if _, err := p.stock.Adjust(ctx, skey, -item.Quantity); err != nil {
			log.Warn("stock decrement failed, continuing",
				zap.String("stock_key", skey.String()),
				zap.Int("quantity", item.Quantity),
				zap.Error(err))
		}
	}

	// Redeem pre-authorized points, only when the checkout-time user
	// assertion matches the resolved account.
	if userID != "" && evt.Metadata.PointsRedeemed > 0 && evt.Metadata.UserID == userID {
		if _, err := p.points.Redeem(ctx, userID, evt.Metadata.PointsRedeemed,
			fmt.Sprintf("Redeemed on order %s", key)); err != nil {
			log.Warn("points redemption failed, order proceeds without it",
				zap.Int("requested", evt.Metadata.PointsRedeemed),
				zap.Error(err))
		} else if err := p.orders.SetPointsRedeemed(ctx, key, evt.Metadata.PointsRedeemed); err != nil {
			log.Error("failed to record redeemed points on order", zap.Error(err))
		}
	}

	// Count the applied promotion against its usage limits. The ceiling was
	// checked at validation time; the payment is captured regardless, so a
	// failure here is logged rather than surfaced.
	if p.promotions != nil && evt.Metadata.PromotionID != "" {
		if err := p.promotions.Consume(ctx, evt.Metadata.PromotionID, userID); err != nil {
			log.Warn("promotion usage consume failed",
				zap.String("promotion_id", evt.Metadata.PromotionID),
				zap.Error(err))
		}
	}
}

func (p *Processor) resolveItems(ctx context.Context, evt PaymentEvent, log *zap.Logger) ([]order.Item, int) {
	var items []order.Item
	subtotal := 0
	for _, line := range evt.LineItems {
		slug, variant, ok := p.resolvePrice(ctx, evt.Metadata.PriceMap, line.PriceID)
		if !ok {
			log.Warn("unmapped line item skipped",
				zap.String("price_id", line.PriceID),
				zap.String("description", line.Description))
			continue
		}
		qty := line.Quantity
		if qty <= 0 {
			qty = 1
		}
		items = append(items, order.Item{
			ProductSlug: slug,
			VariantID:   variant,
			Quantity:    qty,
			UnitPrice:   line.UnitAmount,
		})
		subtotal += line.UnitAmount * qty
	}
	return items, subtotal
}

func (p *Processor) resolvePrice(ctx context.Context, priceMap map[string]string, priceID string) (slug, variant string, ok bool) {
	if mapped, found := priceMap[priceID]; found && mapped != "" {
		slug, variant, _ = strings.Cut(mapped, ":")
		return slug, variant, true
	}
	if p.prices == nil {
		return "", "", false
	}
	rctx, cancel := context.WithTimeout(ctx, outboundTimeout)
	defer cancel()
	slug, variant, ok, err := p.prices.Resolve(rctx, priceID)
	if err != nil {
		return "", "", false
	}
	return slug, variant, ok
}

func (p *Processor) resolveUser(ctx context.Context, evt PaymentEvent, log *zap.Logger) string {
	if p.identity == nil || evt.CustomerEmail == "" {
		return ""
	}
	rctx, cancel := context.WithTimeout(ctx, outboundTimeout)
	defer cancel()
	userID, found, err := p.identity.ResolveByEmail(rctx, normalizeEmail(evt.CustomerEmail))
	if err != nil {
		log.Warn("identity resolution failed, treating as guest", zap.Error(err))
		return ""
	}
	if !found {
		return ""
	}
	return userID
}

func (p *Processor) earnOnce(ctx context.Context, o *order.Order, userID string, log *zap.Logger) {
	awarded, err := p.orders.MarkPointsAwarded(ctx, o.Key)
	if err != nil {
		log.Error("points-awarded flag check failed", zap.Error(err))
		return
	}
	if !awarded {
		return
	}

	earned := points.EarnedPoints(o.Subtotal)
	if earned <= 0 {
		return
	}
	if _, err := p.points.Earn(ctx, userID, earned,
		fmt.Sprintf("Points for order %s", o.Key)); err != nil {
		log.Error("points earn failed", zap.Error(err))
		return
	}
	if err := p.orders.SetPointsEarned(ctx, o.Key, earned); err != nil {
		log.Error("failed to record earned points on order", zap.Error(err))
	}
}

func (p *Processor) sideEffects(ctx context.Context, o *order.Order, log *zap.Logger) {
	if p.notifier != nil {
		rctx, cancel := context.WithTimeout(ctx, outboundTimeout)
		if err := p.notifier.SendInvoice(rctx, o.Key.String(), o.Email); err != nil {
			log.Warn("invoice notification failed", zap.Error(err))
		}
		cancel()
	}
	if p.mailingList != nil {
		rctx, cancel := context.WithTimeout(ctx, outboundTimeout)
		if err := p.mailingList.Subscribe(rctx, o.Email); err != nil {
			log.Warn("mailing list subscription failed", zap.Error(err))
		}
		cancel()
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
