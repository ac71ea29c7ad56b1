package notification

import (
	"context"

	"github.com/example/candleworks-fulfillment/internal/domain/order"
	"github.com/example/candleworks-fulfillment/internal/email"
)

// DirectNotifier sends the invoice email synchronously, for deployments that
// run without the event bus and the standalone notifier.
type DirectNotifier struct {
	emailService *email.Service
	orders       *order.Ledger
}

func NewDirectNotifier(emailSvc *email.Service, orders *order.Ledger) *DirectNotifier {
	return &DirectNotifier{emailService: emailSvc, orders: orders}
}

func (n *DirectNotifier) SendInvoice(ctx context.Context, orderKey, to string) error {
	o, err := n.orders.Get(ctx, order.Key(orderKey))
	if err != nil {
		return err
	}

	lines := make([]email.OrderLine, len(o.Items))
	for i, item := range o.Items {
		name := item.ProductSlug
		if item.VariantID != "" {
			name += " (" + item.VariantID + ")"
		}
		lines[i] = email.OrderLine{
			Name:      name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return n.emailService.SendInvoice(to, orderKey, o.Total, lines)
}
