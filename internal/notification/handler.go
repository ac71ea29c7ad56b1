package notification

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/example/candleworks-fulfillment/internal/domain/order"
	"github.com/example/candleworks-fulfillment/internal/email"
	"github.com/example/candleworks-fulfillment/internal/events"
)

// MailingList is the marketing-list collaborator. Subscription failures are
// logged and dropped.
type MailingList interface {
	Subscribe(ctx context.Context, email string) error
}

// Handler consumes order events and sends the corresponding customer emails.
// Everything here is best-effort: the order already exists and nothing this
// handler does can roll it back.
type Handler struct {
	emailService *email.Service
	mailingList  MailingList
	logger       *zap.Logger
}

func NewHandler(emailSvc *email.Service, mailingList MailingList, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{emailService: emailSvc, mailingList: mailingList, logger: logger}
}

// HandleEvent processes one event from Kafka.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var evt events.Event
	if err := json.Unmarshal(value, &evt); err != nil {
		h.logger.Error("failed to unmarshal event", zap.Error(err))
		return err
	}

	switch evt.Type {
	case events.TypeOrderCompleted:
		return h.handleOrderCompleted(ctx, evt)
	case events.TypeOrderShipped, events.TypeOrderDelivered:
		return h.handleShippingUpdate(ctx, evt)
	}
	return nil
}

func (h *Handler) handleOrderCompleted(ctx context.Context, evt events.Event) error {
	var e order.OrderCompleted
	if err := json.Unmarshal(evt.Data, &e); err != nil {
		h.logger.Error("failed to unmarshal order completed event", zap.Error(err))
		return err
	}

	lines := make([]email.OrderLine, len(e.Items))
	for i, item := range e.Items {
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

	if err := h.emailService.SendInvoice(e.Email, e.Key, e.Total, lines); err != nil {
		h.logger.Warn("invoice email failed",
			zap.String("order_key", e.Key),
			zap.Error(err))
	} else {
		h.logger.Info("invoice email sent", zap.String("order_key", e.Key))
	}

	if h.mailingList != nil {
		if err := h.mailingList.Subscribe(ctx, e.Email); err != nil {
			h.logger.Warn("mailing list subscription failed", zap.Error(err))
		}
	}
	return nil
}

func (h *Handler) handleShippingUpdate(ctx context.Context, evt events.Event) error {
	var e order.OrderShipped
	if err := json.Unmarshal(evt.Data, &e); err != nil {
		h.logger.Error("failed to unmarshal shipping event", zap.Error(err))
		return err
	}

	if err := h.emailService.SendShippingUpdate(e.Email, e.Key, e.TrackingNumber, string(e.Status)); err != nil {
		h.logger.Warn("shipping email failed",
			zap.String("order_key", e.Key),
			zap.Error(err))
		return nil
	}
	h.logger.Info("shipping email sent",
		zap.String("order_key", e.Key),
		zap.String("status", string(e.Status)))
	return nil
}
