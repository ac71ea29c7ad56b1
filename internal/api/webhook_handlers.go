package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/candleworks-fulfillment/internal/domain/order"
	"github.com/example/candleworks-fulfillment/internal/fulfillment"
	"github.com/example/candleworks-fulfillment/internal/metrics"
)

// WebhookHandlers terminates the inbound payment and shipping webhooks. Once
// a delivery is authenticated it is always acknowledged with 200, even when
// downstream steps partially fail: the upstream retries forever otherwise and
// every failure here is already surfaced through logs for reconciliation.
type WebhookHandlers struct {
	processor *fulfillment.Processor
	orders    *order.Ledger
	logger    *zap.Logger
}

func NewWebhookHandlers(processor *fulfillment.Processor, orders *order.Ledger, logger *zap.Logger) *WebhookHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandlers{processor: processor, orders: orders, logger: logger}
}

// HandlePaymentEvent processes a payment-confirmation delivery.
func (h *WebhookHandlers) HandlePaymentEvent(w http.ResponseWriter, r *http.Request) {
	var evt fulfillment.PaymentEvent
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		metrics.WebhookEvents.WithLabelValues("payment", "bad_payload").Inc()
		respondError(w, "invalid payload", http.StatusBadRequest)
		return
	}

	o, err := h.processor.Process(r.Context(), evt)
	if err != nil {
		// Authenticated but unprocessable: acknowledge to stop redelivery,
		// reconcile from logs.
		metrics.WebhookEvents.WithLabelValues("payment", "failed").Inc()
		h.logger.Error("payment event processing failed",
			zap.String("session_id", evt.SessionID),
			zap.Error(err))
		respondJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
		return
	}

	metrics.WebhookEvents.WithLabelValues("payment", "ok").Inc()
	metrics.OrdersCompleted.Inc()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"order_key": o.Key,
	})
}

// shippingEvent is the carrier webhook payload.
type shippingEvent struct {
	OrderNumber    string `json:"orderNumber"`
	TrackingNumber string `json:"trackingNumber"`
	CarrierCode    string `json:"carrierCode"`
	ServiceCode    string `json:"serviceCode"`
	ShipDate       string `json:"shipDate"`
	Voided         bool   `json:"voided"`
	Delivered      bool   `json:"delivered"`
}

// HandleShippingEvent processes a shipping-status delivery. Voided shipments
// are skipped; unknown orders are logged and acknowledged so the carrier does
// not retry them.
func (h *WebhookHandlers) HandleShippingEvent(w http.ResponseWriter, r *http.Request) {
	var evt shippingEvent
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		metrics.WebhookEvents.WithLabelValues("shipping", "bad_payload").Inc()
		respondError(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if evt.Voided {
		metrics.WebhookEvents.WithLabelValues("shipping", "voided").Inc()
		h.logger.Info("voided shipment skipped",
			zap.String("order_key", evt.OrderNumber))
		respondJSON(w, http.StatusOK, map[string]string{"status": "skipped"})
		return
	}

	target := order.StatusShipped
	if evt.Delivered {
		target = order.StatusDelivered
	}

	_, err := h.orders.UpdateShipping(r.Context(), order.Key(evt.OrderNumber),
		evt.TrackingNumber, evt.CarrierCode, target)
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		metrics.WebhookEvents.WithLabelValues("shipping", "unknown_order").Inc()
		h.logger.Warn("shipping event for unknown order, acknowledged",
			zap.String("order_key", evt.OrderNumber))
		respondJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
	case errors.Is(err, order.ErrInvalidTransition):
		metrics.WebhookEvents.WithLabelValues("shipping", "stale").Inc()
		h.logger.Info("stale shipping event, acknowledged",
			zap.String("order_key", evt.OrderNumber),
			zap.String("target", string(target)))
		respondJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
	case err != nil:
		metrics.WebhookEvents.WithLabelValues("shipping", "failed").Inc()
		h.logger.Error("shipping update failed",
			zap.String("order_key", evt.OrderNumber),
			zap.Error(err))
		respondJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
	default:
		metrics.WebhookEvents.WithLabelValues("shipping", "ok").Inc()
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
