package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/example/candleworks-fulfillment/internal/api/middleware"
	"github.com/example/candleworks-fulfillment/internal/domain/order"
	"github.com/example/candleworks-fulfillment/internal/domain/points"
)

// AccountHandlers serves the authenticated customer's own data: points
// balance, transaction history and order list.
type AccountHandlers struct {
	points *points.Ledger
	orders *order.Ledger
	logger *zap.Logger
}

func NewAccountHandlers(pts *points.Ledger, orders *order.Ledger, logger *zap.Logger) *AccountHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountHandlers{points: pts, orders: orders, logger: logger}
}

// GetPoints returns the balance and full transaction history.
func (h *AccountHandlers) GetPoints(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	balance, err := h.points.Balance(r.Context(), userID)
	if err != nil {
		h.logger.Error("balance lookup failed", zap.String("user_id", userID), zap.Error(err))
		respondError(w, "points lookup failed", http.StatusInternalServerError)
		return
	}
	history, err := h.points.History(r.Context(), userID)
	if err != nil {
		h.logger.Error("history lookup failed", zap.String("user_id", userID), zap.Error(err))
		respondError(w, "points lookup failed", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"balance":                balance,
		"redemption_value_minor": points.RedemptionValue(balance),
		"transactions":           history,
	})
}

// GetOrders lists the customer's orders.
func (h *AccountHandlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	orders, err := h.orders.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("order list failed", zap.String("user_id", userID), zap.Error(err))
		respondError(w, "order lookup failed", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}
