package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/example/candleworks-fulfillment/internal/domain/order"
	"github.com/example/candleworks-fulfillment/internal/domain/points"
	"github.com/example/candleworks-fulfillment/internal/domain/stock"
)

// AdminHandlers hosts the break-glass operator endpoints: stock corrections,
// manual shipping updates, order repair/delete and points adjustments. All of
// them sit behind the admin role.
type AdminHandlers struct {
	stock  *stock.Ledger
	orders *order.Ledger
	points *points.Ledger
	logger *zap.Logger
}

func NewAdminHandlers(stk *stock.Ledger, orders *order.Ledger, pts *points.Ledger, logger *zap.Logger) *AdminHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandlers{stock: stk, orders: orders, points: pts, logger: logger}
}

type stockRequest struct {
	ProductSlug string `json:"product_slug"`
	VariantID   string `json:"variant_id,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`
	Delta       int    `json:"delta,omitempty"`
}

// SetStock overwrites a counter (administrative correction).
func (h *AdminHandlers) SetStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid payload", http.StatusBadRequest)
		return
	}
	key := stock.Key{ProductSlug: req.ProductSlug, VariantID: req.VariantID}
	if err := h.stock.SetAbsolute(r.Context(), key, req.Quantity); err != nil {
		if errors.Is(err, stock.ErrNegativeStock) {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
		respondError(w, "stock update failed", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"stock_key": key.String(), "quantity": req.Quantity})
}

// AdjustStock applies a delta to a counter.
func (h *AdminHandlers) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid payload", http.StatusBadRequest)
		return
	}
	key := stock.Key{ProductSlug: req.ProductSlug, VariantID: req.VariantID}
	quantity, err := h.stock.Adjust(r.Context(), key, req.Delta)
	if err != nil {
		switch {
		case errors.Is(err, stock.ErrInsufficientStock):
			respondError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, stock.ErrCounterNotFound):
			respondError(w, err.Error(), http.StatusNotFound)
		default:
			respondError(w, "stock update failed", http.StatusInternalServerError)
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"stock_key": key.String(), "quantity": quantity})
}

type shippingUpdateRequest struct {
	TrackingNumber string `json:"tracking_number"`
	CarrierCode    string `json:"carrier_code,omitempty"`
	Status         string `json:"status"`
}

// UpdateShipping manually moves an order to shipped or delivered.
func (h *AdminHandlers) UpdateShipping(w http.ResponseWriter, r *http.Request) {
	key := order.Key(extractPathParam(r.URL.Path, "/admin/orders/", "/shipping"))
	var req shippingUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid payload", http.StatusBadRequest)
		return
	}

	o, err := h.orders.UpdateShipping(r.Context(), key, req.TrackingNumber,
		req.CarrierCode, order.Status(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			respondError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, order.ErrInvalidTransition):
			respondError(w, err.Error(), http.StatusConflict)
		default:
			respondError(w, "shipping update failed", http.StatusInternalServerError)
		}
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// GetOrder returns one order by key.
func (h *AdminHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	key := order.Key(extractPathParam(r.URL.Path, "/admin/orders/", ""))
	o, err := h.orders.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			respondError(w, err.Error(), http.StatusNotFound)
			return
		}
		respondError(w, "order lookup failed", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// RepairOrder overwrites an order record (break-glass, audit-logged).
func (h *AdminHandlers) RepairOrder(w http.ResponseWriter, r *http.Request) {
	key := order.Key(extractPathParam(r.URL.Path, "/admin/orders/", "/repair"))
	var o order.Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		respondError(w, "invalid payload", http.StatusBadRequest)
		return
	}
	o.Key = key
	if err := h.orders.Repair(r.Context(), &o); err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			respondError(w, err.Error(), http.StatusNotFound)
			return
		}
		respondError(w, "order repair failed", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, &o)
}

// DeleteOrder removes an order record (break-glass, audit-logged).
func (h *AdminHandlers) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	key := order.Key(extractPathParam(r.URL.Path, "/admin/orders/", ""))
	if err := h.orders.Delete(r.Context(), key); err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			respondError(w, err.Error(), http.StatusNotFound)
			return
		}
		respondError(w, "order delete failed", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type pointsAdjustRequest struct {
	UserID      string `json:"user_id"`
	Amount      int    `json:"amount"`
	Description string `json:"description"`
}

// AdjustPoints appends an administrative points adjustment.
func (h *AdminHandlers) AdjustPoints(w http.ResponseWriter, r *http.Request) {
	var req pointsAdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid payload", http.StatusBadRequest)
		return
	}
	txn, err := h.points.Adjust(r.Context(), req.UserID, req.Amount, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, points.ErrInsufficientPoints):
			respondError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, points.ErrInvalidAmount):
			respondError(w, err.Error(), http.StatusBadRequest)
		default:
			respondError(w, "points adjustment failed", http.StatusInternalServerError)
		}
		return
	}
	respondJSON(w, http.StatusOK, txn)
}

// extractPathParam pulls the path segment between prefix and suffix.
func extractPathParam(path, prefix, suffix string) string {
	param := strings.TrimPrefix(path, prefix)
	if suffix != "" {
		param = strings.TrimSuffix(param, suffix)
	}
	return strings.Trim(param, "/")
}
