package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/candleworks-fulfillment/internal/api/middleware"
	"github.com/example/candleworks-fulfillment/internal/domain/promotion"
	"github.com/example/candleworks-fulfillment/internal/metrics"
)

// PromotionHandlers serves cart-review promotion validation.
type PromotionHandlers struct {
	validator *promotion.Validator
	logger    *zap.Logger
}

func NewPromotionHandlers(validator *promotion.Validator, logger *zap.Logger) *PromotionHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromotionHandlers{validator: validator, logger: logger}
}

type cartItem struct {
	ProductSlug string `json:"product_slug"`
	VariantID   string `json:"variant_id,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int    `json:"unit_price"`
}

type validateRequest struct {
	Code          string     `json:"code,omitempty"`
	CartItems     []cartItem `json:"cart_items"`
	IsNewCustomer bool       `json:"is_new_customer,omitempty"`
}

type validateResponse struct {
	Valid               bool   `json:"valid"`
	PromotionID         string `json:"promotion_id,omitempty"`
	Name                string `json:"name,omitempty"`
	DiscountPercent     int    `json:"discount_percent,omitempty"`
	DiscountAmountMinor int    `json:"discount_amount_minor,omitempty"`
	FreeShipping        bool   `json:"free_shipping,omitempty"`
	Error               string `json:"error,omitempty"`
}

// Validate evaluates a code, or discovers the best automatic promotion when
// no code is supplied.
func (h *PromotionHandlers) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid payload", http.StatusBadRequest)
		return
	}

	cart := promotion.CartContext{
		UserID:        middleware.GetUserID(r.Context()),
		IsNewCustomer: req.IsNewCustomer,
	}
	for _, item := range req.CartItems {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		cart.Subtotal += item.UnitPrice * qty
	}
	if claims, ok := middleware.GetUserFromContext(r.Context()); ok {
		cart.Email = claims.Email
	}

	if req.Code == "" {
		h.discover(w, r, cart)
		return
	}

	result, err := h.validator.ValidateCode(r.Context(), req.Code, cart)
	if err != nil {
		metrics.PromotionValidations.WithLabelValues("rejected").Inc()
		status := http.StatusUnprocessableEntity
		if errors.Is(err, promotion.ErrCodeNotFound) {
			status = http.StatusNotFound
		}
		respondJSON(w, status, validateResponse{Valid: false, Error: err.Error()})
		return
	}

	metrics.PromotionValidations.WithLabelValues("ok").Inc()
	respondJSON(w, http.StatusOK, toResponse(result))
}

func (h *PromotionHandlers) discover(w http.ResponseWriter, r *http.Request, cart promotion.CartContext) {
	results, err := h.validator.Discover(r.Context(), cart)
	if err != nil {
		h.logger.Error("promotion discovery failed", zap.Error(err))
		respondError(w, "promotion discovery failed", http.StatusInternalServerError)
		return
	}
	if len(results) == 0 {
		respondJSON(w, http.StatusOK, validateResponse{Valid: false})
		return
	}
	metrics.PromotionValidations.WithLabelValues("ok").Inc()
	respondJSON(w, http.StatusOK, toResponse(results[0]))
}

func toResponse(result *promotion.Result) validateResponse {
	resp := validateResponse{
		Valid:        true,
		PromotionID:  result.Promotion.ID,
		Name:         result.Promotion.Name,
		FreeShipping: result.FreeShipping,
	}
	if result.Promotion.Type == promotion.TypePercent {
		resp.DiscountPercent = result.Promotion.Percent
	}
	resp.DiscountAmountMinor = result.DiscountMinor
	return resp
}
