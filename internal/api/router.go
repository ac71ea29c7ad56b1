package api

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/candleworks-fulfillment/internal/api/middleware"
	"github.com/example/candleworks-fulfillment/internal/auth"
	"github.com/example/candleworks-fulfillment/internal/ratelimit"
)

// RouterConfig wires the handler groups and cross-cutting middleware.
type RouterConfig struct {
	Webhooks      *WebhookHandlers
	Promotions    *PromotionHandlers
	Auth          *AuthHandlers
	Account       *AccountHandlers
	Admin         *AdminHandlers
	Tokens        *auth.TokenService
	WebhookSecret string
	RateLimiter   ratelimit.Limiter
	Logger        *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	signed := middleware.VerifySignature(cfg.WebhookSecret)
	authed := middleware.Auth(cfg.Tokens)
	optional := middleware.OptionalAuth(cfg.Tokens)
	admin := func(h http.Handler) http.Handler {
		return authed(middleware.RequireRole("admin")(h))
	}
	limited := middleware.RateLimit(cfg.RateLimiter, cfg.Logger)

	// Webhooks: signature-verified before anything else runs.
	mux.Handle("/webhooks/payment", signed(methodHandler(http.MethodPost, cfg.Webhooks.HandlePaymentEvent)))
	mux.Handle("/webhooks/shipping", signed(methodHandler(http.MethodPost, cfg.Webhooks.HandleShippingEvent)))

	// Promotion validation: optionally authenticated, rate limited per
	// client identity.
	mux.Handle("/promotions/validate",
		optional(limited(methodHandler(http.MethodPost, cfg.Promotions.Validate))))

	// Customer auth
	mux.Handle("/auth/register", methodHandler(http.MethodPost, cfg.Auth.Register))
	mux.Handle("/auth/login", methodHandler(http.MethodPost, cfg.Auth.Login))

	// Customer account
	mux.Handle("/account/points", authed(methodHandler(http.MethodGet, cfg.Account.GetPoints)))
	mux.Handle("/account/orders", authed(methodHandler(http.MethodGet, cfg.Account.GetOrders)))

	// Admin break-glass tools
	mux.Handle("/admin/stock", admin(methodHandler(http.MethodPut, cfg.Admin.SetStock)))
	mux.Handle("/admin/stock/adjust", admin(methodHandler(http.MethodPost, cfg.Admin.AdjustStock)))
	mux.Handle("/admin/points/adjust", admin(methodHandler(http.MethodPost, cfg.Admin.AdjustPoints)))
	mux.Handle("/admin/orders/", admin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/shipping") && r.Method == http.MethodPut:
			cfg.Admin.UpdateShipping(w, r)
		case strings.HasSuffix(path, "/repair") && r.Method == http.MethodPost:
			cfg.Admin.RepairOrder(w, r)
		case r.Method == http.MethodGet:
			cfg.Admin.GetOrder(w, r)
		case r.Method == http.MethodDelete:
			cfg.Admin.DeleteOrder(w, r)
		default:
			respondError(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	// Operational endpoints
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return withLogging(mux, cfg.Logger)
}

func methodHandler(method string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			respondError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	})
}

func withLogging(next http.Handler, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}
