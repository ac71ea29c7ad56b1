package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/candleworks-fulfillment/internal/auth"
	"github.com/example/candleworks-fulfillment/internal/identity"
)

// AuthHandlers serves customer registration and login.
type AuthHandlers struct {
	customers *identity.Service
	tokens    *auth.TokenService
	logger    *zap.Logger
}

func NewAuthHandlers(customers *identity.Service, tokens *auth.TokenService, logger *zap.Logger) *AuthHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandlers{customers: customers, tokens: tokens, logger: logger}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type sessionResponse struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	Customer  *identity.Customer `json:"customer"`
}

// Register creates an account. Past guest orders under the same email are
// linked and credited as part of registration.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid payload", http.StatusBadRequest)
		return
	}

	c, err := h.customers.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrEmailTaken):
			respondError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, auth.ErrPasswordTooShort):
			respondError(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("registration failed", zap.Error(err))
			respondError(w, "registration failed", http.StatusInternalServerError)
		}
		return
	}

	h.respondSession(w, http.StatusCreated, c)
}

// Login authenticates a customer and issues a session token.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid payload", http.StatusBadRequest)
		return
	}

	c, err := h.customers.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			respondError(w, err.Error(), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		respondError(w, "login failed", http.StatusInternalServerError)
		return
	}

	h.respondSession(w, http.StatusOK, c)
}

func (h *AuthHandlers) respondSession(w http.ResponseWriter, status int, c *identity.Customer) {
	token, expiresAt, err := h.tokens.Generate(c.ID, c.Email, c.Role)
	if err != nil {
		h.logger.Error("token generation failed", zap.Error(err))
		respondError(w, "session creation failed", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "session_token",
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, status, sessionResponse{Token: token, ExpiresAt: expiresAt, Customer: c})
}
