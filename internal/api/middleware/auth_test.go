package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/candleworks-fulfillment/internal/auth"
)

func newTestTokenService() *auth.TokenService {
	return auth.NewTokenService("test-secret-key", 15*time.Minute)
}

func TestAuth_ValidToken_Header(t *testing.T) {
	tokens := newTestTokenService()
	mw := Auth(tokens)

	token, _, err := tokens.Generate("user-123", "test@example.com", "customer")
	require.NoError(t, err)

	var capturedClaims *auth.Claims
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(UserContextKey).(*auth.Claims)
		if ok {
			capturedClaims = claims
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, capturedClaims)
	assert.Equal(t, "user-123", capturedClaims.UserID)
	assert.Equal(t, "test@example.com", capturedClaims.Email)
	assert.Equal(t, "customer", capturedClaims.Role)
}

func TestAuth_ValidToken_Cookie(t *testing.T) {
	tokens := newTestTokenService()
	mw := Auth(tokens)

	token, _, err := tokens.Generate("user-456", "cookie@example.com", "admin")
	require.NoError(t, err)

	var capturedClaims *auth.Claims
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(UserContextKey).(*auth.Claims)
		if ok {
			capturedClaims = claims
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: token})
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, capturedClaims)
	assert.Equal(t, "user-456", capturedClaims.UserID)
}

func TestAuth_NoToken(t *testing.T) {
	mw := Auth(newTestTokenService())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthorized")
}

func TestAuth_InvalidToken(t *testing.T) {
	mw := Auth(newTestTokenService())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
}

func TestAuth_ExpiredToken(t *testing.T) {
	tokens := auth.NewTokenService("test-secret", 1*time.Millisecond)
	mw := Auth(tokens)

	token, _, err := tokens.Generate("user-123", "test@example.com", "customer")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_WrongSignature(t *testing.T) {
	tokens1 := auth.NewTokenService("secret-1", 15*time.Minute)
	tokens2 := auth.NewTokenService("secret-2", 15*time.Minute)

	token, _, err := tokens1.Generate("user-123", "test@example.com", "customer")
	require.NoError(t, err)

	mw := Auth(tokens2)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_CookieTakesPrecedence(t *testing.T) {
	tokens := newTestTokenService()
	mw := Auth(tokens)

	cookieToken, _, _ := tokens.Generate("cookie-user", "cookie@example.com", "customer")
	headerToken, _, _ := tokens.Generate("header-user", "header@example.com", "admin")

	var capturedClaims *auth.Claims
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(UserContextKey).(*auth.Claims)
		if ok {
			capturedClaims = claims
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: cookieToken})
	req.Header.Set("Authorization", "Bearer "+headerToken)
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, capturedClaims)
	assert.Equal(t, "cookie-user", capturedClaims.UserID)
}

// ============================================
// Optional Auth Middleware Tests
// ============================================

func TestOptionalAuth_ValidToken(t *testing.T) {
	tokens := newTestTokenService()
	mw := OptionalAuth(tokens)

	token, _, _ := tokens.Generate("user-123", "test@example.com", "customer")

	var capturedClaims *auth.Claims
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(UserContextKey).(*auth.Claims)
		if ok {
			capturedClaims = claims
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/optional", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, capturedClaims)
	assert.Equal(t, "user-123", capturedClaims.UserID)
}

func TestOptionalAuth_NoToken(t *testing.T) {
	mw := OptionalAuth(newTestTokenService())

	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		_, ok := r.Context().Value(UserContextKey).(*auth.Claims)
		assert.False(t, ok)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/optional", nil)
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, handlerCalled)
}

func TestOptionalAuth_InvalidToken(t *testing.T) {
	mw := OptionalAuth(newTestTokenService())

	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		_, ok := r.Context().Value(UserContextKey).(*auth.Claims)
		assert.False(t, ok)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/optional", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, handlerCalled)
}

// ============================================
// Require Role Middleware Tests
// ============================================

func TestRequireRole_HasRole(t *testing.T) {
	mw := RequireRole("admin", "support")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	claims := &auth.Claims{
		UserID: "user-123",
		Email:  "admin@example.com",
		Role:   "admin",
	}
	ctx := context.WithValue(context.Background(), UserContextKey, claims)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole_HasAlternateRole(t *testing.T) {
	mw := RequireRole("admin", "support")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	claims := &auth.Claims{
		UserID: "user-123",
		Role:   "support",
	}
	ctx := context.WithValue(context.Background(), UserContextKey, claims)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole_NoRole(t *testing.T) {
	mw := RequireRole("admin")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	claims := &auth.Claims{
		UserID: "user-123",
		Role:   "customer",
	}
	ctx := context.WithValue(context.Background(), UserContextKey, claims)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "forbidden")
}

func TestRequireRole_NoClaims(t *testing.T) {
	mw := RequireRole("admin")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ============================================
// Helper Functions Tests
// ============================================

func TestGetUserFromContext_WithClaims(t *testing.T) {
	claims := &auth.Claims{
		UserID: "user-123",
		Email:  "test@example.com",
		Role:   "customer",
	}
	ctx := context.WithValue(context.Background(), UserContextKey, claims)

	result, ok := GetUserFromContext(ctx)

	assert.True(t, ok)
	assert.Equal(t, claims, result)
}

func TestGetUserFromContext_NoClaims(t *testing.T) {
	result, ok := GetUserFromContext(context.Background())

	assert.False(t, ok)
	assert.Nil(t, result)
}

func TestGetUserID_WithClaims(t *testing.T) {
	claims := &auth.Claims{UserID: "user-123"}
	ctx := context.WithValue(context.Background(), UserContextKey, claims)

	assert.Equal(t, "user-123", GetUserID(ctx))
}

func TestGetUserID_NoClaims(t *testing.T) {
	assert.Empty(t, GetUserID(context.Background()))
}
