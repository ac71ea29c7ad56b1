package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test_secret"

func signedRequest(t *testing.T, body string, header string) *httptest.ResponseRecorder {
	t.Helper()
	mw := VerifySignature(testSecret)

	var handlerBody []byte
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		handlerBody, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	if header != "" {
		req.Header.Set(SignatureHeader, header)
	}
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, req)

	if rec.Code == http.StatusOK {
		// The middleware consumed the body for verification; the handler must
		// still see it.
		assert.Equal(t, body, string(handlerBody))
	}
	return rec
}

func TestVerifySignature_Valid(t *testing.T) {
	body := `{"session_id":"cs_001"}`
	header := Sign(testSecret, time.Now(), []byte(body))

	rec := signedRequest(t, body, header)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifySignature_MissingHeader(t *testing.T) {
	rec := signedRequest(t, `{}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	body := `{"session_id":"cs_001"}`
	header := Sign("whsec_other_secret", time.Now(), []byte(body))

	rec := signedRequest(t, body, header)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	header := Sign(testSecret, time.Now(), []byte(`{"session_id":"cs_001"}`))

	rec := signedRequest(t, `{"session_id":"cs_002"}`, header)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifySignature_StaleTimestamp(t *testing.T) {
	body := `{"session_id":"cs_001"}`
	header := Sign(testSecret, time.Now().Add(-6*time.Minute), []byte(body))

	rec := signedRequest(t, body, header)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "tolerance")
}

func TestVerifySignature_FutureTimestamp(t *testing.T) {
	body := `{"session_id":"cs_001"}`
	header := Sign(testSecret, time.Now().Add(6*time.Minute), []byte(body))

	rec := signedRequest(t, body, header)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifySignature_SlightClockSkewAllowed(t *testing.T) {
	body := `{"session_id":"cs_001"}`
	header := Sign(testSecret, time.Now().Add(2*time.Minute), []byte(body))

	rec := signedRequest(t, body, header)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifySignature_MalformedHeaders(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"garbage", "not-a-signature"},
		{"missing v1", "t=1700000000"},
		{"missing t", "v1=deadbeef"},
		{"bad timestamp", "t=abc,v1=deadbeef"},
		{"bad hex", "t=1700000000,v1=zzzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := signedRequest(t, `{}`, tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestVerifySignature_BodyPreservedForHandler(t *testing.T) {
	// Exercised through signedRequest's assertion; this case uses a larger
	// payload to cover the buffered reader path.
	body := `{"session_id":"cs_001","line_items":[` + strings.Repeat(`{"price_id":"p","quantity":1,"unit_amount":100},`, 99) + `{"price_id":"p","quantity":1,"unit_amount":100}]}`
	header := Sign(testSecret, time.Now(), []byte(body))

	rec := signedRequest(t, body, header)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, bytes.Contains(rec.Body.Bytes(), []byte("error")))
}
