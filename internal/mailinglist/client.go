package mailinglist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client subscribes customer emails to the marketing list over the provider's
// REST API. Subscription is always best-effort for callers.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	logger   *zap.Logger
}

func NewClient(endpoint, apiKey string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

type subscribeRequest struct {
	Email  string `json:"email"`
	Source string `json:"source"`
}

// Subscribe adds the email to the list. An already-subscribed address is not
// an error.
func (c *Client) Subscribe(ctx context.Context, email string) error {
	payload, err := json.Marshal(subscribeRequest{Email: email, Source: "checkout"})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 409 means the address is already on the list.
	if resp.StatusCode >= 200 && resp.StatusCode < 300 || resp.StatusCode == http.StatusConflict {
		c.logger.Debug("mailing list subscription accepted", zap.String("email", email))
		return nil
	}
	return fmt.Errorf("mailing list: unexpected status %d", resp.StatusCode)
}
