package presence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"harmony/internal/core/domain"
	"harmony/pkg/circuitbreaker"
	"harmony/pkg/retry"

	"go.uber.org/zap"
)

// HTTPClient reports presence changes to a remote service. Presence is
// best-effort telemetry: it retries briefly and trips a breaker when the
// service keeps failing, and callers log rather than surface its errors.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.Breaker
	retry   retry.Config
	logger  *zap.Logger
}

func NewHTTPClient(baseURL string, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		retry:   retry.Config{MaxAttempts: 2, InitialDelay: 200 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2.0, Jitter: true},
		logger:  logger,
	}
}

func (c *HTTPClient) Join(ctx context.Context, roomID string, identity domain.UserID) error {
	return c.post(ctx, http.MethodPost, fmt.Sprintf("/rooms/%s/members", roomID), map[string]interface{}{
		"identity": string(identity),
	})
}

func (c *HTTPClient) Leave(ctx context.Context, roomID string, identity domain.UserID) error {
	return c.post(ctx, http.MethodDelete, fmt.Sprintf("/rooms/%s/members/%s", roomID, identity), nil)
}

func (c *HTTPClient) UpdateDeafenState(ctx context.Context, roomID string, identity domain.UserID, deafened bool) error {
	return c.post(ctx, http.MethodPut, fmt.Sprintf("/rooms/%s/members/%s", roomID, identity), map[string]interface{}{
		"deafened": deafened,
	})
}

func (c *HTTPClient) post(ctx context.Context, method, path string, payload interface{}) error {
	return c.breaker.Execute(func() error {
		return retry.Do(ctx, c.retry, func() error {
			return c.send(ctx, method, path, payload)
		})
	})
}

func (c *HTTPClient) send(ctx context.Context, method, path string, payload interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode presence payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build presence request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("presence request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("presence request: status %d", resp.StatusCode)
	}
	return nil
}
