package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"harmony/internal/core/domain"
)

// HTTPClient requests access tokens from a remote issuing service. Token
// failures propagate to the caller unchanged; there is no retry here since
// a failed join is never retried automatically.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type tokenRequest struct {
	RoomID   string `json:"roomId"`
	Identity string `json:"identity"`
	Name     string `json:"name"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (c *HTTPClient) Request(ctx context.Context, roomID string, identity domain.UserID, displayName string) (string, error) {
	body, err := json.Marshal(tokenRequest{
		RoomID:   roomID,
		Identity: string(identity),
		Name:     displayName,
	})
	if err != nil {
		return "", fmt.Errorf("encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTokenRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrTokenRequest, resp.StatusCode, msg)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrTokenRequest, err)
	}
	if tr.Token == "" {
		return "", fmt.Errorf("%w: empty token in response", domain.ErrTokenRequest)
	}
	return tr.Token, nil
}
