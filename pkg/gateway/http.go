package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pulsecrm/pulse-crm-backend/pkg/jwt"
)

// HTTPGateway calls a real vendor send API with bearer-token auth.
type HTTPGateway struct {
	baseURL    string
	tokens     *jwt.TokenService
	httpClient *http.Client
}

var _ Gateway = (*HTTPGateway)(nil)

// NewHTTPGateway creates a gateway for the vendor at baseURL, signing
// requests with tokens issued from the shared vendor secret.
func NewHTTPGateway(baseURL, secret string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		tokens:  jwt.NewTokenService(secret, 24*time.Hour),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Send posts one message to the vendor.
func (g *HTTPGateway) Send(ctx context.Context, messageID, recipient, body string) (*SendResult, error) {
	token, err := g.tokens.Issue(jwt.Claims{Subject: "delivery-worker", Role: "service"})
	if err != nil {
		return nil, fmt.Errorf("failed to issue gateway token: %w", err)
	}

	requestBody := map[string]string{
		"messageId": messageID,
		"recipient": recipient,
		"message":   body,
	}
	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/messages", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(payload))
	}

	var result SendResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}
