package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Gateway is an HTTP client for the SMS/WhatsApp provider API.
type Gateway struct {
	baseURL    string
	apiKey     string
	channel    string
	httpClient *http.Client
}

// NewGateway creates a gateway client. channel is "sms" or "whatsapp".
func NewGateway(baseURL, apiKey, channel string, timeout time.Duration) *Gateway {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		channel: channel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type gatewayRequest struct {
	To       string `json:"to"`
	Body     string `json:"body"`
	MediaURL string `json:"media_url,omitempty"`
	Channel  string `json:"channel"`
}

type gatewayResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Send delivers one message through POST /v1/messages. Provider rejections
// (4xx) are plain errors; auth failures and 5xx wrap ErrUnavailable.
func (g *Gateway) Send(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(gatewayRequest{
		To:       msg.Contact,
		Body:     msg.Body,
		MediaURL: msg.ImageURL,
		Channel:  g.channel,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/messages", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 400 {
		return nil
	}

	var gwResp gatewayResponse
	detail := fmt.Sprintf("HTTP %d", resp.StatusCode)
	if err := json.NewDecoder(resp.Body).Decode(&gwResp); err == nil && gwResp.Error != "" {
		detail = gwResp.Error
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnavailable, detail)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", ErrUnavailable, detail)
	default:
		return fmt.Errorf("gateway rejected message: %s", detail)
	}
}
