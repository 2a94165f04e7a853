// Package whatsapp sends text replies through the WhatsApp Cloud API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultAPIBase = "https://graph.facebook.com/v19.0"
	sendTimeout    = 15 * time.Second
)

// ErrNotConfigured means the token or phone number id is unset; sends become
// logged no-ops.
var ErrNotConfigured = errors.New("missing WHATSAPP_TOKEN or WHATSAPP_PHONE_NUMBER_ID")

// Delivery reports the outcome of one send attempt. The webhook handler only
// logs failures, but tests and future callers can observe them here.
type Delivery struct {
	Sent       bool
	StatusCode int
	Err        error
}

type Client struct {
	httpc         *http.Client
	apiBase       string
	token         string
	phoneNumberID string
}

func New(token, phoneNumberID string) *Client {
	return &Client{
		httpc:         &http.Client{Timeout: sendTimeout},
		apiBase:       defaultAPIBase,
		token:         token,
		phoneNumberID: phoneNumberID,
	}
}

type textPayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Send posts a plain-text message to the given conversation. Fire and forget:
// failures land in the Delivery, are never retried, and never reach the user.
func (c *Client) Send(ctx context.Context, to, text string) Delivery {
	if c.token == "" || c.phoneNumberID == "" {
		slog.ErrorContext(ctx, "WhatsApp credentials not configured, dropping reply", "to", to)
		return Delivery{Err: ErrNotConfigured}
	}

	payload := textPayload{MessagingProduct: "whatsapp", To: to, Type: "text"}
	payload.Text.Body = text
	body, err := json.Marshal(payload)
	if err != nil {
		return Delivery{Err: fmt.Errorf("marshal payload: %w", err)}
	}

	url := fmt.Sprintf("%s/%s/messages", c.apiBase, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Delivery{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Delivery{Err: fmt.Errorf("post message: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Delivery{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("messaging API status %d: %s", resp.StatusCode, string(respBody)),
		}
	}
	return Delivery{Sent: true, StatusCode: resp.StatusCode}
}
