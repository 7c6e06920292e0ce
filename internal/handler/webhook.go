package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/alertcore/internal/model"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookPayload is the JSON body posted to webhook channels
type WebhookPayload struct {
	Alert     *model.Alert `json:"alert"`
	Source    string       `json:"source"`
	Timestamp time.Time    `json:"timestamp"`
}

// WebhookHandler posts alerts as JSON to an HTTP endpoint
type WebhookHandler struct {
	logger     *zap.Logger
	httpClient *http.Client
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		logger:     logger.Named("webhook"),
		httpClient: &http.Client{},
	}
}

// Send performs the HTTP request. Any status of 400 or above is a failure.
func (h *WebhookHandler) Send(ctx context.Context, alert *model.Alert, cfg model.WebhookConfig) error {
	if cfg.URL == "" {
		return fmt.Errorf("webhook url is not configured")
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(WebhookPayload{
		Alert:     alert,
		Source:    "alertcore",
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	// Create request
	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}

	h.logger.Debug("Executing webhook request",
		zap.String("method", method),
		zap.String("url", cfg.URL),
		zap.String("alert_id", alert.ID))

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
