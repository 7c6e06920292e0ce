package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/t77yq/alertcore/internal/model"
)

// Attachment colors per severity
var severityColors = map[model.AlertSeverity]string{
	model.AlertSeverityLow:      "#36a64f",
	model.AlertSeverityMedium:   "#ff9500",
	model.AlertSeverityHigh:     "#ff0000",
	model.AlertSeverityCritical: "#8b0000",
}

// ChatHandler posts alerts to a chat incoming webhook
type ChatHandler struct {
	logger     *zap.Logger
	httpClient *http.Client
}

// NewChatHandler creates a new chat handler
func NewChatHandler(logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		logger:     logger.Named("chat"),
		httpClient: &http.Client{},
	}
}

// Send posts the alert as a webhook message with one colored attachment
func (h *ChatHandler) Send(ctx context.Context, alert *model.Alert, cfg model.ChatConfig) error {
	if cfg.WebhookURL == "" {
		return fmt.Errorf("chat webhook url is not configured")
	}

	msg := BuildChatMessage(alert, cfg)
	if err := slack.PostWebhookCustomHTTPContext(ctx, cfg.WebhookURL, h.httpClient, msg); err != nil {
		return fmt.Errorf("failed to post chat message: %w", err)
	}

	h.logger.Debug("Chat message posted",
		zap.String("alert_id", alert.ID),
		zap.String("channel", cfg.Channel))
	return nil
}

// BuildChatMessage renders alert as a webhook message
func BuildChatMessage(alert *model.Alert, cfg model.ChatConfig) *slack.WebhookMessage {
	fields := []slack.AttachmentField{
		{Title: "Severity", Value: string(alert.Severity), Short: true},
		{Title: "Type", Value: alert.Type, Short: true},
	}
	if len(alert.Components) > 0 {
		fields = append(fields, slack.AttachmentField{
			Title: "Components",
			Value: strings.Join(alert.Components, ", "),
			Short: false,
		})
	}
	if len(alert.Actions) > 0 {
		fields = append(fields, slack.AttachmentField{
			Title: "Suggested actions",
			Value: "• " + strings.Join(alert.Actions, "\n• "),
			Short: false,
		})
	}

	return &slack.WebhookMessage{
		Channel:   cfg.Channel,
		Username:  cfg.Username,
		IconEmoji: cfg.IconEmoji,
		Text:      fmt.Sprintf("*%s alert*: %s", alert.Severity, alert.Title),
		Attachments: []slack.Attachment{
			{
				Color:    severityColors[alert.Severity],
				Fallback: alert.Title,
				Title:    alert.Title,
				Text:     alert.Description,
				Fields:   fields,
				Footer:   "alertcore",
				Ts:       json.Number(strconv.FormatInt(alert.Timestamp.Unix(), 10)),
			},
		},
	}
}
