package alerting

import (
	"net/http"
	"time"

	"github.com/t77yq/alertcore/internal/model"
)

// Default channel ids
const (
	ChannelConsole  = "console"
	ChannelDatabase = "database"
	ChannelWebhook  = "webhook"
	ChannelEmail    = "email"
	ChannelChat     = "chat"
)

// DefaultChannels returns the channels registered at startup. Only the local
// console and database channels are enabled; the rest need configuration first.
func DefaultChannels() []*model.AlertChannel {
	return []*model.AlertChannel{
		{
			ID:      ChannelConsole,
			Name:    "Console",
			Enabled: true,
			Config:  model.ConsoleConfig{Level: "warn"},
		},
		{
			ID:      ChannelDatabase,
			Name:    "Database",
			Enabled: true,
			Config:  model.DatabaseConfig{},
		},
		{
			ID:     ChannelWebhook,
			Name:   "Webhook",
			Config: model.WebhookConfig{Method: http.MethodPost, Timeout: defaultDeliveryTimeout},
		},
		{
			ID:     ChannelEmail,
			Name:   "Email",
			Config: model.EmailConfig{SubjectPrefix: "[ALERT]"},
		},
		{
			ID:     ChannelChat,
			Name:   "Chat",
			Config: model.ChatConfig{Username: "alertcore", IconEmoji: ":rotating_light:"},
		},
	}
}

// DefaultRules returns the routing rules registered at startup
func DefaultRules() []*model.AlertRule {
	return []*model.AlertRule{
		{
			ID:          "critical-alerts",
			Name:        "Critical Alerts",
			Description: "Route critical alerts to every operator channel and escalate by email",
			Enabled:     true,
			Conditions: model.AlertConditions{
				Severities: []model.AlertSeverity{model.AlertSeverityCritical},
			},
			Channels: []string{ChannelConsole, ChannelDatabase, ChannelChat},
			Escalation: &model.EscalationPolicy{
				Enabled:      true,
				DelayMinutes: 15,
				Channels:     []string{ChannelEmail},
			},
		},
		{
			ID:          "high-severity",
			Name:        "High Severity",
			Description: "Record high severity alerts",
			Enabled:     true,
			Conditions: model.AlertConditions{
				Severities: []model.AlertSeverity{model.AlertSeverityHigh},
				Frequency:  10,
				TimeWindow: 60 * time.Minute,
			},
			Channels: []string{ChannelConsole, ChannelDatabase},
		},
		{
			ID:          "error-spikes",
			Name:        "Error Spikes",
			Description: "Forward error rate spikes to the webhook",
			Enabled:     true,
			Conditions: model.AlertConditions{
				Types: []string{model.AlertTypeErrorSpike},
			},
			Channels: []string{ChannelConsole, ChannelDatabase, ChannelWebhook},
		},
	}
}
