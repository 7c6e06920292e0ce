package model

import (
	"strings"
	"time"
)

// ChannelType represents the kind of delivery target
type ChannelType string

const (
	ChannelTypeConsole  ChannelType = "console"
	ChannelTypeDatabase ChannelType = "database"
	ChannelTypeWebhook  ChannelType = "webhook"
	ChannelTypeEmail    ChannelType = "email"
	ChannelTypeChat     ChannelType = "chat"
)

// ChannelConfig is the type-specific configuration of a channel.
// The set of implementations is closed; each one names its ChannelType.
type ChannelConfig interface {
	ChannelType() ChannelType
	isChannelConfig()
}

// ConsoleConfig writes alerts to the process log
type ConsoleConfig struct {
	Level string `json:"level,omitempty"`
}

// DatabaseConfig persists alerts to the alert log
type DatabaseConfig struct{}

// WebhookConfig posts alerts as JSON to an HTTP endpoint
type WebhookConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Timeout time.Duration     `json:"timeout,omitempty"`
}

// EmailConfig mails alerts to a recipient list
type EmailConfig struct {
	Recipients    []string `json:"recipients"`
	SubjectPrefix string   `json:"subject_prefix,omitempty"`
}

// ChatConfig posts alerts to a chat incoming webhook
type ChatConfig struct {
	WebhookURL string `json:"webhook_url"`
	Channel    string `json:"channel,omitempty"`
	Username   string `json:"username,omitempty"`
	IconEmoji  string `json:"icon_emoji,omitempty"`
}

func (ConsoleConfig) ChannelType() ChannelType  { return ChannelTypeConsole }
func (DatabaseConfig) ChannelType() ChannelType { return ChannelTypeDatabase }
func (WebhookConfig) ChannelType() ChannelType  { return ChannelTypeWebhook }
func (EmailConfig) ChannelType() ChannelType    { return ChannelTypeEmail }
func (ChatConfig) ChannelType() ChannelType     { return ChannelTypeChat }

func (ConsoleConfig) isChannelConfig()  {}
func (DatabaseConfig) isChannelConfig() {}
func (WebhookConfig) isChannelConfig()  {}
func (EmailConfig) isChannelConfig()    {}
func (ChatConfig) isChannelConfig()     {}

// AlertFilters further restricts which alerts a channel accepts
type AlertFilters struct {
	Severities []AlertSeverity `json:"severity,omitempty"`
	Types      []string        `json:"alert_types,omitempty"`
	Components []string        `json:"components,omitempty"`
}

// AlertChannel is a configured delivery target
type AlertChannel struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Enabled   bool          `json:"enabled"`
	Config    ChannelConfig `json:"config"`
	Filters   *AlertFilters `json:"filters,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Type returns the channel type derived from its configuration
func (c *AlertChannel) Type() ChannelType {
	if c.Config == nil {
		return ""
	}
	return c.Config.ChannelType()
}

// ParseChannelType converts a string into a ChannelType
func ParseChannelType(s string) (ChannelType, bool) {
	switch t := ChannelType(strings.ToLower(strings.TrimSpace(s))); t {
	case ChannelTypeConsole, ChannelTypeDatabase, ChannelTypeWebhook, ChannelTypeEmail, ChannelTypeChat:
		return t, true
	}
	return "", false
}
