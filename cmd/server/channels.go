package main

import (
	"net/http"

	"github.com/t77yq/alertcore/internal/alerting"
	"github.com/t77yq/alertcore/internal/config"
	"github.com/t77yq/alertcore/internal/model"
)

// configureChannels applies transport settings from the config file to the default
// webhook, email and chat channels. Channels stay disabled unless the config enables them.
func configureChannels(m *alerting.AlertManager, cfg config.ChannelsConfig) error {
	channels := []*model.AlertChannel{
		{
			ID:      alerting.ChannelWebhook,
			Name:    "Webhook",
			Enabled: cfg.Webhook.Enabled,
			Config: model.WebhookConfig{
				URL:     cfg.Webhook.URL,
				Method:  http.MethodPost,
				Headers: cfg.Webhook.Headers,
			},
		},
		{
			ID:      alerting.ChannelEmail,
			Name:    "Email",
			Enabled: cfg.Email.Enabled,
			Config: model.EmailConfig{
				Recipients:    cfg.Email.Recipients,
				SubjectPrefix: "[ALERT]",
			},
		},
		{
			ID:      alerting.ChannelChat,
			Name:    "Chat",
			Enabled: cfg.Chat.Enabled,
			Config: model.ChatConfig{
				WebhookURL: cfg.Chat.WebhookURL,
				Channel:    cfg.Chat.Channel,
				Username:   cfg.Chat.Username,
				IconEmoji:  ":rotating_light:",
			},
		},
	}

	for _, ch := range channels {
		if err := m.SetChannel(ch); err != nil {
			return err
		}
	}
	return nil
}
