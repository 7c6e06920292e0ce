package handler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/t77yq/alertcore/internal/apperrors"
	"github.com/t77yq/alertcore/internal/model"
)

// Router delivers alerts through the handler matching each channel's config variant
type Router struct {
	logger   *zap.Logger
	console  *ConsoleHandler
	database *DatabaseHandler
	webhook  *WebhookHandler
	email    *EmailHandler
	chat     *ChatHandler
}

// RouterConfig holds the transports behind each channel type
type RouterConfig struct {
	AlertStore AlertStore
	SMTP       SMTPConfig
}

// NewRouter creates a new router with one handler per channel type
func NewRouter(cfg RouterConfig, logger *zap.Logger) *Router {
	return &Router{
		logger:   logger.Named("router"),
		console:  NewConsoleHandler(logger),
		database: NewDatabaseHandler(cfg.AlertStore, logger),
		webhook:  NewWebhookHandler(logger),
		email:    NewEmailHandler(cfg.SMTP, logger),
		chat:     NewChatHandler(logger),
	}
}

// Deliver sends alert through channel. Every failure is wrapped as a delivery error
// carrying the channel id.
func (r *Router) Deliver(ctx context.Context, alert *model.Alert, channel *model.AlertChannel) error {
	var err error
	switch cfg := channel.Config.(type) {
	case model.ConsoleConfig:
		err = r.console.Send(ctx, alert, cfg)
	case model.DatabaseConfig:
		err = r.database.Send(ctx, alert, cfg)
	case model.WebhookConfig:
		err = r.webhook.Send(ctx, alert, cfg)
	case model.EmailConfig:
		err = r.email.Send(ctx, alert, cfg)
	case model.ChatConfig:
		err = r.chat.Send(ctx, alert, cfg)
	default:
		err = fmt.Errorf("unsupported channel config %T", cfg)
	}

	if err != nil {
		return apperrors.Delivery(channel.ID, err)
	}

	r.logger.Debug("Alert delivered",
		zap.String("alert_id", alert.ID),
		zap.String("channel_id", channel.ID),
		zap.String("channel_type", string(channel.Type())))
	return nil
}
