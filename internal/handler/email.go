package handler

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/t77yq/alertcore/internal/model"
)

// SMTPConfig holds the mail server settings shared by every email channel
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// sendMailFunc matches smtp.SendMail
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailHandler mails alerts to the channel's recipients
type EmailHandler struct {
	logger   *zap.Logger
	config   SMTPConfig
	sendMail sendMailFunc
}

// NewEmailHandler creates a new email handler
func NewEmailHandler(config SMTPConfig, logger *zap.Logger) *EmailHandler {
	return &EmailHandler{
		logger:   logger.Named("email"),
		config:   config,
		sendMail: smtp.SendMail,
	}
}

// Send mails the alert. smtp.SendMail has no context, so the call runs in the
// background and is abandoned when ctx ends.
func (h *EmailHandler) Send(ctx context.Context, alert *model.Alert, cfg model.EmailConfig) error {
	if h.config.Host == "" {
		return fmt.Errorf("smtp host is not configured")
	}
	if len(cfg.Recipients) == 0 {
		return fmt.Errorf("email channel has no recipients")
	}

	var auth smtp.Auth
	if h.config.Username != "" {
		auth = smtp.PlainAuth("", h.config.Username, h.config.Password, h.config.Host)
	}

	addr := fmt.Sprintf("%s:%d", h.config.Host, h.config.Port)
	msg := h.formatMessage(alert, cfg)

	h.logger.Info("Sending email",
		zap.String("alert_id", alert.ID),
		zap.Int("recipients", len(cfg.Recipients)))

	done := make(chan error, 1)
	go func() {
		done <- h.sendMail(addr, auth, h.config.From, cfg.Recipients, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to send email: %w", ctx.Err())
	}
}

// Subject returns the mail subject of alert
func Subject(alert *model.Alert, prefix string) string {
	subject := fmt.Sprintf("%s: %s", alert.Severity, alert.Title)
	if prefix != "" {
		subject = prefix + " " + subject
	}
	return subject
}

func (h *EmailHandler) formatMessage(alert *model.Alert, cfg model.EmailConfig) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", h.config.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(cfg.Recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", Subject(alert, cfg.SubjectPrefix))
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "Severity: %s\r\n", alert.Severity)
	fmt.Fprintf(&b, "Type: %s\r\n", alert.Type)
	fmt.Fprintf(&b, "Time: %s\r\n", alert.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
	if len(alert.Components) > 0 {
		fmt.Fprintf(&b, "Components: %s\r\n", strings.Join(alert.Components, ", "))
	}
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(alert.Description, "\n", "\r\n"))
	b.WriteString("\r\n")

	if len(alert.Actions) > 0 {
		b.WriteString("\r\nSuggested actions:\r\n")
		for _, a := range alert.Actions {
			fmt.Fprintf(&b, "- %s\r\n", a)
		}
	}
	return []byte(b.String())
}
