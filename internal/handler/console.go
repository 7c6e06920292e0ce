package handler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/t77yq/alertcore/internal/model"
)

// ConsoleHandler writes alerts to the process log
type ConsoleHandler struct {
	logger *zap.Logger
}

// NewConsoleHandler creates a new console handler
func NewConsoleHandler(logger *zap.Logger) *ConsoleHandler {
	return &ConsoleHandler{logger: logger.Named("console")}
}

// Send logs the alert at the configured level, or at a level derived from its severity
func (h *ConsoleHandler) Send(_ context.Context, alert *model.Alert, cfg model.ConsoleConfig) error {
	level := severityLevel(alert.Severity)
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("invalid console level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	h.logger.Log(level, alert.Title,
		zap.String("alert_id", alert.ID),
		zap.String("type", alert.Type),
		zap.String("severity", string(alert.Severity)),
		zap.String("description", alert.Description),
		zap.Strings("components", alert.Components),
		zap.Float64("current_value", alert.Metrics.CurrentValue),
		zap.Strings("suggested_actions", alert.Actions),
		zap.Time("timestamp", alert.Timestamp))
	return nil
}

func severityLevel(s model.AlertSeverity) zapcore.Level {
	switch s {
	case model.AlertSeverityCritical:
		return zapcore.ErrorLevel
	case model.AlertSeverityHigh, model.AlertSeverityMedium:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
