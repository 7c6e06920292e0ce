package handler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/t77yq/alertcore/internal/model"
)

// ErrNoAlertStore is returned by the database channel when no store is wired
var ErrNoAlertStore = errors.New("no alert store configured")

// AlertStore persists delivered alerts
type AlertStore interface {
	Store(ctx context.Context, alert *model.Alert) error
}

// DatabaseHandler records alerts in the alert log
type DatabaseHandler struct {
	logger *zap.Logger
	store  AlertStore
}

// NewDatabaseHandler creates a new database handler
func NewDatabaseHandler(store AlertStore, logger *zap.Logger) *DatabaseHandler {
	return &DatabaseHandler{
		logger: logger.Named("database"),
		store:  store,
	}
}

// Send stores the alert
func (h *DatabaseHandler) Send(ctx context.Context, alert *model.Alert, _ model.DatabaseConfig) error {
	if h.store == nil {
		return ErrNoAlertStore
	}
	if err := h.store.Store(ctx, alert); err != nil {
		return fmt.Errorf("failed to store alert: %w", err)
	}

	h.logger.Debug("Alert stored", zap.String("alert_id", alert.ID))
	return nil
}
