package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/alertcore/internal/apperrors"
	"github.com/t77yq/alertcore/internal/model"
)

// IngesterDurable is the durable consumer name used for error reports
const IngesterDurable = "alertcore-ingester"

// ErrorReport is the payload published on error.report
type ErrorReport struct {
	ErrorID          string    `json:"error_id"`
	Component        string    `json:"component"`
	ErrorType        string    `json:"error_type"`
	Level            string    `json:"level"`
	Message          string    `json:"message"`
	TraceID          string    `json:"trace_id,omitempty"`
	Environment      string    `json:"environment,omitempty"`
	Reproducible     bool      `json:"reproducible"`
	SuggestedActions []string  `json:"suggested_actions,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// AlertSender routes an alert
type AlertSender interface {
	SendAlert(ctx context.Context, alert *model.Alert) ([]model.DeliveryResult, error)
}

// ErrorRecorder persists error records so tasks can be opened for them
type ErrorRecorder interface {
	Save(ctx context.Context, rec *model.ErrorRecord) error
}

// Ingester turns error reports from the bus into alerts
type Ingester struct {
	logger   *zap.Logger
	js       nats.JetStreamContext
	sender   AlertSender
	recorder ErrorRecorder
	timeout  time.Duration

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewIngester creates a new ingester. recorder may be nil.
func NewIngester(js nats.JetStreamContext, sender AlertSender, recorder ErrorRecorder, logger *zap.Logger) *Ingester {
	return &Ingester{
		logger:   logger.Named("ingester"),
		js:       js,
		sender:   sender,
		recorder: recorder,
		timeout:  30 * time.Second,
	}
}

// Start subscribes to error reports
func (i *Ingester) Start(ctx context.Context) error {
	if err := ensureStream(i.js, StreamErrors, SubjectErrorReport); err != nil {
		return err
	}

	sub, err := i.js.Subscribe(SubjectErrorReport, i.handleReport,
		nats.Durable(IngesterDurable),
		nats.ManualAck(),
		nats.DeliverAll())
	if err != nil {
		return fmt.Errorf("failed to subscribe to error reports: %w", err)
	}

	i.mu.Lock()
	i.sub = sub
	i.mu.Unlock()

	go func() {
		<-ctx.Done()
		i.Stop()
	}()

	i.logger.Info("Error report ingester started", zap.String("subject", SubjectErrorReport))
	return nil
}

// Stop unsubscribes from error reports
func (i *Ingester) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.sub == nil {
		return
	}
	if err := i.sub.Unsubscribe(); err != nil {
		i.logger.Warn("Failed to unsubscribe", zap.Error(err))
	}
	i.sub = nil
	i.logger.Info("Error report ingester stopped")
}

func (i *Ingester) handleReport(msg *nats.Msg) {
	var report ErrorReport
	if err := json.Unmarshal(msg.Data, &report); err != nil {
		i.logger.Error("Failed to unmarshal error report", zap.Error(err))
		// malformed payloads are never redelivered
		if err := msg.Term(); err != nil {
			i.logger.Warn("Failed to terminate message", zap.Error(err))
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), i.timeout)
	defer cancel()

	if i.recorder != nil && report.ErrorID != "" {
		apperrors.BestEffort(i.logger, "record error report", func() error {
			return i.recorder.Save(ctx, report.Record())
		})
	}

	results, err := i.sender.SendAlert(ctx, report.Alert())
	if err != nil {
		i.logger.Error("Failed to route error report",
			zap.String("error_id", report.ErrorID),
			zap.String("component", report.Component),
			zap.Error(err))
	} else {
		i.logger.Info("Error report ingested",
			zap.String("error_id", report.ErrorID),
			zap.String("component", report.Component),
			zap.Int("deliveries", len(results)))
	}

	if err := msg.Ack(); err != nil {
		i.logger.Warn("Failed to ack error report", zap.Error(err))
	}
}

// Alert converts the report into an alert
func (r ErrorReport) Alert() *model.Alert {
	title := r.Message
	if r.Component != "" {
		title = fmt.Sprintf("%s: %s", r.Component, r.Message)
	}

	var desc strings.Builder
	desc.WriteString(r.Message)
	if r.ErrorType != "" {
		fmt.Fprintf(&desc, "\nError type: %s", r.ErrorType)
	}
	if r.TraceID != "" {
		fmt.Fprintf(&desc, "\nTrace: %s", r.TraceID)
	}

	alert := &model.Alert{
		Type:        model.AlertTypeErrorReport,
		Severity:    SeverityForLevel(r.Level),
		Title:       title,
		Description: desc.String(),
		Actions:     append([]string(nil), r.SuggestedActions...),
		Timestamp:   r.Timestamp,
	}
	if r.Component != "" {
		alert.Components = []string{r.Component}
	}
	return alert
}

// Record converts the report into a stored error record
func (r ErrorReport) Record() *model.ErrorRecord {
	created := r.Timestamp
	if created.IsZero() {
		created = time.Now()
	}
	return &model.ErrorRecord{
		ErrorID:      r.ErrorID,
		Component:    r.Component,
		ErrorType:    r.ErrorType,
		Level:        strings.ToUpper(r.Level),
		Message:      r.Message,
		TraceID:      r.TraceID,
		Environment:  r.Environment,
		Reproducible: r.Reproducible,
		CreatedAt:    created,
	}
}

// SeverityForLevel maps a log level to an alert severity
func SeverityForLevel(level string) model.AlertSeverity {
	switch strings.ToUpper(level) {
	case "FATAL", "CRITICAL":
		return model.AlertSeverityCritical
	case "ERROR":
		return model.AlertSeverityHigh
	case "WARN", "WARNING":
		return model.AlertSeverityMedium
	default:
		return model.AlertSeverityLow
	}
}
