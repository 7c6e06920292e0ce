package alerting

import (
	"context"
	"time"

	"github.com/t77yq/alertcore/internal/model"
)

// Event subjects published by the alerting core
const (
	SubjectSent         = "alert.sent"
	SubjectEscalated    = "alert.escalated"
	SubjectAcknowledged = "alert.acknowledged"
	SubjectResolved     = "alert.resolved"
	SubjectDeadLetter   = "alert.deadletter"
)

const defaultDeliveryTimeout = 10 * time.Second

// Deliverer sends an alert through a channel's transport
type Deliverer interface {
	Deliver(ctx context.Context, alert *model.Alert, channel *model.AlertChannel) error
}

// EventPublisher publishes alert lifecycle events
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// MetricsRecorder observes deliveries and escalations
type MetricsRecorder interface {
	ObserveDelivery(channelID string, success bool, elapsed time.Duration)
	IncEscalation(channelID string)
}

// Timer is a pending deferred call
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run after d
type AfterFunc func(d time.Duration, f func()) Timer

func timeAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) error { return nil }

type nopMetrics struct{}

func (nopMetrics) ObserveDelivery(string, bool, time.Duration) {}
func (nopMetrics) IncEscalation(string)                        {}
