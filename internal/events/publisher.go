// Package events connects the alerting core to the NATS JetStream event bus.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Stream names and subjects owned by alertcore
const (
	StreamAlerts       = "ALERTS"
	StreamErrors       = "ERRORS"
	SubjectAlerts      = "alert.*"
	SubjectErrorReport = "error.report"

	defaultMaxAge = 7 * 24 * time.Hour
)

// Publisher publishes alert lifecycle events to JetStream
type Publisher struct {
	logger *zap.Logger
	js     nats.JetStreamContext
}

// NewPublisher creates a new event publisher
func NewPublisher(js nats.JetStreamContext, logger *zap.Logger) *Publisher {
	return &Publisher{
		logger: logger.Named("events"),
		js:     js,
	}
}

// EnsureStreams creates the ALERTS and ERRORS streams when they do not exist
func (p *Publisher) EnsureStreams() error {
	if err := ensureStream(p.js, StreamAlerts, SubjectAlerts); err != nil {
		return err
	}
	if err := ensureStream(p.js, StreamErrors, SubjectErrorReport); err != nil {
		return err
	}
	p.logger.Info("Event streams ready",
		zap.Strings("streams", []string{StreamAlerts, StreamErrors}))
	return nil
}

func ensureStream(js nats.JetStreamContext, name string, subjects ...string) error {
	stream, err := js.StreamInfo(name)
	if err != nil && !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to get stream info for %s: %w", name, err)
	}
	if stream != nil {
		return nil
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: subjects,
		Storage:  nats.FileStorage,
		MaxAge:   defaultMaxAge,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", name, err)
	}
	return nil
}

// Publish encodes payload as JSON and publishes it on subject
func (p *Publisher) Publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	var opts []nats.PubOpt
	if _, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Context(ctx))
	}

	ack, err := p.js.Publish(subject, data, opts...)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}

	p.logger.Debug("Event published",
		zap.String("subject", subject),
		zap.String("stream", ack.Stream),
		zap.Uint64("sequence", ack.Sequence))
	return nil
}
