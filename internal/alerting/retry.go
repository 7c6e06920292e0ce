package alerting

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/alertcore/internal/apperrors"
	"github.com/t77yq/alertcore/internal/model"
)

// RetryStrategy defines the interface for retry strategies
type RetryStrategy interface {
	// NextRetry returns the delay before retry number attempt (1-based)
	NextRetry(attempt int) time.Duration
}

// LinearBackoff waits Delay multiplied by the retry number
type LinearBackoff struct {
	Delay time.Duration
}

// NextRetry calculates the next retry delay using linear backoff
func (s *LinearBackoff) NextRetry(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return s.Delay * time.Duration(attempt)
}

// ExponentialBackoff implements exponential backoff retry strategy
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// NextRetry calculates the next retry delay using exponential backoff
func (s *ExponentialBackoff) NextRetry(attempt int) time.Duration {
	delay := float64(s.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= s.Multiplier
	}

	if s.MaxDelay > 0 && delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(delay)
}

// NotificationFailure is published when a notification exhausts its attempts
type NotificationFailure struct {
	AlertID   string    `json:"alert_id"`
	ChannelID string    `json:"channel_id"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error"`
	FailedAt  time.Time `json:"failed_at"`
}

// Notifier delivers one alert to one channel outside of rule routing.
// The first attempt is synchronous; failures are retried in the background
// and dead-lettered once maxAttempts is reached.
type Notifier struct {
	logger      *zap.Logger
	deliverer   Deliverer
	strategy    RetryStrategy
	maxAttempts int
	timeout     time.Duration
	publisher   EventPublisher
	metrics     MetricsRecorder
	afterFunc   AfterFunc
	now         func() time.Time

	mu      sync.Mutex
	pending map[string]Timer
	stopped bool
}

// NewNotifier creates a new notifier
func NewNotifier(deliverer Deliverer, strategy RetryStrategy, maxAttempts int, logger *zap.Logger) *Notifier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Notifier{
		logger:      logger.Named("notifier"),
		deliverer:   deliverer,
		strategy:    strategy,
		maxAttempts: maxAttempts,
		timeout:     defaultDeliveryTimeout,
		publisher:   nopPublisher{},
		metrics:     nopMetrics{},
		afterFunc:   timeAfterFunc,
		now:         time.Now,
		pending:     make(map[string]Timer),
	}
}

// SetPublisher sets where dead letters are published
func (n *Notifier) SetPublisher(p EventPublisher) {
	if p != nil {
		n.publisher = p
	}
}

// SetMetrics sets the recorder observing every delivery attempt
func (n *Notifier) SetMetrics(r MetricsRecorder) {
	if r != nil {
		n.metrics = r
	}
}

// Send makes the first delivery attempt and returns its result.
// A failed attempt schedules the remaining retries.
func (n *Notifier) Send(ctx context.Context, alert *model.Alert, channel *model.AlertChannel) model.DeliveryResult {
	result := n.attempt(ctx, alert, channel)
	if !result.Success {
		n.scheduleRetry(alert, channel, 1, result.Error)
	}
	return result
}

// Pending returns the number of scheduled retries
func (n *Notifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

// Stop cancels all scheduled retries
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.stopped = true
	for key, t := range n.pending {
		t.Stop()
		delete(n.pending, key)
	}
}

func (n *Notifier) attempt(ctx context.Context, alert *model.Alert, channel *model.AlertChannel) model.DeliveryResult {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	start := n.now()
	err := n.deliverer.Deliver(ctx, alert, channel)
	result := model.DeliveryResult{
		ChannelID:    channel.ID,
		ChannelName:  channel.Name,
		Success:      err == nil,
		DeliveredAt:  n.now(),
		ResponseTime: n.now().Sub(start),
	}
	if err != nil {
		result.Error = err.Error()
	}
	n.metrics.ObserveDelivery(channel.ID, result.Success, result.ResponseTime)
	return result
}

// scheduleRetry arms the retry following attempt number done
func (n *Notifier) scheduleRetry(alert *model.Alert, channel *model.AlertChannel, done int, lastErr string) {
	key := alert.ID + "/" + channel.ID

	if done >= n.maxAttempts {
		n.deadLetter(alert, channel, done, lastErr)
		return
	}

	delay := n.strategy.NextRetry(done)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		return
	}

	// a newer send for the same alert and channel supersedes the older retry chain
	if prev, ok := n.pending[key]; ok {
		prev.Stop()
	}
	var timer Timer
	timer = n.afterFunc(delay, func() {
		n.mu.Lock()
		current := n.pending[key] == timer
		if current {
			delete(n.pending, key)
		}
		stopped := n.stopped
		n.mu.Unlock()
		if stopped || !current {
			return
		}

		result := n.attempt(context.Background(), alert, channel)
		if result.Success {
			n.logger.Info("Notification delivered after retry",
				zap.String("alert_id", alert.ID),
				zap.String("channel_id", channel.ID),
				zap.Int("attempt", done+1))
			return
		}
		n.scheduleRetry(alert, channel, done+1, result.Error)
	})
	n.pending[key] = timer

	n.logger.Info("Notification scheduled for retry",
		zap.String("alert_id", alert.ID),
		zap.String("channel_id", channel.ID),
		zap.Int("attempt", done+1),
		zap.Duration("delay", delay))
}

func (n *Notifier) deadLetter(alert *model.Alert, channel *model.AlertChannel, attempts int, lastErr string) {
	failure := NotificationFailure{
		AlertID:   alert.ID,
		ChannelID: channel.ID,
		Attempts:  attempts,
		Error:     lastErr,
		FailedAt:  n.now(),
	}

	n.logger.Error("Notification failed",
		zap.String("alert_id", alert.ID),
		zap.String("channel_id", channel.ID),
		zap.Int("attempts", attempts),
		zap.String("error", lastErr))

	apperrors.BestEffort(n.logger, "publish dead letter", func() error {
		return n.publisher.Publish(context.Background(), SubjectDeadLetter, failure)
	})
}
