package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/alertcore/internal/apperrors"
	"github.com/t77yq/alertcore/internal/model"
)

func TestLinearBackoff(t *testing.T) {
	s := &LinearBackoff{Delay: 5 * time.Second}

	assert.Equal(t, 5*time.Second, s.NextRetry(0))
	assert.Equal(t, 5*time.Second, s.NextRetry(1))
	assert.Equal(t, 10*time.Second, s.NextRetry(2))
	assert.Equal(t, 15*time.Second, s.NextRetry(3))
}

func TestExponentialBackoff(t *testing.T) {
	s := &ExponentialBackoff{InitialDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Second, s.NextRetry(1))
	assert.Equal(t, 2*time.Second, s.NextRetry(2))
	assert.Equal(t, 4*time.Second, s.NextRetry(3))
	assert.Equal(t, 5*time.Second, s.NextRetry(4))
}

func newTestNotifier(t *testing.T, d Deliverer) (*Notifier, *fakeTimers, *recordingPublisher) {
	t.Helper()

	timers := &fakeTimers{}
	publisher := &recordingPublisher{}
	n := NewNotifier(d, &LinearBackoff{Delay: time.Second}, 3, zaptest.NewLogger(t))
	n.afterFunc = timers.AfterFunc
	n.SetPublisher(publisher)
	t.Cleanup(n.Stop)
	return n, timers, publisher
}

func TestNotifier_DeadLetterAfterThreeAttempts(t *testing.T) {
	deliverer := newRecordingDeliverer()
	deliverer.fail("email")
	n, timers, publisher := newTestNotifier(t, deliverer)

	alert := &model.Alert{ID: "a-1", Title: "disk full", Severity: model.AlertSeverityHigh}
	result := n.Send(context.Background(), alert, &model.AlertChannel{ID: "email", Name: "Email"})
	require.False(t, result.Success)
	assert.Equal(t, "connection refused", result.Error)

	// Attempt 2 after delay x1
	pending := timers.active()
	require.Len(t, pending, 1)
	assert.Equal(t, time.Second, pending[0].delay)
	assert.Equal(t, 1, n.Pending())
	timers.fireAll()

	// Attempt 3 after delay x2
	pending = timers.active()
	require.Len(t, pending, 1)
	assert.Equal(t, 2*time.Second, pending[0].delay)
	timers.fireAll()

	assert.Empty(t, timers.active())
	assert.Equal(t, 0, n.Pending())
	assert.Len(t, deliverer.to("email"), 3)

	letters := publisher.on(SubjectDeadLetter)
	require.Len(t, letters, 1)
	failure, ok := letters[0].(NotificationFailure)
	require.True(t, ok)
	assert.Equal(t, "a-1", failure.AlertID)
	assert.Equal(t, "email", failure.ChannelID)
	assert.Equal(t, 3, failure.Attempts)
}

func TestNotifier_RecoversOnRetry(t *testing.T) {
	deliverer := newRecordingDeliverer()
	deliverer.fail("webhook")
	n, timers, publisher := newTestNotifier(t, deliverer)

	alert := &model.Alert{ID: "a-2", Title: "latency", Severity: model.AlertSeverityMedium}
	result := n.Send(context.Background(), alert, &model.AlertChannel{ID: "webhook", Name: "Webhook"})
	require.False(t, result.Success)

	deliverer.heal("webhook")
	timers.fireAll()

	assert.Len(t, deliverer.to("webhook"), 2)
	assert.Empty(t, timers.active())
	assert.Empty(t, publisher.on(SubjectDeadLetter))
}

func TestNotifier_StopCancelsRetries(t *testing.T) {
	deliverer := newRecordingDeliverer()
	deliverer.fail("chat")
	n, timers, _ := newTestNotifier(t, deliverer)

	n.Send(context.Background(), &model.Alert{ID: "a-3", Title: "x"}, &model.AlertChannel{ID: "chat"})
	require.Equal(t, 1, n.Pending())

	n.Stop()
	assert.Equal(t, 0, n.Pending())
	assert.Empty(t, timers.active())
}

func TestAlertManager_Notify(t *testing.T) {
	f := newFixture(t, Config{})
	f.deliverer.fail(ChannelConsole)

	alert := &model.Alert{Title: "direct", Severity: model.AlertSeverityLow}
	result, err := f.manager.Notify(context.Background(), alert, ChannelConsole)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, f.manager.PendingRetries())

	f.timers.fireAll()
	f.timers.fireAll()
	assert.Len(t, f.publisher.on(SubjectDeadLetter), 1)
	assert.Equal(t, []bool{false, false, false}, f.metrics.outcomes(ChannelConsole))

	_, err = f.manager.Notify(context.Background(), &model.Alert{Title: "x", Severity: model.AlertSeverityLow}, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNotifier_ObservesEveryAttempt(t *testing.T) {
	// Setup
	deliverer := newRecordingDeliverer()
	deliverer.fail("webhook")
	n, timers, _ := newTestNotifier(t, deliverer)
	metrics := newRecordingMetrics()
	n.SetMetrics(metrics)

	alert := &model.Alert{ID: "a-4", Title: "queue depth", Severity: model.AlertSeverityHigh}
	n.Send(context.Background(), alert, &model.AlertChannel{ID: "webhook", Name: "Webhook"})
	assert.Equal(t, []bool{false}, metrics.outcomes("webhook"))

	// Test case 1: failed retry is observed
	timers.fireAll()
	assert.Equal(t, []bool{false, false}, metrics.outcomes("webhook"))

	// Test case 2: successful retry is observed
	deliverer.heal("webhook")
	timers.fireAll()
	assert.Equal(t, []bool{false, false, true}, metrics.outcomes("webhook"))
	assert.Len(t, deliverer.to("webhook"), 3)
}

func TestNotifier_ResendReplacesPendingRetry(t *testing.T) {
	// Setup
	deliverer := newRecordingDeliverer()
	deliverer.fail("email")
	n, timers, _ := newTestNotifier(t, deliverer)

	alert := &model.Alert{ID: "a-5", Title: "disk full", Severity: model.AlertSeverityHigh}
	channel := &model.AlertChannel{ID: "email", Name: "Email"}

	// Test case 1: second send stops the first retry timer
	n.Send(context.Background(), alert, channel)
	n.Send(context.Background(), alert, channel)
	assert.Len(t, timers.active(), 1)
	assert.Equal(t, 1, n.Pending())

	// Test case 2: firing the surviving timer keeps the chain tracked
	require.Equal(t, 1, timers.fireAll())
	assert.Len(t, timers.active(), 1)
	assert.Equal(t, 1, n.Pending())
	assert.Len(t, deliverer.to("email"), 3)

	// Test case 3: stop leaves nothing armed
	n.Stop()
	assert.Empty(t, timers.active())
	assert.Equal(t, 0, n.Pending())
}
