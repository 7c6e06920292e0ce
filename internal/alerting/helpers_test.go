package alerting

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/t77yq/alertcore/internal/model"
)

// recordingDeliverer records every delivery and fails channels listed in failures
type recordingDeliverer struct {
	mu         sync.Mutex
	deliveries []delivery
	failures   map[string]error
}

type delivery struct {
	channelID string
	alert     *model.Alert
}

func newRecordingDeliverer() *recordingDeliverer {
	return &recordingDeliverer{failures: make(map[string]error)}
}

func (d *recordingDeliverer) Deliver(_ context.Context, alert *model.Alert, ch *model.AlertChannel) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.deliveries = append(d.deliveries, delivery{channelID: ch.ID, alert: alert.Clone()})
	return d.failures[ch.ID]
}

func (d *recordingDeliverer) fail(channelID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[channelID] = errors.New("connection refused")
}

func (d *recordingDeliverer) heal(channelID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.failures, channelID)
}

func (d *recordingDeliverer) to(channelID string) []*model.Alert {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []*model.Alert
	for _, del := range d.deliveries {
		if del.channelID == channelID {
			out = append(out, del.alert)
		}
	}
	return out
}

func (d *recordingDeliverer) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.deliveries)
}

// recordingPublisher keeps published events in memory
type recordingPublisher struct {
	mu     sync.Mutex
	events []event
}

type event struct {
	subject string
	payload any
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event{subject: subject, payload: payload})
	return nil
}

func (p *recordingPublisher) on(subject string) []any {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []any
	for _, e := range p.events {
		if e.subject == subject {
			out = append(out, e.payload)
		}
	}
	return out
}

// fakeTimers captures deferred calls so tests decide when they run
type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (ft *fakeTimers) AfterFunc(d time.Duration, f func()) Timer {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	t := &fakeTimer{delay: d, f: f}
	ft.timers = append(ft.timers, t)
	return t
}

// active returns timers that are neither stopped nor fired
func (ft *fakeTimers) active() []*fakeTimer {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	var out []*fakeTimer
	for _, t := range ft.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fireAll runs every active timer once; timers armed while firing are left for the next call
func (ft *fakeTimers) fireAll() int {
	due := ft.active()
	for _, t := range due {
		t.fired = true
		t.f()
	}
	return len(due)
}

// manualClock is a settable time source
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func consoleChannel(id string) *model.AlertChannel {
	return &model.AlertChannel{ID: id, Name: id, Enabled: true, Config: model.ConsoleConfig{}}
}

func criticalAlert(title string) *model.Alert {
	return &model.Alert{
		Type:       model.AlertTypeErrorSpike,
		Severity:   model.AlertSeverityCritical,
		Title:      title,
		Components: []string{"ORDER_SERVICE"},
	}
}

// recordingMetrics counts delivery observations per channel
type recordingMetrics struct {
	mu          sync.Mutex
	deliveries  map[string][]bool
	escalations map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		deliveries:  make(map[string][]bool),
		escalations: make(map[string]int),
	}
}

func (m *recordingMetrics) ObserveDelivery(channelID string, success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries[channelID] = append(m.deliveries[channelID], success)
}

func (m *recordingMetrics) IncEscalation(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.escalations[channelID]++
}

func (m *recordingMetrics) outcomes(channelID string) []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bool(nil), m.deliveries[channelID]...)
}
