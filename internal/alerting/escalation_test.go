package alerting

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/alertcore/internal/model"
)

type stubTarget struct {
	mu        sync.Mutex
	alerts    map[string]*model.Alert
	delivered []string
}

func (s *stubTarget) GetAlert(id string) (*model.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

func (s *stubTarget) deliverEscalation(_ context.Context, alert *model.Alert, channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, channelID+":"+alert.Title)
}

func escalatingRule(id string, channels ...string) *model.AlertRule {
	return &model.AlertRule{
		ID: id,
		Escalation: &model.EscalationPolicy{
			Enabled:      true,
			DelayMinutes: 10,
			Channels:     channels,
		},
	}
}

func TestEscalationScheduler_ReArmReplacesTimer(t *testing.T) {
	target := &stubTarget{alerts: map[string]*model.Alert{"a": {ID: "a", Title: "t"}}}
	timers := &fakeTimers{}
	s := NewEscalationScheduler(target, timers.AfterFunc, zaptest.NewLogger(t))

	s.Arm("a", escalatingRule("r", "email"))
	s.Arm("a", escalatingRule("r", "email"))
	s.Arm("a", escalatingRule("other", "pager"))

	assert.Equal(t, 2, s.Pending())
	require.Len(t, timers.active(), 2)

	timers.fireAll()
	assert.ElementsMatch(t, []string{"email:[ESCALATED] t", "pager:[ESCALATED] t"}, target.delivered)
	assert.Equal(t, 0, s.Pending())
}

func TestEscalationScheduler_Cancel(t *testing.T) {
	target := &stubTarget{alerts: map[string]*model.Alert{"a": {ID: "a", Title: "t"}}}
	timers := &fakeTimers{}
	s := NewEscalationScheduler(target, timers.AfterFunc, zaptest.NewLogger(t))

	s.Arm("a", escalatingRule("r1", "email"))
	s.Arm("a", escalatingRule("r2", "email"))
	assert.Equal(t, 2, s.Cancel("a"))
	assert.Equal(t, 0, s.Cancel("a"))

	assert.Equal(t, 0, timers.fireAll())
	assert.Empty(t, target.delivered)
}

func TestEscalationScheduler_IgnoresRuleWithoutPolicy(t *testing.T) {
	timers := &fakeTimers{}
	s := NewEscalationScheduler(&stubTarget{}, timers.AfterFunc, zaptest.NewLogger(t))

	s.Arm("a", &model.AlertRule{ID: "r"})
	s.Arm("a", &model.AlertRule{ID: "r", Escalation: &model.EscalationPolicy{Enabled: false, Channels: []string{"x"}}})
	assert.Equal(t, 0, s.Pending())
}

func TestEscalationScheduler_MissingAlert(t *testing.T) {
	target := &stubTarget{alerts: map[string]*model.Alert{}}
	timers := &fakeTimers{}
	s := NewEscalationScheduler(target, timers.AfterFunc, zaptest.NewLogger(t))

	s.Arm("gone", escalatingRule("r", "email"))
	timers.fireAll()
	assert.Empty(t, target.delivered)
}

func TestEscalatedCopy(t *testing.T) {
	orig := &model.Alert{ID: "a", Title: "CPU high", Description: "95%", Components: []string{"api"}}

	c := EscalatedCopy(orig, 15)
	assert.Equal(t, "[ESCALATED] CPU high", c.Title)
	assert.Equal(t, "95%\n\nEscalated after 15 minutes without acknowledgment.", c.Description)
	assert.Equal(t, "a", c.ID)

	// original untouched
	assert.Equal(t, "CPU high", orig.Title)
	c.Components[0] = "changed"
	assert.Equal(t, "api", orig.Components[0])
}
