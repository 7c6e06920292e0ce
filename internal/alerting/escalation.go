package alerting

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/t77yq/alertcore/internal/model"
)

// EscalatedTitlePrefix marks the title of an escalated alert copy
const EscalatedTitlePrefix = "[ESCALATED] "

// escalationTarget is what the scheduler needs from the alert manager when a timer fires
type escalationTarget interface {
	// GetAlert returns the live alert record by id
	GetAlert(id string) (*model.Alert, bool)
	// deliverEscalation sends the escalated copy to one channel
	deliverEscalation(ctx context.Context, alert *model.Alert, channelID string)
}

// EscalationScheduler keeps one-shot escalation timers keyed by alert id.
// Timers hold only ids; the alert is read again when the timer fires so that an
// acknowledge or resolve in the meantime suppresses the escalation.
type EscalationScheduler struct {
	logger    *zap.Logger
	target    escalationTarget
	afterFunc AfterFunc

	mu      sync.Mutex
	pending map[string]map[string]Timer // alert id -> rule id -> timer
	stopped bool
}

// NewEscalationScheduler creates a new escalation scheduler
func NewEscalationScheduler(target escalationTarget, afterFunc AfterFunc, logger *zap.Logger) *EscalationScheduler {
	if afterFunc == nil {
		afterFunc = timeAfterFunc
	}
	return &EscalationScheduler{
		logger:    logger.Named("escalation"),
		target:    target,
		afterFunc: afterFunc,
		pending:   make(map[string]map[string]Timer),
	}
}

// Arm schedules escalation of alertID according to rule's escalation policy.
// Re-arming the same alert and rule replaces the previous timer.
func (s *EscalationScheduler) Arm(alertID string, rule *model.AlertRule) {
	if !rule.EscalationEnabled() {
		return
	}

	policy := *rule.Escalation
	policy.Channels = append([]string(nil), rule.Escalation.Channels...)
	ruleID := rule.ID

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	byRule, ok := s.pending[alertID]
	if !ok {
		byRule = make(map[string]Timer)
		s.pending[alertID] = byRule
	}
	if prev, ok := byRule[ruleID]; ok {
		prev.Stop()
	}

	byRule[ruleID] = s.afterFunc(policy.Delay(), func() {
		s.fire(alertID, ruleID, policy)
	})

	s.logger.Debug("Escalation armed",
		zap.String("alert_id", alertID),
		zap.String("rule_id", ruleID),
		zap.Int("delay_minutes", policy.DelayMinutes))
}

// Cancel stops every pending escalation of alertID and returns how many were stopped
func (s *EscalationScheduler) Cancel(alertID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRule := s.pending[alertID]
	for _, t := range byRule {
		t.Stop()
	}
	delete(s.pending, alertID)
	return len(byRule)
}

// Pending returns the number of armed escalations
func (s *EscalationScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, byRule := range s.pending {
		n += len(byRule)
	}
	return n
}

// Stop cancels all pending escalations
func (s *EscalationScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, byRule := range s.pending {
		for _, t := range byRule {
			t.Stop()
		}
		delete(s.pending, id)
	}
}

func (s *EscalationScheduler) fire(alertID, ruleID string, policy model.EscalationPolicy) {
	s.mu.Lock()
	if byRule, ok := s.pending[alertID]; ok {
		delete(byRule, ruleID)
		if len(byRule) == 0 {
			delete(s.pending, alertID)
		}
	}
	stopped := s.stopped
	s.mu.Unlock()

	if stopped {
		return
	}

	alert, ok := s.target.GetAlert(alertID)
	if !ok {
		s.logger.Warn("Escalation target alert not found", zap.String("alert_id", alertID))
		return
	}
	if alert.Handled() {
		s.logger.Debug("Escalation suppressed, alert already handled",
			zap.String("alert_id", alertID),
			zap.Bool("acknowledged", alert.Acknowledged),
			zap.Bool("resolved", alert.Resolved))
		return
	}

	escalated := EscalatedCopy(alert, policy.DelayMinutes)

	s.logger.Warn("Escalating alert",
		zap.String("alert_id", alertID),
		zap.String("rule_id", ruleID),
		zap.Strings("channels", policy.Channels))

	for _, channelID := range policy.Channels {
		s.target.deliverEscalation(context.Background(), escalated, channelID)
	}
}

// EscalatedCopy returns a copy of alert marked as escalated after delayMinutes
func EscalatedCopy(alert *model.Alert, delayMinutes int) *model.Alert {
	c := alert.Clone()
	c.Title = EscalatedTitlePrefix + alert.Title
	c.Description = fmt.Sprintf("%s\n\nEscalated after %d minutes without acknowledgment.", alert.Description, delayMinutes)
	return c
}
