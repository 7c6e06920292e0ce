package alerting

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/t77yq/alertcore/internal/apperrors"
	"github.com/t77yq/alertcore/internal/model"
)

// ChannelRegistry owns the configured delivery channels
type ChannelRegistry struct {
	mu       sync.RWMutex
	channels map[string]*model.AlertChannel
	now      func() time.Time
}

// NewChannelRegistry creates an empty channel registry
func NewChannelRegistry(now func() time.Time) *ChannelRegistry {
	if now == nil {
		now = time.Now
	}
	return &ChannelRegistry{
		channels: make(map[string]*model.AlertChannel),
		now:      now,
	}
}

// ValidateChannel checks the required fields of a channel
func ValidateChannel(ch *model.AlertChannel) error {
	if ch == nil {
		return apperrors.Validation("channel is required")
	}
	if strings.TrimSpace(ch.ID) == "" {
		return apperrors.Validation("channel id is required")
	}
	if strings.TrimSpace(ch.Name) == "" {
		return apperrors.Validation("channel name is required")
	}
	if ch.Config == nil {
		return apperrors.Validation("channel %s has no config", ch.ID)
	}
	return nil
}

// Set creates or replaces a channel
func (r *ChannelRegistry) Set(ch *model.AlertChannel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *ch
	stored.UpdatedAt = r.now()
	r.channels[ch.ID] = &stored
}

// Get returns a copy of the channel with the given id
func (r *ChannelRegistry) Get(id string) (*model.AlertChannel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.channels[id]
	if !ok {
		return nil, false
	}
	c := *ch
	return &c, true
}

// Remove deletes a channel and reports whether it existed
func (r *ChannelRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.channels[id]; !ok {
		return false
	}
	delete(r.channels, id)
	return true
}

// List returns all channels sorted by id
func (r *ChannelRegistry) List() []*model.AlertChannel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.AlertChannel, 0, len(r.channels))
	for _, ch := range r.channels {
		c := *ch
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RuleRegistry owns the routing rules
type RuleRegistry struct {
	mu    sync.RWMutex
	rules map[string]*model.AlertRule
	now   func() time.Time
}

// NewRuleRegistry creates an empty rule registry
func NewRuleRegistry(now func() time.Time) *RuleRegistry {
	if now == nil {
		now = time.Now
	}
	return &RuleRegistry{
		rules: make(map[string]*model.AlertRule),
		now:   now,
	}
}

// ValidateRule checks the required fields of a rule
func ValidateRule(rule *model.AlertRule) error {
	if rule == nil {
		return apperrors.Validation("rule is required")
	}
	if strings.TrimSpace(rule.ID) == "" {
		return apperrors.Validation("rule id is required")
	}
	if strings.TrimSpace(rule.Name) == "" {
		return apperrors.Validation("rule name is required")
	}
	if len(rule.Channels) == 0 {
		return apperrors.Validation("rule %s must route to at least one channel", rule.ID)
	}
	for _, s := range rule.Conditions.Severities {
		if !s.Valid() {
			return apperrors.Validation("rule %s has unknown severity %q", rule.ID, s)
		}
	}
	if rule.Conditions.Frequency < 0 || rule.Conditions.TimeWindow < 0 {
		return apperrors.Validation("rule %s has a negative rate limit", rule.ID)
	}
	if rule.Escalation != nil && rule.Escalation.DelayMinutes < 0 {
		return apperrors.Validation("rule %s has a negative escalation delay", rule.ID)
	}
	return nil
}

// Set creates or replaces a rule
func (r *RuleRegistry) Set(rule *model.AlertRule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := cloneRule(rule)
	now := r.now()
	if existing, ok := r.rules[rule.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.rules[rule.ID] = stored
}

// Get returns a copy of the rule with the given id
func (r *RuleRegistry) Get(id string) (*model.AlertRule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[id]
	if !ok {
		return nil, false
	}
	return cloneRule(rule), true
}

// Remove deletes a rule and reports whether it existed
func (r *RuleRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rules[id]; !ok {
		return false
	}
	delete(r.rules, id)
	return true
}

// List returns all rules sorted by id
func (r *RuleRegistry) List() []*model.AlertRule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.AlertRule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, cloneRule(rule))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneRule(rule *model.AlertRule) *model.AlertRule {
	c := *rule
	c.Channels = append([]string(nil), rule.Channels...)
	c.Conditions.Severities = append([]model.AlertSeverity(nil), rule.Conditions.Severities...)
	c.Conditions.Types = append([]string(nil), rule.Conditions.Types...)
	c.Conditions.Components = append([]string(nil), rule.Conditions.Components...)
	if rule.Escalation != nil {
		esc := *rule.Escalation
		esc.Channels = append([]string(nil), rule.Escalation.Channels...)
		c.Escalation = &esc
	}
	return &c
}
