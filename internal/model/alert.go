package model

import "time"

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	AlertSeverityLow      AlertSeverity = "LOW"
	AlertSeverityMedium   AlertSeverity = "MEDIUM"
	AlertSeverityHigh     AlertSeverity = "HIGH"
	AlertSeverityCritical AlertSeverity = "CRITICAL"
)

// Valid reports whether s is one of the known severities
func (s AlertSeverity) Valid() bool {
	switch s {
	case AlertSeverityLow, AlertSeverityMedium, AlertSeverityHigh, AlertSeverityCritical:
		return true
	}
	return false
}

// Rank orders severities from LOW (1) to CRITICAL (4); unknown values rank 0
func (s AlertSeverity) Rank() int {
	switch s {
	case AlertSeverityLow:
		return 1
	case AlertSeverityMedium:
		return 2
	case AlertSeverityHigh:
		return 3
	case AlertSeverityCritical:
		return 4
	}
	return 0
}

// Well-known alert types. Type is free-form, these are the ones raised internally.
const (
	AlertTypeErrorSpike        = "error-spike"
	AlertTypeThresholdExceeded = "threshold-exceeded"
	AlertTypeSystemDegradation = "system-degradation"
	AlertTypeErrorReport       = "error-report"
	AlertTypeTest              = "test"
)

// AlertMetrics carries the measurement that triggered an alert
type AlertMetrics struct {
	CurrentValue  float64  `json:"current_value"`
	PreviousValue *float64 `json:"previous_value,omitempty"`
	Threshold     *float64 `json:"threshold,omitempty"`
}

// Alert represents an event requiring attention
type Alert struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"`
	Severity    AlertSeverity `json:"severity"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Components  []string      `json:"affected_components,omitempty"`
	Metrics     AlertMetrics  `json:"metrics"`
	Actions     []string      `json:"suggested_actions,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`

	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	Resolved       bool       `json:"resolved"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// Handled reports whether someone has already acknowledged or resolved the alert
func (a *Alert) Handled() bool {
	return a.Acknowledged || a.Resolved
}

// Clone returns a deep copy of the alert
func (a *Alert) Clone() *Alert {
	c := *a
	c.Components = append([]string(nil), a.Components...)
	c.Actions = append([]string(nil), a.Actions...)
	if a.Metrics.PreviousValue != nil {
		v := *a.Metrics.PreviousValue
		c.Metrics.PreviousValue = &v
	}
	if a.Metrics.Threshold != nil {
		v := *a.Metrics.Threshold
		c.Metrics.Threshold = &v
	}
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		c.AcknowledgedAt = &t
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

// AlertConditions restricts which alerts a rule applies to.
// Empty sets and a zero Frequency impose no restriction.
type AlertConditions struct {
	Severities []AlertSeverity `json:"severity,omitempty"`
	Types      []string        `json:"alert_types,omitempty"`
	Components []string        `json:"components,omitempty"`
	Frequency  int             `json:"frequency,omitempty"`
	TimeWindow time.Duration   `json:"time_window,omitempty"`
}

// EscalationPolicy re-delivers an unhandled alert to extra channels after a delay
type EscalationPolicy struct {
	Enabled      bool     `json:"enabled"`
	DelayMinutes int      `json:"delay_minutes"`
	Channels     []string `json:"escalation_channels"`
}

// Delay returns the configured delay as a duration
func (p *EscalationPolicy) Delay() time.Duration {
	return time.Duration(p.DelayMinutes) * time.Minute
}

// AlertRule defines a routing policy from alert conditions to channels
type AlertRule struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Enabled     bool              `json:"enabled"`
	Conditions  AlertConditions   `json:"conditions"`
	Channels    []string          `json:"channels"`
	Escalation  *EscalationPolicy `json:"escalation,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// EscalationEnabled reports whether the rule declares an active escalation policy
func (r *AlertRule) EscalationEnabled() bool {
	return r.Escalation != nil && r.Escalation.Enabled && len(r.Escalation.Channels) > 0
}

// DeliveryResult is the outcome of one channel delivery attempt
type DeliveryResult struct {
	ChannelID    string        `json:"channel_id"`
	ChannelName  string        `json:"channel_name"`
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
	DeliveredAt  time.Time     `json:"delivered_at"`
	ResponseTime time.Duration `json:"response_time"`
}

// HistoryAction is a lifecycle action recorded against an alert
type HistoryAction string

const (
	HistoryActionSent         HistoryAction = "SENT"
	HistoryActionAcknowledged HistoryAction = "ACKNOWLEDGED"
	HistoryActionResolved     HistoryAction = "RESOLVED"
	HistoryActionEscalated    HistoryAction = "ESCALATED"
)

// HistoryEntry records one lifecycle action of an alert
type HistoryEntry struct {
	AlertID   string        `json:"alert_id"`
	Action    HistoryAction `json:"action"`
	Timestamp time.Time     `json:"timestamp"`
	ChannelID string        `json:"channel_id,omitempty"`
	ActorID   string        `json:"actor_id,omitempty"`
}
