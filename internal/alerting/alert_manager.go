package alerting

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/alertcore/internal/apperrors"
	"github.com/t77yq/alertcore/internal/model"
)

// Defaults applied when Config leaves a field zero
const (
	DefaultChannelRateLimit  = 10
	DefaultChannelRateWindow = 5 * time.Minute
	DefaultRetryAttempts     = 3
	DefaultRetryDelay        = 5 * time.Second
)

// Config tunes the alert manager
type Config struct {
	ChannelRateLimit  int
	ChannelRateWindow time.Duration
	HistoryLimit      int
	DeliveryTimeout   time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration

	// SkipDefaults leaves the channel and rule registries empty
	SkipDefaults bool
}

// Option customizes an AlertManager
type Option func(*AlertManager)

// WithPublisher sets the lifecycle event publisher
func WithPublisher(p EventPublisher) Option {
	return func(m *AlertManager) { m.publisher = p }
}

// WithMetrics sets the delivery metrics recorder
func WithMetrics(r MetricsRecorder) Option {
	return func(m *AlertManager) { m.metrics = r }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(m *AlertManager) { m.now = now }
}

// WithAfterFunc overrides how escalation timers are scheduled
func WithAfterFunc(f AfterFunc) Option {
	return func(m *AlertManager) { m.afterFunc = f }
}

// AlertManager routes alerts through rules to channels and tracks their lifecycle
type AlertManager struct {
	logger    *zap.Logger
	config    Config
	deliverer Deliverer
	publisher EventPublisher
	metrics   MetricsRecorder
	now       func() time.Time
	afterFunc AfterFunc

	channels    *ChannelRegistry
	rules       *RuleRegistry
	ruleLimiter *RateLimiter
	chanLimiter *RateLimiter
	history     *HistoryLedger
	escalations *EscalationScheduler
	notifier    *Notifier

	mu     sync.RWMutex
	alerts map[string]*model.Alert
}

// NewAlertManager creates a new alert manager
func NewAlertManager(cfg Config, deliverer Deliverer, logger *zap.Logger, opts ...Option) *AlertManager {
	if cfg.ChannelRateLimit <= 0 {
		cfg.ChannelRateLimit = DefaultChannelRateLimit
	}
	if cfg.ChannelRateWindow <= 0 {
		cfg.ChannelRateWindow = DefaultChannelRateWindow
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = defaultDeliveryTimeout
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	m := &AlertManager{
		logger:    logger.Named("alert-manager"),
		config:    cfg,
		deliverer: deliverer,
		publisher: nopPublisher{},
		metrics:   nopMetrics{},
		now:       time.Now,
		afterFunc: timeAfterFunc,
		alerts:    make(map[string]*model.Alert),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.channels = NewChannelRegistry(m.now)
	m.rules = NewRuleRegistry(m.now)
	m.ruleLimiter = NewRateLimiter(m.now)
	m.chanLimiter = NewRateLimiter(m.now)
	m.history = NewHistoryLedger(cfg.HistoryLimit, m.now)
	m.escalations = NewEscalationScheduler(m, m.afterFunc, logger)

	m.notifier = NewNotifier(deliverer, &LinearBackoff{Delay: cfg.RetryDelay}, cfg.RetryAttempts, logger)
	m.notifier.timeout = cfg.DeliveryTimeout
	m.notifier.afterFunc = m.afterFunc
	m.notifier.now = m.now
	m.notifier.SetPublisher(m.publisher)
	m.notifier.SetMetrics(m.metrics)

	if !cfg.SkipDefaults {
		for _, ch := range DefaultChannels() {
			m.channels.Set(ch)
		}
		for _, rule := range DefaultRules() {
			m.rules.Set(rule)
		}
	}

	return m
}

// Stop cancels pending escalations and retries
func (m *AlertManager) Stop() {
	m.escalations.Stop()
	m.notifier.Stop()
	m.logger.Info("Alert manager stopped")
}

// SendAlert stores the alert and routes it. Partial delivery failure is reported
// in the results, never as an error; only invalid input returns an error.
func (m *AlertManager) SendAlert(ctx context.Context, alert *model.Alert) ([]model.DeliveryResult, error) {
	if err := m.prepare(alert); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.alerts[alert.ID] = alert.Clone()
	m.mu.Unlock()

	return m.route(ctx, alert.Clone()), nil
}

func (m *AlertManager) prepare(alert *model.Alert) error {
	if alert == nil {
		return apperrors.Validation("alert is required")
	}
	if strings.TrimSpace(alert.Title) == "" {
		return apperrors.Validation("alert title is required")
	}
	if !alert.Severity.Valid() {
		return apperrors.Validation("unknown alert severity %q", alert.Severity)
	}
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = m.now()
	}
	return nil
}

// route resolves matching rules, deduplicates their channels and fans out delivery
func (m *AlertManager) route(ctx context.Context, alert *model.Alert) []model.DeliveryResult {
	matched := m.matchRules(alert)
	if len(matched) == 0 {
		m.logger.Info("No rules matched alert",
			zap.String("alert_id", alert.ID),
			zap.String("type", alert.Type),
			zap.String("severity", string(alert.Severity)))
		return []model.DeliveryResult{}
	}

	targets := m.eligibleChannels(alert, matched)

	results := make([]model.DeliveryResult, len(targets))
	var wg sync.WaitGroup
	for i, ch := range targets {
		wg.Add(1)
		go func(i int, ch *model.AlertChannel) {
			defer wg.Done()
			results[i] = m.deliver(ctx, alert, ch)
			if results[i].Success {
				m.history.Record(alert.ID, model.HistoryActionSent, ch.ID, "")
			}
		}(i, ch)
	}
	wg.Wait()

	for _, rule := range matched {
		if rule.EscalationEnabled() {
			m.escalations.Arm(alert.ID, rule)
		}
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}

	m.logger.Info("Alert routed",
		zap.String("alert_id", alert.ID),
		zap.String("severity", string(alert.Severity)),
		zap.Int("rules", len(matched)),
		zap.Int("channels", len(results)),
		zap.Int("succeeded", succeeded))

	apperrors.BestEffort(m.logger, "publish alert sent", func() error {
		return m.publisher.Publish(ctx, SubjectSent, struct {
			Alert   *model.Alert           `json:"alert"`
			Results []model.DeliveryResult `json:"results"`
		}{alert, results})
	})

	return results
}

// matchRules returns enabled rules matching the alert whose own rate limit allows firing
func (m *AlertManager) matchRules(alert *model.Alert) []*model.AlertRule {
	var matched []*model.AlertRule
	for _, rule := range m.rules.List() {
		if !rule.Enabled || !MatchesConditions(rule.Conditions, alert) {
			continue
		}
		cond := rule.Conditions
		if cond.Frequency > 0 && cond.TimeWindow > 0 && !m.ruleLimiter.Allow(rule.ID, cond.Frequency, cond.TimeWindow) {
			m.logger.Info("Rule rate limited",
				zap.String("rule_id", rule.ID),
				zap.String("alert_id", alert.ID))
			continue
		}
		matched = append(matched, rule)
	}
	return matched
}

// eligibleChannels unions the rules' channels and drops disabled, rate limited or filtered ones
func (m *AlertManager) eligibleChannels(alert *model.Alert, rules []*model.AlertRule) []*model.AlertChannel {
	seen := make(map[string]bool)
	var out []*model.AlertChannel

	for _, rule := range rules {
		for _, id := range rule.Channels {
			if seen[id] {
				continue
			}
			seen[id] = true

			ch, ok := m.channels.Get(id)
			if !ok {
				m.logger.Warn("Rule references unknown channel",
					zap.String("rule_id", rule.ID),
					zap.String("channel_id", id))
				continue
			}
			if !ch.Enabled {
				continue
			}
			if !m.chanLimiter.Allow(ch.ID, m.config.ChannelRateLimit, m.config.ChannelRateWindow) {
				m.logger.Warn("Channel rate limit exceeded",
					zap.String("channel_id", ch.ID),
					zap.String("alert_id", alert.ID))
				continue
			}
			if !MatchesFilters(ch.Filters, alert) {
				m.logger.Debug("Alert filtered out by channel",
					zap.String("channel_id", ch.ID),
					zap.String("alert_id", alert.ID))
				continue
			}
			out = append(out, ch)
		}
	}
	return out
}

// deliver makes one timed delivery attempt
func (m *AlertManager) deliver(ctx context.Context, alert *model.Alert, ch *model.AlertChannel) model.DeliveryResult {
	ctx, cancel := context.WithTimeout(ctx, m.config.DeliveryTimeout)
	defer cancel()

	start := time.Now()
	err := m.deliverer.Deliver(ctx, alert, ch)
	elapsed := time.Since(start)

	m.metrics.ObserveDelivery(ch.ID, err == nil, elapsed)

	result := model.DeliveryResult{
		ChannelID:    ch.ID,
		ChannelName:  ch.Name,
		Success:      err == nil,
		DeliveredAt:  m.now(),
		ResponseTime: elapsed,
	}
	if err != nil {
		result.Error = err.Error()
		m.logger.Error("Failed to deliver alert",
			zap.String("alert_id", alert.ID),
			zap.String("channel_id", ch.ID),
			zap.String("channel_type", string(ch.Type())),
			zap.Error(err))
	}
	return result
}

// deliverEscalation is called by the escalation scheduler for each escalation channel
func (m *AlertManager) deliverEscalation(ctx context.Context, alert *model.Alert, channelID string) {
	ch, ok := m.channels.Get(channelID)
	if !ok || !ch.Enabled {
		m.logger.Debug("Skipping escalation channel",
			zap.String("alert_id", alert.ID),
			zap.String("channel_id", channelID),
			zap.Bool("found", ok))
		return
	}

	result := m.deliver(ctx, alert, ch)
	if !result.Success {
		return
	}

	m.history.Record(alert.ID, model.HistoryActionEscalated, ch.ID, "")
	m.metrics.IncEscalation(ch.ID)

	apperrors.BestEffort(m.logger, "publish alert escalated", func() error {
		return m.publisher.Publish(ctx, SubjectEscalated, struct {
			Alert  *model.Alert         `json:"alert"`
			Result model.DeliveryResult `json:"result"`
		}{alert, result})
	})
}

// GetAlert returns a copy of the live alert record
func (m *AlertManager) GetAlert(id string) (*model.Alert, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	alert, ok := m.alerts[id]
	if !ok {
		return nil, false
	}
	return alert.Clone(), true
}

// ListActiveAlerts returns alerts that are not resolved, oldest first
func (m *AlertManager) ListActiveAlerts() []*model.Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Alert
	for _, a := range m.alerts {
		if !a.Resolved {
			out = append(out, a.Clone())
		}
	}
	sortAlerts(out)
	return out
}

// AcknowledgeAlert marks the alert acknowledged by actor
func (m *AlertManager) AcknowledgeAlert(ctx context.Context, id, actor string) (*model.Alert, error) {
	return m.mark(ctx, id, actor, model.HistoryActionAcknowledged)
}

// ResolveAlert marks the alert resolved by actor and drops its pending escalations
func (m *AlertManager) ResolveAlert(ctx context.Context, id, actor string) (*model.Alert, error) {
	alert, err := m.mark(ctx, id, actor, model.HistoryActionResolved)
	if err != nil {
		return nil, err
	}
	m.escalations.Cancel(id)
	return alert, nil
}

func (m *AlertManager) mark(ctx context.Context, id, actor string, action model.HistoryAction) (*model.Alert, error) {
	now := m.now()

	m.mu.Lock()
	alert, ok := m.alerts[id]
	if !ok {
		m.mu.Unlock()
		return nil, apperrors.NotFound("alert", id)
	}
	subject := SubjectAcknowledged
	switch action {
	case model.HistoryActionAcknowledged:
		alert.Acknowledged = true
		alert.AcknowledgedBy = actor
		alert.AcknowledgedAt = &now
	case model.HistoryActionResolved:
		alert.Resolved = true
		alert.ResolvedBy = actor
		alert.ResolvedAt = &now
		subject = SubjectResolved
	}
	snapshot := alert.Clone()
	m.mu.Unlock()

	m.history.Record(id, action, "", actor)

	m.logger.Info("Alert updated",
		zap.String("alert_id", id),
		zap.String("action", string(action)),
		zap.String("actor", actor))

	apperrors.BestEffort(m.logger, "publish alert "+strings.ToLower(string(action)), func() error {
		return m.publisher.Publish(ctx, subject, snapshot)
	})

	return snapshot, nil
}

// SetChannel validates and upserts a channel
func (m *AlertManager) SetChannel(ch *model.AlertChannel) error {
	if err := ValidateChannel(ch); err != nil {
		return err
	}
	m.channels.Set(ch)
	m.logger.Info("Channel configured",
		zap.String("channel_id", ch.ID),
		zap.String("type", string(ch.Type())),
		zap.Bool("enabled", ch.Enabled))
	return nil
}

// RemoveChannel deletes a channel and reports whether it existed
func (m *AlertManager) RemoveChannel(id string) bool {
	return m.channels.Remove(id)
}

// GetChannel returns a channel by id
func (m *AlertManager) GetChannel(id string) (*model.AlertChannel, error) {
	ch, ok := m.channels.Get(id)
	if !ok {
		return nil, apperrors.NotFound("channel", id)
	}
	return ch, nil
}

// ListChannels returns all channels
func (m *AlertManager) ListChannels() []*model.AlertChannel {
	return m.channels.List()
}

// SetRule validates and upserts a rule
func (m *AlertManager) SetRule(rule *model.AlertRule) error {
	if err := ValidateRule(rule); err != nil {
		return err
	}
	m.rules.Set(rule)
	m.logger.Info("Rule configured",
		zap.String("rule_id", rule.ID),
		zap.Bool("enabled", rule.Enabled),
		zap.Strings("channels", rule.Channels))
	return nil
}

// RemoveRule deletes a rule and reports whether it existed
func (m *AlertManager) RemoveRule(id string) bool {
	m.ruleLimiter.Reset(id)
	return m.rules.Remove(id)
}

// GetRule returns a rule by id
func (m *AlertManager) GetRule(id string) (*model.AlertRule, error) {
	rule, ok := m.rules.Get(id)
	if !ok {
		return nil, apperrors.NotFound("rule", id)
	}
	return rule, nil
}

// ListRules returns all rules
func (m *AlertManager) ListRules() []*model.AlertRule {
	return m.rules.List()
}

// TestChannel delivers a synthetic LOW alert to one channel, bypassing rules,
// enablement and rate limits
func (m *AlertManager) TestChannel(ctx context.Context, id string) (model.DeliveryResult, error) {
	ch, ok := m.channels.Get(id)
	if !ok {
		return model.DeliveryResult{}, apperrors.NotFound("channel", id)
	}

	alert := &model.Alert{
		ID:          uuid.New().String(),
		Type:        model.AlertTypeTest,
		Severity:    model.AlertSeverityLow,
		Title:       "Test alert",
		Description: "Test message for channel " + ch.Name,
		Components:  []string{"alerting"},
		Timestamp:   m.now(),
	}
	return m.deliver(ctx, alert, ch), nil
}

// GetHistory returns the lifecycle log of an alert
func (m *AlertManager) GetHistory(alertID string) []model.HistoryEntry {
	return m.history.Get(alertID)
}

// GetHistoryCount returns how many entries of action the alert has
func (m *AlertManager) GetHistoryCount(alertID string, action model.HistoryAction) int {
	return m.history.Count(alertID, action)
}

// PruneRateLimits drops elapsed rate limit windows
func (m *AlertManager) PruneRateLimits() int {
	return m.ruleLimiter.Prune() + m.chanLimiter.Prune()
}

// PendingEscalations returns the number of armed escalation timers
func (m *AlertManager) PendingEscalations() int {
	return m.escalations.Pending()
}

// Notify delivers alert to a single channel outside of rule routing. A failed
// first attempt is retried with linear backoff and dead-lettered when exhausted.
func (m *AlertManager) Notify(ctx context.Context, alert *model.Alert, channelID string) (model.DeliveryResult, error) {
	if err := m.prepare(alert); err != nil {
		return model.DeliveryResult{}, err
	}
	ch, ok := m.channels.Get(channelID)
	if !ok {
		return model.DeliveryResult{}, apperrors.NotFound("channel", channelID)
	}

	return m.notifier.Send(ctx, alert.Clone(), ch), nil
}

// PendingRetries returns the number of scheduled notification retries
func (m *AlertManager) PendingRetries() int {
	return m.notifier.Pending()
}

func sortAlerts(alerts []*model.Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Timestamp.Equal(alerts[j].Timestamp) {
			return alerts[i].ID < alerts[j].ID
		}
		return alerts[i].Timestamp.Before(alerts[j].Timestamp)
	})
}
