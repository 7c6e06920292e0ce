package monitor

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "alertcore"

// Metrics exposes delivery, escalation and task counters on a private registry
type Metrics struct {
	registry *prometheus.Registry

	deliveries       *prometheus.CounterVec
	escalations      *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	tasksCreated     *prometheus.CounterVec
	hostUsage        *prometheus.GaugeVec
}

// NewMetrics creates and registers the alertcore metrics
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Alert deliveries by channel and outcome",
			},
			[]string{"channel", "status"},
		),
		escalations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "escalations_total",
				Help:      "Escalation notifications delivered by channel",
			},
			[]string{"channel"},
		),
		deliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "delivery_duration_seconds",
				Help:      "Time spent delivering an alert to a channel",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"channel"},
		),
		tasksCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_created_total",
				Help:      "Resolution tasks created by priority",
			},
			[]string{"priority"},
		),
		hostUsage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "host_usage_percent",
				Help:      "Last sampled host resource usage",
			},
			[]string{"metric"},
		),
	}

	collectors := []prometheus.Collector{m.deliveries, m.escalations, m.deliveryDuration, m.tasksCreated, m.hostUsage}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return m, nil
}

// ObserveDelivery records one delivery attempt
func (m *Metrics) ObserveDelivery(channelID string, success bool, elapsed time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.deliveries.WithLabelValues(channelID, status).Inc()
	m.deliveryDuration.WithLabelValues(channelID).Observe(elapsed.Seconds())
}

// IncEscalation records one escalation delivery
func (m *Metrics) IncEscalation(channelID string) {
	m.escalations.WithLabelValues(channelID).Inc()
}

// IncTaskCreated records a new resolution task
func (m *Metrics) IncTaskCreated(priority string) {
	m.tasksCreated.WithLabelValues(priority).Inc()
}

// SetHostUsage records the last sampled value of a host metric
func (m *Metrics) SetHostUsage(metric string, value float64) {
	m.hostUsage.WithLabelValues(metric).Set(value)
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
