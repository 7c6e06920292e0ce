// Package monitor samples host health and exposes Prometheus metrics.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/t77yq/alertcore/internal/model"
)

// Host metric names
const (
	MetricCPU    = "cpu"
	MetricMemory = "memory"
)

// Sample is one reading of host resource usage in percent
type Sample struct {
	CPUPercent    float64
	MemoryPercent float64
}

// Sampler reads host resource usage
type Sampler interface {
	Sample(ctx context.Context) (Sample, error)
}

// HostSampler reads CPU and memory usage through gopsutil
type HostSampler struct {
	// CPUWindow is how long CPU usage is measured for
	CPUWindow time.Duration
}

// Sample reads current CPU and memory usage
func (s HostSampler) Sample(ctx context.Context) (Sample, error) {
	window := s.CPUWindow
	if window <= 0 {
		window = time.Second
	}

	cpuPercent, err := cpu.PercentWithContext(ctx, window, false)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to get CPU usage: %w", err)
	}
	if len(cpuPercent) == 0 {
		return Sample{}, fmt.Errorf("failed to get CPU usage: no data")
	}

	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to get memory usage: %w", err)
	}

	return Sample{CPUPercent: cpuPercent[0], MemoryPercent: memInfo.UsedPercent}, nil
}

// AlertSink routes alerts and reports their lifecycle state
type AlertSink interface {
	SendAlert(ctx context.Context, alert *model.Alert) ([]model.DeliveryResult, error)
	GetAlert(id string) (*model.Alert, bool)
}

// UsageRecorder records sampled values
type UsageRecorder interface {
	SetHostUsage(metric string, value float64)
}

// HealthConfig holds sampling interval and thresholds in percent
type HealthConfig struct {
	Interval       time.Duration
	CPUWarning     float64
	CPUCritical    float64
	MemoryWarning  float64
	MemoryCritical float64
}

// HealthMonitor raises alerts when host usage crosses its thresholds.
// While the last alert for a metric is unresolved no new alert is raised for it.
type HealthMonitor struct {
	logger   *zap.Logger
	sampler  Sampler
	sink     AlertSink
	recorder UsageRecorder
	cfg      HealthConfig

	mu       sync.Mutex
	previous map[string]float64
	open     map[string]string

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHealthMonitor creates a new health monitor. recorder may be nil.
func NewHealthMonitor(cfg HealthConfig, sampler Sampler, sink AlertSink, recorder UsageRecorder, logger *zap.Logger) *HealthMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &HealthMonitor{
		logger:   logger.Named("health-monitor"),
		sampler:  sampler,
		sink:     sink,
		recorder: recorder,
		cfg:      cfg,
		previous: make(map[string]float64),
		open:     make(map[string]string),
		stop:     make(chan struct{}),
	}
}

// Start runs the sampling loop until ctx is done or Stop is called
func (h *HealthMonitor) Start(ctx context.Context) {
	h.logger.Info("Starting health monitor", zap.Duration("interval", h.cfg.Interval))

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.loop(ctx)
	}()
}

// Stop stops the sampling loop and waits for it to exit
func (h *HealthMonitor) Stop() {
	h.stopOnce.Do(func() {
		h.logger.Info("Stopping health monitor")
		close(h.stop)
	})
	h.wg.Wait()
}

func (h *HealthMonitor) loop(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			return
		case <-ticker.C:
			if err := h.Check(ctx); err != nil {
				h.logger.Error("Health check failed", zap.Error(err))
			}
		}
	}
}

// Check takes one sample and raises alerts for crossed thresholds
func (h *HealthMonitor) Check(ctx context.Context) error {
	sample, err := h.sampler.Sample(ctx)
	if err != nil {
		return err
	}

	h.logger.Debug("Host sampled",
		zap.Float64("cpu_usage", sample.CPUPercent),
		zap.Float64("memory_usage", sample.MemoryPercent))

	h.evaluate(ctx, MetricCPU, sample.CPUPercent, h.cfg.CPUWarning, h.cfg.CPUCritical)
	h.evaluate(ctx, MetricMemory, sample.MemoryPercent, h.cfg.MemoryWarning, h.cfg.MemoryCritical)
	return nil
}

func (h *HealthMonitor) evaluate(ctx context.Context, metric string, value, warning, critical float64) {
	if h.recorder != nil {
		h.recorder.SetHostUsage(metric, value)
	}

	h.mu.Lock()
	prev, hadPrev := h.previous[metric]
	h.previous[metric] = value
	openID := h.open[metric]
	h.mu.Unlock()

	if warning <= 0 || value < warning {
		return
	}

	alert := buildHealthAlert(metric, value, warning, critical)
	if hadPrev {
		alert.Metrics.PreviousValue = &prev
	}

	// an open alert suppresses repeats unless the new one is more severe
	if openID != "" {
		if a, ok := h.sink.GetAlert(openID); ok && !a.Resolved && a.Severity.Rank() >= alert.Severity.Rank() {
			h.logger.Debug("Threshold alert suppressed",
				zap.String("metric", metric),
				zap.String("open_alert_id", openID))
			return
		}
	}

	if _, err := h.sink.SendAlert(ctx, alert); err != nil {
		h.logger.Error("Failed to raise health alert",
			zap.String("metric", metric),
			zap.Error(err))
		return
	}

	h.mu.Lock()
	h.open[metric] = alert.ID
	h.mu.Unlock()

	h.logger.Warn("Host threshold exceeded",
		zap.String("metric", metric),
		zap.Float64("value", value),
		zap.String("alert_id", alert.ID),
		zap.String("severity", string(alert.Severity)))
}

func buildHealthAlert(metric string, value, warning, critical float64) *model.Alert {
	alertType := model.AlertTypeThresholdExceeded
	severity := model.AlertSeverityMedium
	threshold := warning
	if critical > 0 && value >= critical {
		alertType = model.AlertTypeSystemDegradation
		severity = model.AlertSeverityCritical
		threshold = critical
	}

	label := "CPU"
	actions := []string{"Identify the processes using the most CPU", "Scale out the affected service"}
	if metric == MetricMemory {
		label = "Memory"
		actions = []string{"Check for memory leaks", "Restart services with growing memory use"}
	}

	return &model.Alert{
		ID:          uuid.New().String(),
		Type:        alertType,
		Severity:    severity,
		Title:       fmt.Sprintf("High %s usage: %.1f%%", label, value),
		Description: fmt.Sprintf("%s usage is %.1f%%, above the %.1f%% threshold.", label, value, threshold),
		Components:  []string{"host"},
		Metrics: model.AlertMetrics{
			CurrentValue: value,
			Threshold:    &threshold,
		},
		Actions: actions,
	}
}
