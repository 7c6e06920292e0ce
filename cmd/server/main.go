package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/alertcore/internal/alerting"
	"github.com/t77yq/alertcore/internal/config"
	"github.com/t77yq/alertcore/internal/events"
	"github.com/t77yq/alertcore/internal/handler"
	"github.com/t77yq/alertcore/internal/logging"
	"github.com/t77yq/alertcore/internal/maintenance"
	"github.com/t77yq/alertcore/internal/monitor"
	"github.com/t77yq/alertcore/internal/resolution"
	"github.com/t77yq/alertcore/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Storage
	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	alertLog, err := storage.NewSQLiteAlertLog(db, logger)
	if err != nil {
		return err
	}
	errorStore, err := storage.NewSQLiteErrorStore(db, logger)
	if err != nil {
		return err
	}

	metrics, err := monitor.NewMetrics()
	if err != nil {
		return err
	}

	// Event bus
	var (
		js        nats.JetStreamContext
		publisher *events.Publisher
	)
	if cfg.NATS.Enabled {
		nc, err := connectNATS(cfg, logger)
		if err != nil {
			return err
		}
		defer nc.Drain()

		js, err = nc.JetStream()
		if err != nil {
			return fmt.Errorf("failed to create JetStream context: %w", err)
		}
		publisher = events.NewPublisher(js, logger)
		if err := publisher.EnsureStreams(); err != nil {
			return err
		}
	}

	// Alerting
	router := handler.NewRouter(handler.RouterConfig{
		AlertStore: alertLog,
		SMTP: handler.SMTPConfig{
			Host:     cfg.Channels.Email.Host,
			Port:     cfg.Channels.Email.Port,
			Username: cfg.Channels.Email.Username,
			Password: cfg.Channels.Email.Password,
			From:     cfg.Channels.Email.From,
		},
	}, logger)

	opts := []alerting.Option{alerting.WithMetrics(metrics)}
	if publisher != nil {
		opts = append(opts, alerting.WithPublisher(publisher))
	}
	manager := alerting.NewAlertManager(alerting.Config{
		ChannelRateLimit:  cfg.Alerting.ChannelRateLimit,
		ChannelRateWindow: cfg.Alerting.ChannelRateWindow,
		HistoryLimit:      cfg.Alerting.HistoryLimit,
		DeliveryTimeout:   cfg.Alerting.DeliveryTimeout,
		RetryAttempts:     cfg.Alerting.RetryAttempts,
		RetryDelay:        cfg.Alerting.RetryDelay,
	}, router, logger, opts...)
	defer manager.Stop()

	if err := configureChannels(manager, cfg.Channels); err != nil {
		return err
	}

	// Resolution tasks
	tasks := resolution.NewService(errorStore, logger,
		resolution.WithTaskMetrics(metrics),
		resolution.WithAssigneeNotifier(manager, alerting.ChannelConsole))
	logger.Info("Resolution service ready",
		zap.Int("assignment_rules", len(tasks.ListAssignmentRules())))

	if js != nil {
		ingester := events.NewIngester(js, manager, errorStore, logger)
		if err := ingester.Start(ctx); err != nil {
			return err
		}
		defer ingester.Stop()
	}

	// Host health
	if cfg.Monitor.Enabled {
		health := monitor.NewHealthMonitor(monitor.HealthConfig{
			Interval:       cfg.Monitor.Interval,
			CPUWarning:     cfg.Monitor.CPUWarning,
			CPUCritical:    cfg.Monitor.CPUCritical,
			MemoryWarning:  cfg.Monitor.MemoryWarning,
			MemoryCritical: cfg.Monitor.MemoryCritical,
		}, monitor.HostSampler{}, manager, metrics, logger)
		health.Start(ctx)
		defer health.Stop()
	}

	// Maintenance
	runner := maintenance.NewRunner(logger)
	if err := runner.Add(maintenance.PruneRateLimitsJob(cfg.Maintenance.RateLimitPruneSpec, manager, logger)); err != nil {
		return err
	}
	if err := runner.Add(maintenance.AlertLogRetentionJob(
		cfg.Maintenance.AlertLogPruneSpec, cfg.Maintenance.AlertLogRetention, alertLog, nil, logger)); err != nil {
		return err
	}
	runner.Start()
	defer runner.Stop()

	// Metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              cfg.App.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Serving metrics", zap.String("addr", cfg.App.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	logger.Info("alertcore started",
		zap.String("environment", cfg.App.Environment),
		zap.Bool("nats", cfg.NATS.Enabled))

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serveErr:
		logger.Error("Metrics server failed", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Failed to shut down metrics server", zap.Error(err))
	}

	logger.Info("Server shutting down gracefully")
	return nil
}

func connectNATS(cfg *config.Config, logger *zap.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(cfg.App.Name),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.ReconnectWait(cfg.NATS.ReconnectWait),
		nats.Timeout(cfg.NATS.ConnectTimeout),
		nats.PingInterval(20 * time.Second),
		nats.MaxPingsOutstanding(5),
		nats.ReconnectBufSize(5 * 1024 * 1024),
		nats.DrainTimeout(30 * time.Second),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("NATS connection error",
				zap.String("subject", subject),
				zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	url := strings.Join(cfg.NATS.URLs, ",")

	var (
		nc  *nats.Conn
		err error
	)
	const maxRetries = 5
	for i := 0; i < maxRetries; i++ {
		nc, err = nats.Connect(url, opts...)
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to NATS, retrying...",
			zap.Int("attempt", i+1),
			zap.Error(err))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS after retries: %w", err)
	}

	logger.Info("Connected to NATS", zap.String("url", nc.ConnectedUrl()))
	return nc, nil
}
