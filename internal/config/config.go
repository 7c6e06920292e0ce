package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full server configuration
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Log         LogConfig         `mapstructure:"log"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Alerting    AlertingConfig    `mapstructure:"alerting"`
	Channels    ChannelsConfig    `mapstructure:"channels"`
	Monitor     MonitorConfig     `mapstructure:"monitor"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// AppConfig holds process level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// NATSConfig configures the event bus connection
type NATSConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	URLs           []string      `mapstructure:"urls"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// StorageConfig configures the SQLite database
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// AlertingConfig tunes the routing engine
type AlertingConfig struct {
	ChannelRateLimit  int           `mapstructure:"channel_rate_limit"`
	ChannelRateWindow time.Duration `mapstructure:"channel_rate_window"`
	HistoryLimit      int           `mapstructure:"history_limit"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	DeliveryTimeout   time.Duration `mapstructure:"delivery_timeout"`
}

// ChannelsConfig holds transport settings for external channels
type ChannelsConfig struct {
	Email   EmailConfig   `mapstructure:"email"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// EmailConfig configures the SMTP transport
type EmailConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Host       string   `mapstructure:"host"`
	Port       int      `mapstructure:"port"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	From       string   `mapstructure:"from"`
	Recipients []string `mapstructure:"recipients"`
}

// ChatConfig configures the chat webhook transport
type ChatConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
	Username   string `mapstructure:"username"`
}

// WebhookConfig configures the generic webhook transport
type WebhookConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

// MonitorConfig configures the host health monitor
type MonitorConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Interval       time.Duration `mapstructure:"interval"`
	CPUWarning     float64       `mapstructure:"cpu_warning"`
	CPUCritical    float64       `mapstructure:"cpu_critical"`
	MemoryWarning  float64       `mapstructure:"memory_warning"`
	MemoryCritical float64       `mapstructure:"memory_critical"`
}

// MaintenanceConfig configures periodic housekeeping jobs
type MaintenanceConfig struct {
	RateLimitPruneSpec string        `mapstructure:"rate_limit_prune_spec"`
	AlertLogPruneSpec  string        `mapstructure:"alert_log_prune_spec"`
	AlertLogRetention  time.Duration `mapstructure:"alert_log_retention"`
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "alertcore")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.metrics_addr", ":9090")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("log.compress", true)

	v.SetDefault("nats.enabled", true)
	v.SetDefault("nats.urls", []string{"nats://127.0.0.1:4222"})
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("nats.connect_timeout", 5*time.Second)

	v.SetDefault("storage.path", "alertcore.db")

	v.SetDefault("alerting.channel_rate_limit", 10)
	v.SetDefault("alerting.channel_rate_window", 5*time.Minute)
	v.SetDefault("alerting.history_limit", 100)
	v.SetDefault("alerting.retry_attempts", 3)
	v.SetDefault("alerting.retry_delay", 5*time.Second)
	v.SetDefault("alerting.delivery_timeout", 10*time.Second)

	v.SetDefault("channels.email.port", 587)
	v.SetDefault("channels.chat.username", "Alert Bot")

	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.interval", 30*time.Second)
	v.SetDefault("monitor.cpu_warning", 80.0)
	v.SetDefault("monitor.cpu_critical", 95.0)
	v.SetDefault("monitor.memory_warning", 85.0)
	v.SetDefault("monitor.memory_critical", 95.0)

	v.SetDefault("maintenance.rate_limit_prune_spec", "0 */5 * * * *")
	v.SetDefault("maintenance.alert_log_prune_spec", "0 0 3 * * *")
	v.SetDefault("maintenance.alert_log_retention", 30*24*time.Hour)
}

// Load reads configuration from the given file (optional) and ALERTCORE_* env vars
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("ALERTCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if c.Alerting.ChannelRateLimit <= 0 {
		return fmt.Errorf("alerting.channel_rate_limit must be positive, got %d", c.Alerting.ChannelRateLimit)
	}
	if c.Alerting.ChannelRateWindow <= 0 {
		return fmt.Errorf("alerting.channel_rate_window must be positive")
	}
	if c.Alerting.HistoryLimit <= 0 {
		return fmt.Errorf("alerting.history_limit must be positive, got %d", c.Alerting.HistoryLimit)
	}
	if c.Alerting.RetryAttempts <= 0 {
		return fmt.Errorf("alerting.retry_attempts must be positive, got %d", c.Alerting.RetryAttempts)
	}
	if c.Channels.Email.Enabled && c.Channels.Email.Host == "" {
		return fmt.Errorf("channels.email.host is required when email is enabled")
	}
	if c.Channels.Chat.Enabled && c.Channels.Chat.WebhookURL == "" {
		return fmt.Errorf("channels.chat.webhook_url is required when chat is enabled")
	}
	if c.Channels.Webhook.Enabled && c.Channels.Webhook.URL == "" {
		return fmt.Errorf("channels.webhook.url is required when webhook is enabled")
	}
	if c.Monitor.CPUWarning > c.Monitor.CPUCritical || c.Monitor.MemoryWarning > c.Monitor.MemoryCritical {
		return fmt.Errorf("monitor warning thresholds must not exceed critical thresholds")
	}
	return nil
}
