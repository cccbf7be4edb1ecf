// Package config defines process configuration and its loading order:
// defaults, then an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/mlorenc/birthday-notify/internal/schedule"
)

// Config holds every tunable of the service.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogConsole switches to human-readable console output instead of JSON.
	LogConsole bool `koanf:"log_console"`

	// Addr is the HTTP listen address for the management API and /metrics.
	Addr string `koanf:"addr"`

	// Database connection settings.
	DBHost     string `koanf:"db_host"`
	DBPort     string `koanf:"db_port"`
	DBUser     string `koanf:"db_user"`
	DBPassword string `koanf:"db_password"`
	DBName     string `koanf:"db_name"`
	DBSSLMode  string `koanf:"db_sslmode"`

	// AnchorHour is the local wall-clock hour notifications fire at.
	AnchorHour int `koanf:"anchor_hour"`

	// SweepSpec is the cron expression (seconds granularity) for the claim
	// sweep that polls for due events.
	SweepSpec string `koanf:"sweep_spec"`

	// ClaimBatchSize caps how many due events one sweep claims.
	ClaimBatchSize int `koanf:"claim_batch_size"`

	// Workers is the number of concurrent delivery workers.
	Workers int `koanf:"workers"`

	// RetryMax caps transient-failure retries per event.
	RetryMax int `koanf:"retry_max"`

	// DeliveryTimeout bounds a single outbound delivery attempt. Exceeding
	// it counts as a transient failure.
	DeliveryTimeout time.Duration `koanf:"delivery_timeout"`

	// Backoff controls how long a soft-failed event waits before it becomes
	// claimable again. BackoffBase 0 makes soft-failed events immediately
	// re-eligible.
	BackoffBase   time.Duration `koanf:"backoff_base"`
	BackoffMax    time.Duration `koanf:"backoff_max"`
	BackoffJitter float64       `koanf:"backoff_jitter"`

	// Webhook delivery settings.
	WebhookURL   string  `koanf:"webhook_url"`
	WebhookRate  float64 `koanf:"webhook_rate"` // outbound requests per second
	WebhookBurst int     `koanf:"webhook_burst"`
}

// Default returns the built-in configuration, tuned for local development.
func Default() *Config {
	return &Config{
		LogLevel:        "info",
		LogConsole:      false,
		Addr:            ":8080",
		DBHost:          "localhost",
		DBPort:          "5432",
		DBUser:          "postgres",
		DBPassword:      "postgres",
		DBName:          "birthdaynotify",
		DBSSLMode:       "disable",
		AnchorHour:      schedule.DefaultAnchorHour,
		SweepSpec:       "*/30 * * * * *",
		ClaimBatchSize:  50,
		Workers:         4,
		RetryMax:        3,
		DeliveryTimeout: 10 * time.Second,
		BackoffBase:     time.Minute,
		BackoffMax:      30 * time.Minute,
		BackoffJitter:   0.2,
		WebhookURL:      "http://localhost:9090/notify",
		WebhookRate:     20,
		WebhookBurst:    10,
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.AnchorHour < 0 || c.AnchorHour > 23 {
		return fmt.Errorf("anchor_hour must be in [0,23], got %d", c.AnchorHour)
	}
	if c.SweepSpec == "" {
		return fmt.Errorf("sweep_spec must not be empty")
	}
	if c.ClaimBatchSize <= 0 {
		return fmt.Errorf("claim_batch_size must be positive, got %d", c.ClaimBatchSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.RetryMax < 0 {
		return fmt.Errorf("retry_max must not be negative, got %d", c.RetryMax)
	}
	if c.DeliveryTimeout <= 0 {
		return fmt.Errorf("delivery_timeout must be positive, got %s", c.DeliveryTimeout)
	}
	if c.BackoffBase < 0 || c.BackoffMax < 0 {
		return fmt.Errorf("backoff durations must not be negative")
	}
	if c.BackoffJitter < 0 || c.BackoffJitter > 1 {
		return fmt.Errorf("backoff_jitter must be in [0,1], got %g", c.BackoffJitter)
	}
	if c.WebhookURL == "" {
		return fmt.Errorf("webhook_url must not be empty")
	}
	if c.WebhookRate <= 0 || c.WebhookBurst <= 0 {
		return fmt.Errorf("webhook_rate and webhook_burst must be positive")
	}
	return nil
}

// DSN builds a libpq-compatible connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}
