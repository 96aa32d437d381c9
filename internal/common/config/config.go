// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Progress      ProgressConfig          `mapstructure:"progress"`
	Realtime      RealtimeConfig          `mapstructure:"realtime"`
	RateLimit     RateLimitConfig         `mapstructure:"rate_limit"`
	Template      TemplateConfig          `mapstructure:"template"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Server        ServerConfig            `mapstructure:"server"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	BaseURL     string `mapstructure:"base_url"` // prefix for action URLs in emails
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Addresses     []string `mapstructure:"addresses"`
	Username      string   `mapstructure:"username"`
	Password      string   `mapstructure:"password"`
	ProgressIndex string   `mapstructure:"progress_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Specific Configuration Sections ---

// NotificationConfig holds settings for notification creation and delivery.
type NotificationConfig struct {
	Email struct {
		Enabled      bool   `mapstructure:"enabled"`
		FromEmail    string `mapstructure:"from_email"`
		ReplyTo      string `mapstructure:"reply_to"`
		DefaultStyle string `mapstructure:"default_style"`
		Timeout      int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	Dispatch struct {
		Backend   string `mapstructure:"backend"` // "memory" or "amqp"
		QueueSize int    `mapstructure:"queue_size"`
		Workers   int    `mapstructure:"workers"`
	} `mapstructure:"dispatch"`
	AMQP struct {
		URL   string `mapstructure:"url"`
		Queue string `mapstructure:"queue"`
	} `mapstructure:"amqp"`
	CleanupInterval int `mapstructure:"cleanup_interval"` // seconds, 0 disables the ticker
}

// ProgressConfig holds aggregation and analytics settings.
type ProgressConfig struct {
	AnalyticsCacheTTL int `mapstructure:"analytics_cache_ttl"` // seconds
}

// RealtimeConfig holds change fan-out settings.
type RealtimeConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	BroadcastBackend     string `mapstructure:"broadcast_backend"` // "redis" or "local"
	MinReconnectInterval int    `mapstructure:"min_reconnect_interval"` // milliseconds
	MaxReconnectInterval int    `mapstructure:"max_reconnect_interval"` // milliseconds
}

// RateLimitConfig bounds outbound email per recipient.
type RateLimitConfig struct {
	EmailsPerWindow int `mapstructure:"emails_per_window"`
	WindowSeconds   int `mapstructure:"window_seconds"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TemplateConfig points at an optional JSON file of notification template overrides.
type TemplateConfig struct {
	RegistryPath string `mapstructure:"registry_path"`
}

// ServerConfig holds the health/metrics listener.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
