package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// StoreConfig selects and configures the routing table persistence backend.
type StoreConfig struct {
	Backend string `yaml:"backend" envconfig:"STORE_BACKEND"`
	// Path locates the JSON blob used by the file backend.
	Path string `yaml:"path" envconfig:"STORE_PATH"`

	Host           string `yaml:"host" envconfig:"STORE_DB_HOST"`
	Port           string `yaml:"port" envconfig:"STORE_DB_PORT"`
	User           string `yaml:"user" envconfig:"STORE_DB_USER"`
	Password       string `yaml:"password" envconfig:"STORE_DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"STORE_DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"STORE_DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"STORE_DB_MAX_CONNECTIONS"`
}

// HealthConfig configures the keep-alive HTTP endpoint.
type HealthConfig struct {
	Port int `yaml:"port" envconfig:"HEALTH_PORT"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// StoreBackendFile persists the routing table as a local JSON blob.
	StoreBackendFile = "file"
	// StoreBackendPostgres persists the routing table in Postgres, one row per user.
	StoreBackendPostgres = "postgres"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateChannelPost identifies channel post updates for rate limit exclusions.
	UpdateChannelPost = "channel_post"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "channel_post": posts arriving in source channels (excluded by default,
// forwarding must never be throttled by the interactive limiter)
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the application configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	Store     StoreConfig     `yaml:"store"`
	Health    HealthConfig    `yaml:"health"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if cfg.Telegram.AdminID == 0 {
		return fmt.Errorf("telegram.admin_id is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	backend := strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if backend == "" {
		backend = StoreBackendFile
	}
	switch backend {
	case StoreBackendFile:
		if strings.TrimSpace(cfg.Store.Path) == "" {
			cfg.Store.Path = "relay_routes.json"
		}
	case StoreBackendPostgres:
		if strings.TrimSpace(cfg.Store.Host) == "" {
			return fmt.Errorf("store.host is required when store.backend is 'postgres'")
		}
		if strings.TrimSpace(cfg.Store.Name) == "" {
			return fmt.Errorf("store.name is required when store.backend is 'postgres'")
		}
		if strings.TrimSpace(cfg.Store.Port) == "" {
			cfg.Store.Port = "5432"
		}
		if strings.TrimSpace(cfg.Store.SSLMode) == "" {
			cfg.Store.SSLMode = "disable"
		}
		if cfg.Store.MaxConnections <= 0 {
			cfg.Store.MaxConnections = 4
		}
	default:
		return fmt.Errorf("invalid store.backend %q; allowed: file, postgres", cfg.Store.Backend)
	}
	cfg.Store.Backend = backend

	if cfg.Health.Port < 0 {
		return fmt.Errorf("health.port must be >= 0")
	}
	if cfg.Health.Port == 0 {
		cfg.Health.Port = 8080
	}

	// Button presses and source-channel posts must never be throttled.
	if cfg.RateLimit.IntervalMS > 0 && len(cfg.RateLimit.ExcludeUpdates) == 0 {
		cfg.RateLimit.ExcludeUpdates = []string{UpdateCallback, UpdateChannelPost}
	}

	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateChannelPost: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, channel_post", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}
