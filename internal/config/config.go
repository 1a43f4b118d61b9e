// Package config handles loading and validating configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultWatchSource is used when WATCH_SOURCES is empty.
const DefaultWatchSource = "tensor"

// Config holds all configuration values for the sales engine.
type Config struct {
	// Telegram delivery
	TelegramBotToken string
	TelegramChatID   string
	AlertGIFURL      string

	// Admin endpoints
	AdminUser     string
	AdminPassword string

	// External enrichment providers
	HeliusAPIKey       string
	TensorCollectionID string
	HowRareAPIKey      string
	FetchTimeout       time.Duration

	// Tagging thresholds
	WhaleSOL    float64
	SweepCount  int
	SweepWindow time.Duration

	// Filters
	SendListingAlerts bool
	WatchMints        []string
	WatchSources      []string
	WatchMintlistURL  string

	// HTTP
	HTTPPort int

	// Metrics
	PrometheusPort int

	// UI
	EnableTUI     bool
	UIRefreshRate time.Duration

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables with fallback to .env file.
// Priority order: Environment variables > .env file > hardcoded defaults
func Load() (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	watchSources := lowerAll(getEnvList("WATCH_SOURCES"))
	if len(watchSources) == 0 {
		watchSources = []string{DefaultWatchSource}
	}

	cfg := &Config{
		// Telegram
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		AlertGIFURL:      getEnv("ALERT_GIF_URL", ""),

		// Admin
		AdminUser:     getEnv("ADMIN_USER", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		// Providers
		HeliusAPIKey:       getEnv("HELIUS_API_KEY", ""),
		TensorCollectionID: getEnv("TENSOR_COLLECTION_ID", ""),
		HowRareAPIKey:      getEnv("HOWRARE_API_KEY", ""),
		FetchTimeout:       time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 15)) * time.Second,

		// Thresholds
		WhaleSOL:    getEnvFloat("WHALE_SOL", 50),
		SweepCount:  getEnvInt("SWEEP_COUNT", 3),
		SweepWindow: time.Duration(getEnvInt("SWEEP_WINDOW_SEC", 120)) * time.Second,

		// Filters
		SendListingAlerts: getEnvBool("SEND_LISTING_ALERTS", false),
		WatchMints:        getEnvList("WATCH_MINTS"),
		WatchSources:      watchSources,
		WatchMintlistURL:  getEnv("WATCH_MINTLIST_URL", ""),

		// HTTP
		HTTPPort: getEnvInt("HTTP_PORT", 8000),

		// Metrics
		PrometheusPort: getEnvInt("PROMETHEUS_PORT", 9090),

		// UI
		EnableTUI:     getEnvBool("ENABLE_TUI", false),
		UIRefreshRate: time.Duration(getEnvInt("UI_REFRESH_MS", 500)) * time.Millisecond,

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and valid.
func (c *Config) Validate() error {
	if c.WhaleSOL <= 0 {
		return fmt.Errorf("WHALE_SOL must be positive")
	}

	if c.SweepCount < 1 {
		return fmt.Errorf("SWEEP_COUNT must be at least 1")
	}

	if c.SweepWindow < time.Second {
		return fmt.Errorf("SWEEP_WINDOW_SEC must be at least 1")
	}

	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT_SECONDS must be positive")
	}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}

	if c.PrometheusPort < 1 || c.PrometheusPort > 65535 {
		return fmt.Errorf("PROMETHEUS_PORT must be between 1 and 65535")
	}

	return nil
}

// TelegramConfigured reports whether both bot token and chat id are set.
func (c *Config) TelegramConfigured() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// AdminConfigured reports whether admin credentials are set.
func (c *Config) AdminConfigured() bool {
	return c.AdminUser != "" && c.AdminPassword != ""
}

// MaskedBotToken returns the bot token with most characters hidden for logging.
func (c *Config) MaskedBotToken() string {
	return maskSecret(c.TelegramBotToken)
}

// MaskedHeliusKey returns the Helius API key with most characters hidden for logging.
func (c *Config) MaskedHeliusKey() string {
	return maskSecret(c.HeliusAPIKey)
}

// MaskedCollectionID returns the Tensor collection id with most characters hidden.
func (c *Config) MaskedCollectionID() string {
	return maskSecret(c.TensorCollectionID)
}

// MaskedHowRareKey returns the HowRare API key with most characters hidden.
func (c *Config) MaskedHowRareKey() string {
	return maskSecret(c.HowRareAPIKey)
}

// Snapshot is the admin view of the configuration, secrets masked.
type Snapshot struct {
	BotToken           string `json:"bot_token"`
	ChatID             string `json:"chat_id"`
	WatchSources       string `json:"watch_sources"`
	WatchMintsCount    int    `json:"watch_mints_count"`
	MintlistURL        string `json:"mintlist_url"`
	WebhookPath        string `json:"webhook_path"`
	HeliusAPIKey       string `json:"helius_api_key"`
	TensorCollectionID string `json:"tensor_collection_id"`
	HowRareAPIKey      string `json:"howrare_api_key"`
	SendListingAlerts  string `json:"send_listing_alerts"`
}

// Snapshot builds the masked configuration view. watchMints is the live
// watch-list size, which grows once a mint list is loaded.
func (c *Config) Snapshot(watchMints int, webhookPath string) Snapshot {
	return Snapshot{
		BotToken:           c.MaskedBotToken(),
		ChatID:             orNotSet(c.TelegramChatID),
		WatchSources:       orNotSet(strings.Join(c.WatchSources, ", ")),
		WatchMintsCount:    watchMints,
		MintlistURL:        orNotSet(c.WatchMintlistURL),
		WebhookPath:        webhookPath,
		HeliusAPIKey:       c.MaskedHeliusKey(),
		TensorCollectionID: c.MaskedCollectionID(),
		HowRareAPIKey:      c.MaskedHowRareKey(),
		SendListingAlerts:  strconv.FormatBool(c.SendListingAlerts),
	}
}

func orNotSet(s string) string {
	if s == "" {
		return "Not set"
	}
	return s
}

// maskSecret hides all but the first and last 4 characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat retrieves an environment variable as a float64 or returns a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean or returns a default.
// "yes" is accepted alongside the strconv spellings.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return defaultValue
	}
	if value == "yes" {
		return true
	}
	if boolVal, err := strconv.ParseBool(value); err == nil {
		return boolVal
	}
	return defaultValue
}

// getEnvList retrieves a comma-separated environment variable as a list,
// dropping empty items.
func getEnvList(key string) []string {
	return ParseCSV(os.Getenv(key))
}

// ParseCSV splits a comma-separated value, trimming items and dropping empties.
func ParseCSV(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func lowerAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, strings.ToLower(item))
	}
	return out
}
