// Package config loads run settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/deusflow/techdigest/internal/digest"
	"github.com/deusflow/techdigest/internal/news"
	"github.com/deusflow/techdigest/internal/storage"
	"github.com/deusflow/techdigest/internal/summary"
	"github.com/deusflow/techdigest/internal/telegram"
)

// ErrInvalidConfig wraps every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	// Telegram settings
	TelegramToken  string
	TelegramChatID string
	SendTimeout    time.Duration

	// Sources
	FeedsConfigPath string
	FeedTimeout     time.Duration
	PerSourceLimit  int

	// Page scraping
	PageTimeout       time.Duration
	PageFetchInterval time.Duration

	// Digest
	MaxItems            int
	MaxMessageLength    int
	DigestTitle         string
	SummaryMaxChars     int
	SummaryMaxSentences int

	// Ledger
	SeenFile     string
	SeenCapacity int

	// App settings
	DryRun          bool
	Debug           bool
	LogFormat       string
	MetricsTextfile string
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	cfg := FromEnv()
	return cfg, cfg.Validate()
}

// FromEnv reads the environment without validating, so callers can apply
// overrides first.
func FromEnv() *Config {
	return &Config{
		TelegramToken:  firstEnv("TELEGRAM_TOKEN", "BOT_TOKEN"),
		TelegramChatID: firstEnv("TELEGRAM_CHAT_ID", "CHAT_ID"),
		SendTimeout:    getEnvDurationOrDefault("SEND_TIMEOUT", telegram.DefaultTimeout),

		FeedsConfigPath: getEnvOrDefault("FEEDS_CONFIG_PATH", "configs/feeds.yaml"),
		FeedTimeout:     getEnvDurationOrDefault("FEED_TIMEOUT", 15*time.Second),
		PerSourceLimit:  getEnvIntOrDefault("PER_SOURCE_LIMIT", news.DefaultPerSourceLimit),

		PageTimeout:       getEnvDurationOrDefault("PAGE_TIMEOUT", 8*time.Second),
		PageFetchInterval: getEnvDurationOrDefault("PAGE_FETCH_INTERVAL", 500*time.Millisecond),

		MaxItems:            getEnvIntOrDefault("MAX_ITEMS", 6),
		MaxMessageLength:    getEnvIntOrDefault("MAX_MESSAGE_LENGTH", digest.DefaultMaxLength),
		DigestTitle:         getEnvOrDefault("DIGEST_TITLE", digest.DefaultTitle),
		SummaryMaxChars:     getEnvIntOrDefault("SUMMARY_MAX_CHARS", summary.DefaultMaxChars),
		SummaryMaxSentences: getEnvIntOrDefault("SUMMARY_MAX_SENTENCES", summary.DefaultMaxSentences),

		SeenFile:     getEnvOrDefault("SEEN_FILE", "seen.json"),
		SeenCapacity: getEnvIntOrDefault("SEEN_CAPACITY", storage.DefaultCapacity),

		DryRun:          getEnvBoolOrDefault("DRY_RUN", false),
		Debug:           getEnvBoolOrDefault("DEBUG", false),
		LogFormat:       getEnvOrDefault("LOG_FORMAT", "text"),
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Validate checks bounds. Credentials are only required when the digest is
// actually going to be sent.
func (c *Config) Validate() error {
	if !c.DryRun {
		if c.TelegramToken == "" {
			return fmt.Errorf("%w: TELEGRAM_TOKEN is required", ErrInvalidConfig)
		}
		if c.TelegramChatID == "" {
			return fmt.Errorf("%w: TELEGRAM_CHAT_ID is required", ErrInvalidConfig)
		}
	}
	if c.MaxItems <= 0 {
		return fmt.Errorf("%w: MAX_ITEMS must be positive", ErrInvalidConfig)
	}
	if c.SeenCapacity <= 0 {
		return fmt.Errorf("%w: SEEN_CAPACITY must be positive", ErrInvalidConfig)
	}
	if c.PerSourceLimit <= 0 {
		return fmt.Errorf("%w: PER_SOURCE_LIMIT must be positive", ErrInvalidConfig)
	}
	if c.MaxMessageLength <= len([]rune(digest.TruncatedMarker)) {
		return fmt.Errorf("%w: MAX_MESSAGE_LENGTH must exceed the truncation marker", ErrInvalidConfig)
	}
	if c.SummaryMaxChars <= 0 || c.SummaryMaxSentences <= 0 {
		return fmt.Errorf("%w: summary limits must be positive", ErrInvalidConfig)
	}
	if c.SeenFile == "" {
		return fmt.Errorf("%w: SEEN_FILE is required", ErrInvalidConfig)
	}
	if c.FeedTimeout <= 0 {
		return fmt.Errorf("%w: FEED_TIMEOUT must be positive", ErrInvalidConfig)
	}
	if c.PageTimeout <= 0 {
		return fmt.Errorf("%w: PAGE_TIMEOUT must be positive", ErrInvalidConfig)
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("%w: SEND_TIMEOUT must be positive", ErrInvalidConfig)
	}
	return nil
}
