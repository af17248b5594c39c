// Package config loads, validates and watches the briefbot configuration.
// YAML and JSON are both accepted; unknown fields are rejected.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	logx "briefbot/pkg/logx"
)

const (
	// EnvTelegramToken overrides telegram.token so the secret can stay out
	// of the config file.
	EnvTelegramToken = "TELEGRAM_BOT_TOKEN"

	// EnvAnthropicKey overrides summarizer.api_key.
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
)

type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	Newsletter NewsletterConfig `json:"newsletter,omitempty"`
	Summarizer SummarizerConfig `json:"summarizer"`
	Ledger     LedgerConfig     `json:"ledger,omitempty"`
	Schedule   ScheduleConfig   `json:"schedule,omitempty"`
	Logging    LoggingConfig    `json:"logging,omitempty"`
}

// TelegramConfig controls delivery.
//
// Enabled is a pointer so an omitted field defaults to true while an explicit
// false turns delivery off (fetch and summarize still run).
type TelegramConfig struct {
	Enabled     *bool   `json:"enabled,omitempty"`
	Token       string  `json:"token,omitempty"`
	Recipients  []int64 `json:"recipients"`
	PartsPerSec float64 `json:"parts_per_sec,omitempty"`
	RetryMax    int     `json:"retry_max,omitempty"`
}

func (t TelegramConfig) IsEnabled() bool { return t.Enabled == nil || *t.Enabled }

type NewsletterConfig struct {
	BaseURL string `json:"base_url,omitempty"`
	Timeout string `json:"timeout,omitempty"` // Go duration string, default 30s
}

type SummarizerConfig struct {
	APIKey      string  `json:"api_key,omitempty"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxArticles int     `json:"max_articles,omitempty"`
}

// LedgerConfig controls the run-state store.
//
// Example:
//
//	"ledger": { "driver": "sqlite", "path": "./briefbot.db" }
type LedgerConfig struct {
	Driver      string `json:"driver,omitempty"` // "file" (default) or "sqlite"
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type ScheduleConfig struct {
	// Cron accepts standard five-field expressions and descriptors
	// like "@daily".
	Cron              string `json:"cron,omitempty"`
	Timezone          string `json:"timezone,omitempty"` // IANA name, default UTC
	LookbackDays      int    `json:"lookback_days,omitempty"`
	PauseBetweenDates string `json:"pause_between_dates,omitempty"` // Go duration string
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console *bool       `json:"console,omitempty"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// Logx maps the logging section onto the logger's own config.
func (l LoggingConfig) Logx() logx.Config {
	return logx.Config{
		Level:   l.Level,
		Console: l.Console == nil || *l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
	}
}

// ApplyEnv fills secrets from the environment when the file left them empty.
func (c *Config) ApplyEnv() {
	if c.Telegram.Token == "" {
		c.Telegram.Token = os.Getenv(EnvTelegramToken)
	}
	if c.Summarizer.APIKey == "" {
		c.Summarizer.APIKey = os.Getenv(EnvAnthropicKey)
	}
}

// Validate rejects configs the process could not act on. It runs before any
// network or ledger work so a bad config aborts the whole run.
func (c *Config) Validate() error {
	if c.Telegram.IsEnabled() {
		if strings.TrimSpace(c.Telegram.Token) == "" {
			return fmt.Errorf("telegram.token is required while delivery is enabled (or set %s)", EnvTelegramToken)
		}
		if len(c.Telegram.Recipients) == 0 {
			return fmt.Errorf("telegram.recipients must list at least one chat id while delivery is enabled")
		}
	}
	if c.Telegram.PartsPerSec < 0 {
		return fmt.Errorf("telegram.parts_per_sec must be >= 0")
	}
	if strings.TrimSpace(c.Summarizer.APIKey) == "" {
		return fmt.Errorf("summarizer.api_key is required (or set %s)", EnvAnthropicKey)
	}
	if c.Schedule.LookbackDays < 0 {
		return fmt.Errorf("schedule.lookback_days must be >= 0")
	}
	if tz := c.Schedule.Timezone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("schedule.timezone: %w", err)
		}
	}
	for _, f := range []struct{ path, raw string }{
		{"newsletter.timeout", c.Newsletter.Timeout},
		{"ledger.busy_timeout", c.Ledger.BusyTimeout},
		{"schedule.pause_between_dates", c.Schedule.PauseBetweenDates},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	return nil
}
