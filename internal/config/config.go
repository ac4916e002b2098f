package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported chat platforms.
const (
	PlatformDiscord  = "discord"
	PlatformTelegram = "telegram"
)

// Config holds all configuration for indexcast.
type Config struct {
	Platform string `mapstructure:"platform"`

	// Platform credentials. BotToken applies to whichever platform is selected
	// and is overridden by the platform-specific token.
	BotToken      string `mapstructure:"bot_token"`
	DiscordToken  string `mapstructure:"discord_token"`
	TelegramToken string `mapstructure:"telegram_token"`

	// Destinations is parsed from the comma-separated DESTINATIONS value
	// (or a YAML list) by Load.
	Destinations []string `mapstructure:"-"`

	// Index being reported
	Symbol       string `mapstructure:"symbol"`
	IndexName    string `mapstructure:"index_name"`
	CurrencyUnit string `mapstructure:"currency_unit"`
	LookbackDays int    `mapstructure:"lookback_days"`

	// Base URLs for API endpoints (configurable for testing)
	YahooBaseURL    string `mapstructure:"yahoo_base_url"`
	TelegramBaseURL string `mapstructure:"telegram_base_url"`

	// Command responder
	CommandPrefix string `mapstructure:"command_prefix"`
	CommandName   string `mapstructure:"command_name"`

	ReadyTimeout time.Duration `mapstructure:"ready_timeout"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	PushgatewayURL string `mapstructure:"pushgateway_url"`
	PushJob        string `mapstructure:"push_job"`
}

// Token returns the credential for the selected platform.
func (c *Config) Token() string {
	switch c.Platform {
	case PlatformDiscord:
		if c.DiscordToken != "" {
			return c.DiscordToken
		}
	case PlatformTelegram:
		if c.TelegramToken != "" {
			return c.TelegramToken
		}
	}
	return c.BotToken
}

// Load reads configuration from environment variables and optional config file.
// Environment variables take precedence over config file values.
//
// Expected environment variables:
//   - PLATFORM (discord or telegram, defaults to discord)
//   - DISCORD_TOKEN, TELEGRAM_TOKEN or BOT_TOKEN
//   - DESTINATIONS (comma-separated channel identifiers)
//   - SYMBOL, INDEX_NAME, CURRENCY_UNIT, LOOKBACK_DAYS
//   - YAHOO_BASE_URL, TELEGRAM_BASE_URL (optional, default to production)
//   - COMMAND_PREFIX, COMMAND_NAME, READY_TIMEOUT
//   - LOG_LEVEL, LOG_FORMAT
//   - PUSHGATEWAY_URL, PUSH_JOB (optional)
func Load() (*Config, error) {
	v := viper.New()

	v.AutomaticEnv()

	v.SetDefault("platform", PlatformDiscord)
	v.SetDefault("symbol", "^N225")
	v.SetDefault("index_name", "Nikkei 225")
	v.SetDefault("currency_unit", "yen")
	v.SetDefault("lookback_days", 7)
	v.SetDefault("yahoo_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("telegram_base_url", "")
	v.SetDefault("command_prefix", "!")
	v.SetDefault("command_name", "latest_nikkei225")
	v.SetDefault("ready_timeout", "30s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("push_job", "indexcast")

	// Optionally read from config file if it exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.indexcast")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for _, key := range []string{
		"platform", "bot_token", "discord_token", "telegram_token", "destinations",
		"symbol", "index_name", "currency_unit", "lookback_days",
		"yahoo_base_url", "telegram_base_url",
		"command_prefix", "command_name", "ready_timeout",
		"log_level", "log_format", "pushgateway_url", "push_job",
	} {
		v.BindEnv(key, strings.ToUpper(key))
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Platform = strings.ToLower(strings.TrimSpace(config.Platform))
	config.Destinations = destinationsFrom(v.Get("destinations"))

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate reports every missing or invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	switch c.Platform {
	case PlatformDiscord, PlatformTelegram:
		if c.Token() == "" {
			problems = append(problems, fmt.Sprintf("%s_TOKEN (or BOT_TOKEN) is required", strings.ToUpper(c.Platform)))
		}
	default:
		problems = append(problems, fmt.Sprintf("PLATFORM must be %q or %q, got %q", PlatformDiscord, PlatformTelegram, c.Platform))
	}
	if strings.TrimSpace(c.Symbol) == "" {
		problems = append(problems, "SYMBOL must not be empty")
	}
	if c.LookbackDays < 2 {
		problems = append(problems, fmt.Sprintf("LOOKBACK_DAYS must be at least 2, got %d", c.LookbackDays))
	}
	if c.ReadyTimeout <= 0 {
		problems = append(problems, "READY_TIMEOUT must be positive")
	}
	if strings.TrimSpace(c.CommandName) == "" {
		problems = append(problems, "COMMAND_NAME must not be empty")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ParseDestinations splits a delimiter-separated list of channel identifiers.
// Items are trimmed and empty items dropped; order and duplicates are kept.
func ParseDestinations(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// destinationsFrom accepts either the env string form or a YAML list.
func destinationsFrom(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return ParseDestinations(val)
	case []string:
		return ParseDestinations(strings.Join(val, ","))
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
		return ParseDestinations(strings.Join(parts, ","))
	default:
		return ParseDestinations(fmt.Sprint(val))
	}
}
