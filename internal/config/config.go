package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets from the config file
const (
	EnvTelegramToken  = "TELEGRAM_TOKEN"
	EnvLibrariesIOKey = "LIBRARIES_IO_API_KEY"
	EnvFeedbackChatID = "FEEDBACK_CHAT_ID"
)

// TelegramConfig holds Telegram-specific settings
type TelegramConfig struct {
	Token string `yaml:"token"` // Bot token from @BotFather
}

// LibrariesIOConfig holds settings for the libraries.io search API
type LibrariesIOConfig struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetryTime      time.Duration `yaml:"max_retry_time"`
}

// SearchConfig holds result paging settings
type SearchConfig struct {
	ResultsPerPage int `yaml:"results_per_page"`
}

// Config holds the bot configuration
type Config struct {
	Telegram       TelegramConfig    `yaml:"telegram"`
	LibrariesIO    LibrariesIOConfig `yaml:"libraries_io"`
	Search         SearchConfig      `yaml:"search"`
	FeedbackChatID int64             `yaml:"feedback_chat_id"` // chat receiving /feedback, 0 disables it
	Allowlist      []int64           `yaml:"allowlist"`        // Telegram user IDs allowed to use the bot; empty allows everyone
	LogFile        string            `yaml:"log_file"`         // path to log file
	Debug          bool              `yaml:"debug"`            // enable debug logging
}

// Default values applied by Load
const (
	DefaultBaseURL           = "https://libraries.io/api"
	DefaultResultsPerPage    = 10
	DefaultRequestsPerMinute = 60
	DefaultTimeout           = 30 * time.Second
	DefaultMaxRetryTime      = 15 * time.Second
)

// Load reads and parses the config file from the given path. An empty path
// skips the file and builds the config from defaults and the environment.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvTelegramToken); ok && v != "" {
		c.Telegram.Token = v
	}
	if v, ok := lookup(EnvLibrariesIOKey); ok && v != "" {
		c.LibrariesIO.APIKey = v
	}
	if v, ok := lookup(EnvFeedbackChatID); ok && v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvFeedbackChatID, err)
		}
		c.FeedbackChatID = id
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.LibrariesIO.BaseURL == "" {
		c.LibrariesIO.BaseURL = DefaultBaseURL
	}
	if c.LibrariesIO.RequestsPerMinute == 0 {
		c.LibrariesIO.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if c.LibrariesIO.Timeout == 0 {
		c.LibrariesIO.Timeout = DefaultTimeout
	}
	if c.LibrariesIO.MaxRetryTime == 0 {
		c.LibrariesIO.MaxRetryTime = DefaultMaxRetryTime
	}
	if c.Search.ResultsPerPage == 0 {
		c.Search.ResultsPerPage = DefaultResultsPerPage
	}
}

// Validate checks required settings. The Telegram token is only needed to
// run the bot, so it is checked by RequireTelegram instead.
func (c *Config) Validate() error {
	if c.LibrariesIO.APIKey == "" {
		return fmt.Errorf("libraries_io.api_key is required (or set %s)", EnvLibrariesIOKey)
	}
	if c.Search.ResultsPerPage < 0 {
		return fmt.Errorf("search.results_per_page must be positive")
	}
	if c.LibrariesIO.RequestsPerMinute < 0 {
		return fmt.Errorf("libraries_io.requests_per_minute must be positive")
	}
	return nil
}

// RequireTelegram checks the settings needed to connect to Telegram
func (c *Config) RequireTelegram() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required (or set %s)", EnvTelegramToken)
	}
	return nil
}

// IsAllowed checks if the given Telegram user ID may use the bot
func (c *Config) IsAllowed(userID int64) bool {
	if len(c.Allowlist) == 0 {
		return true
	}
	for _, allowed := range c.Allowlist {
		if allowed == userID {
			return true
		}
	}
	return false
}
