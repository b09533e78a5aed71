package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort              = 8080
	defaultBaseURL           = "http://localhost:8000"
	defaultRequestTimeout    = 10 * time.Second
	defaultPollInterval      = 3 * time.Second
	defaultMaxPollDuration   = 30 * time.Minute
	defaultSelectionTimeout  = 3 * time.Minute
	defaultActionTimeout     = 10 * time.Minute
	defaultMaxActiveSessions = 50
	defaultLogLevel          = "info"
)

// Environment variables that override the file.
const (
	EnvToken         = "DISCORD_BOT_TOKEN"
	EnvGuildID       = "DISCORD_GUILD_ID"
	EnvAPIBaseURL    = "DLER_API_BASE_URL"
	EnvPublicBaseURL = "DLER_PUBLIC_BASE_URL"
	EnvLogLevel      = "DLER_LOG_LEVEL"
)

var ErrMissingToken = errors.New("discord token is not configured")

// Config describes runtime configuration for the bot.
type Config struct {
	Discord           Discord       `yaml:"discord"`
	JobService        JobService    `yaml:"job_service"`
	HTTP              HTTP          `yaml:"http"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	MaxPollDuration   time.Duration `yaml:"max_poll_duration"`
	SelectionTimeout  time.Duration `yaml:"selection_timeout"`
	ActionTimeout     time.Duration `yaml:"action_timeout"`
	MaxActiveSessions int           `yaml:"max_active_sessions"`
	LogLevel          string        `yaml:"log_level"`
}

type Discord struct {
	Token   string `yaml:"token"`
	GuildID string `yaml:"guild_id"`
	// RemoveCommands unregisters the slash command on shutdown.
	RemoveCommands bool `yaml:"remove_commands"`
}

type JobService struct {
	BaseURL        string        `yaml:"base_url"`
	PublicBaseURL  string        `yaml:"public_base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type HTTP struct {
	// Port of the ops API. Zero disables it.
	Port int `yaml:"port"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		JobService: JobService{
			BaseURL:        defaultBaseURL,
			RequestTimeout: defaultRequestTimeout,
		},
		HTTP:              HTTP{Port: defaultPort},
		PollInterval:      defaultPollInterval,
		MaxPollDuration:   defaultMaxPollDuration,
		SelectionTimeout:  defaultSelectionTimeout,
		ActionTimeout:     defaultActionTimeout,
		MaxActiveSessions: defaultMaxActiveSessions,
		LogLevel:          defaultLogLevel,
	}
}

// Load reads YAML config from the provided path and applies the environment
// overlay. A missing or empty file yields defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) > 0 {
		if err := yaml.Unmarshal(fileData, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml: %w", err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&c.Discord.Token, EnvToken)
	set(&c.Discord.GuildID, EnvGuildID)
	set(&c.JobService.BaseURL, EnvAPIBaseURL)
	set(&c.JobService.PublicBaseURL, EnvPublicBaseURL)
	set(&c.LogLevel, EnvLogLevel)
}

func (c *Config) normalize() {
	c.JobService.BaseURL = strings.TrimRight(strings.TrimSpace(c.JobService.BaseURL), "/")
	c.JobService.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.JobService.PublicBaseURL), "/")
	if c.JobService.BaseURL == "" {
		c.JobService.BaseURL = defaultBaseURL
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
}

// Validate checks values that have no usable fallback.
func (c Config) Validate() error {
	if err := checkBaseURL("job_service.base_url", c.JobService.BaseURL); err != nil {
		return err
	}
	if c.JobService.PublicBaseURL != "" {
		if err := checkBaseURL("job_service.public_base_url", c.JobService.PublicBaseURL); err != nil {
			return err
		}
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"job_service.request_timeout", c.JobService.RequestTimeout},
		{"poll_interval", c.PollInterval},
		{"selection_timeout", c.SelectionTimeout},
		{"action_timeout", c.ActionTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("invalid %s: %s (must be > 0)", d.name, d.d)
		}
	}
	if c.MaxPollDuration < 0 {
		return fmt.Errorf("invalid max_poll_duration: %s (must be >= 0)", c.MaxPollDuration)
	}
	if c.MaxActiveSessions < 1 {
		return fmt.Errorf("invalid max_active_sessions: %d (must be >= 1)", c.MaxActiveSessions)
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http.port: %d", c.HTTP.Port)
	}
	return nil
}

// RequireToken reports ErrMissingToken when no bot token is configured.
func (c Config) RequireToken() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("%w: set discord.token or %s", ErrMissingToken, EnvToken)
	}
	return nil
}

func checkBaseURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s: %q (must be an absolute http(s) URL)", name, raw)
	}
	return nil
}
