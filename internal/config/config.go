// Package config loads the application configuration from YAML, with
// environment variables overriding secrets so credentials stay out of the
// config file.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the top-level application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Secrets       SecretsConfig       `yaml:"secrets"`
	WordPress     []SiteCreds         `yaml:"wordpress"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// APIToken guards the pipeline endpoints; empty disables auth.
	APIToken string `yaml:"api_token"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// SchedulerConfig holds the cron trigger settings.
type SchedulerConfig struct {
	// Cron is a standard 5-field cron expression; empty disables the
	// scheduler.
	Cron string `yaml:"cron"`
}

// SecretsConfig holds API credentials for the external collaborators.
type SecretsConfig struct {
	StockNewsToken  string `yaml:"stocknews_token"`
	JinaAPIKey      string `yaml:"jina_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	GoogleCSEKey    string `yaml:"google_cse_key"`
	GoogleCSECX     string `yaml:"google_cse_cx"`
}

// NotificationsConfig holds operator notification channels. Unset
// channels are simply not registered.
type NotificationsConfig struct {
	SlackWebhookURL  string `yaml:"slack_webhook_url"`
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
}

// SiteCreds holds one WordPress site's application-password login, keyed
// by site slug.
type SiteCreds struct {
	Slug        string `yaml:"slug"`
	Username    string `yaml:"username"`
	AppPassword string `yaml:"app_password"`
}

// defaults returns a Config populated with sensible default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
	}
}

// Load reads a YAML configuration file at path and returns a Config with
// environment overrides applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadDefault tries to load "config.yaml" from the current directory.
// If the file does not exist, it returns defaults with environment
// overrides. Any other error (permission denied, malformed YAML) is
// returned.
func LoadDefault() (*Config, error) {
	cfg, err := Load("config.yaml")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = defaults()
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides secrets and the database URL from the environment.
func (c *Config) applyEnv() {
	setIfPresent(&c.Database.URL, "DATABASE_URL")
	setIfPresent(&c.Server.APIToken, "PIPELINE_API_TOKEN")
	setIfPresent(&c.Scheduler.Cron, "PIPELINE_CRON")
	setIfPresent(&c.Secrets.StockNewsToken, "STOCKNEWS_API_TOKEN")
	setIfPresent(&c.Secrets.JinaAPIKey, "JINA_API_KEY")
	setIfPresent(&c.Secrets.OpenAIAPIKey, "OPENAI_API_KEY")
	setIfPresent(&c.Secrets.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setIfPresent(&c.Secrets.GoogleCSEKey, "GOOGLE_CSE_API_KEY")
	setIfPresent(&c.Secrets.GoogleCSECX, "GOOGLE_CSE_CX")
	setIfPresent(&c.Notifications.SlackWebhookURL, "SLACK_WEBHOOK_URL")
	setIfPresent(&c.Notifications.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	setIfPresent(&c.Notifications.TelegramChatID, "TELEGRAM_CHAT_ID")
}

func setIfPresent(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
