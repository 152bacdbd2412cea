package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "CRM"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Trello   TrelloConfig   `mapstructure:"trello"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Google   GoogleConfig   `mapstructure:"google"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type TrelloConfig struct {
	APIBaseURL     string        `mapstructure:"api_base_url"`
	CallbackURL    string        `mapstructure:"callback_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RetryAttempts  uint          `mapstructure:"retry_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
}

type WebhookConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AuthClient binds a bearer token to the tenant it acts for.
type AuthClient struct {
	TenantID string `mapstructure:"tenant_id"`
	Token    string `mapstructure:"token"`
}

type AuthConfig struct {
	Clients []AuthClient `mapstructure:"clients"`
}

type GoogleConfig struct {
	Calendar       CalendarConfig `mapstructure:"calendar"`
	ServiceAccount map[string]any `mapstructure:"service_account"`
}

type CalendarConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	CalendarID string `mapstructure:"calendar_id"`
	TimeZone   string `mapstructure:"time_zone"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.path", "crm.db")
	v.SetDefault("log.level", "")
	v.SetDefault("trello.api_base_url", "https://api.trello.com/1")
	v.SetDefault("trello.callback_url", "")
	v.SetDefault("trello.request_timeout", 15*time.Second)
	v.SetDefault("trello.retry_attempts", 3)
	v.SetDefault("trello.retry_delay", 250*time.Millisecond)
	v.SetDefault("webhook.max_concurrent", 10)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("google.calendar.enabled", false)
	v.SetDefault("google.calendar.calendar_id", "")
	v.SetDefault("google.calendar.time_zone", "America/Sao_Paulo")
}

// Load reads config.toml from the given directories (the working directory
// when none are given), then applies CRM_* environment overrides. A missing
// config file is not an error.
func Load(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		zap.L().Debug("No .env file loaded", zap.Error(err))
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		zap.L().Warn("No config.toml found, using defaults and environment")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Webhook.MaxConcurrent < 1 {
		return fmt.Errorf("webhook.max_concurrent must be at least 1, got %d", c.Webhook.MaxConcurrent)
	}
	seen := map[string]bool{}
	for i, client := range c.Auth.Clients {
		if client.TenantID == "" || client.Token == "" {
			return fmt.Errorf("auth.clients[%d] needs both tenant_id and token", i)
		}
		if seen[client.Token] {
			return fmt.Errorf("auth.clients[%d] reuses a token", i)
		}
		seen[client.Token] = true
	}
	if c.Google.Calendar.Enabled {
		if c.Google.Calendar.CalendarID == "" {
			return fmt.Errorf("google.calendar.calendar_id is required when the calendar is enabled")
		}
		if len(c.Google.ServiceAccount) == 0 {
			return fmt.Errorf("google.service_account is required when the calendar is enabled")
		}
	}
	return nil
}

// TenantTokens returns the bearer token -> tenant id lookup.
func (c *Config) TenantTokens() map[string]string {
	tokens := make(map[string]string, len(c.Auth.Clients))
	for _, client := range c.Auth.Clients {
		tokens[client.Token] = client.TenantID
	}
	return tokens
}

// ServiceAccountJSON re-encodes the service account table as the JSON key
// file Google's libraries expect.
func (c *Config) ServiceAccountJSON() ([]byte, error) {
	jsonBytes, err := json.Marshal(c.Google.ServiceAccount)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal service account settings to JSON: %w", err)
	}
	return jsonBytes, nil
}
