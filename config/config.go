// Package config loads all runtime settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment
// variables.
type Config struct {
	Server   ServerConfig
	Feed     FeedConfig
	Catalog  CatalogConfig
	Registry RegistryConfig
	Email    EmailConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	// BaseURL is the public URL used in verify and unsubscribe links.
	BaseURL string `envconfig:"BASE_URL" default:"http://localhost:8080"`
}

// FeedConfig holds the upstream feed endpoints and cadence.
type FeedConfig struct {
	StockURL       string        `envconfig:"FEED_STOCK_URL" default:"https://growagardenapi.vercel.app/api/stock/GetStock"`
	WeatherURL     string        `envconfig:"FEED_WEATHER_URL" default:"https://growagardenapi.vercel.app/api/GetWeather"`
	StreamURL      string        `envconfig:"FEED_STREAM_URL" default:"wss://websocket.joshlei.com/growagarden"`
	StreamEnabled  bool          `envconfig:"FEED_STREAM_ENABLED" default:"true"`
	PollInterval   time.Duration `envconfig:"FEED_POLL_INTERVAL" default:"15s"`
	ReconnectDelay time.Duration `envconfig:"FEED_RECONNECT_DELAY" default:"5s"`
	FetchTimeout   time.Duration `envconfig:"FEED_FETCH_TIMEOUT" default:"30s"`
}

// CatalogConfig holds item catalog settings.
type CatalogConfig struct {
	URL             string        `envconfig:"CATALOG_URL" default:"https://growagardenapi.vercel.app/api/Item-Info"`
	RefreshInterval time.Duration `envconfig:"CATALOG_REFRESH_INTERVAL" default:"6h"`

	CacheType     string `envconfig:"CATALOG_CACHE_TYPE" default:"memory"` // memory or redis
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// RedisAddr returns the Redis address in host:port format.
func (c *CatalogConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// RegistryConfig holds subscription registry settings.
type RegistryConfig struct {
	// Mode is "verify" (email ownership proven by token before confirm)
	// or "direct" (subscribe confirms immediately).
	Mode          string        `envconfig:"REGISTRY_MODE" default:"verify"`
	SweepInterval time.Duration `envconfig:"REGISTRY_SWEEP_INTERVAL" default:"1h"`
}

// EmailConfig holds mail provider selection and credentials.
type EmailConfig struct {
	// Provider is gmail, brevo, postmark, or mock.
	Provider string `envconfig:"EMAIL_PROVIDER" default:"mock"`
	From     string `envconfig:"EMAIL_FROM" default:"garden-notifier@localhost"`

	GmailCredentialsJSON string `envconfig:"GMAIL_CREDENTIALS_JSON" default:""`
	BrevoAPIKey          string `envconfig:"BREVO_API_KEY" default:""`
	PostmarkServerToken  string `envconfig:"POSTMARK_SERVER_TOKEN" default:""`
	PostmarkAccountToken string `envconfig:"POSTMARK_ACCOUNT_TOKEN" default:""`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from the environment, with .env as a fallback
// for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Registry.Mode {
	case "verify", "direct":
	default:
		return fmt.Errorf("invalid REGISTRY_MODE %q (want verify or direct)", c.Registry.Mode)
	}
	switch c.Email.Provider {
	case "gmail", "brevo", "postmark", "mock":
	default:
		return fmt.Errorf("invalid EMAIL_PROVIDER %q", c.Email.Provider)
	}
	switch c.Catalog.CacheType {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid CATALOG_CACHE_TYPE %q (want memory or redis)", c.Catalog.CacheType)
	}
	return nil
}
