package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/terra-clan/ballot-kiosk/internal/models"
)

// Permissions granted to administrator keys
const (
	PermResultsRead   = "results:read"
	PermSettingsRead  = "settings:read"
	PermSettingsWrite = "settings:write"
)

// Config holds all configuration for ballot-kiosk
type Config struct {
	Server   ServerConfig
	Tally    TallyConfig
	Poll     PollConfig
	Catalog  CatalogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Results  ResultsConfig
	Admin    AdminConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// TallyConfig holds the remote tally gateway configuration
type TallyConfig struct {
	BaseURL string
	Timeout time.Duration
}

// PollConfig identifies the poll and how often its window is checked
type PollConfig struct {
	ID             string
	StatusInterval time.Duration
}

// CatalogConfig holds the category and people data sources
type CatalogConfig struct {
	CategoriesPath string
	PeoplePath     string
}

// DatabaseConfig holds PostgreSQL configuration. An empty DSN keeps
// settings in memory.
type DatabaseConfig struct {
	DSN           string
	MigrationsDir string
}

// RedisConfig holds Redis configuration. An empty address caches results
// in memory.
type RedisConfig struct {
	Address  string
	Password string
}

// ResultsConfig holds the administrator results view configuration
type ResultsConfig struct {
	GatewayURL string
	CacheTTL   time.Duration
}

// AdminConfig holds administrator API keys
type AdminConfig struct {
	APIKey        string
	ResultsAPIKey string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	tallyURL := getEnv("TALLY_BASE_URL", "")

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Tally: TallyConfig{
			BaseURL: tallyURL,
			Timeout: getEnvAsDuration("TALLY_TIMEOUT", 15*time.Second),
		},
		Poll: PollConfig{
			ID:             getEnv("POLL_ID", "2026-awards"),
			StatusInterval: getEnvAsDuration("POLL_STATUS_INTERVAL", 30*time.Second),
		},
		Catalog: CatalogConfig{
			CategoriesPath: getEnv("CATEGORIES_PATH", "./data/categories.json"),
			PeoplePath:     getEnv("PEOPLE_PATH", "./data/people.json"),
		},
		Database: DatabaseConfig{
			DSN:           getEnv("DATABASE_DSN", ""),
			MigrationsDir: getEnv("MIGRATIONS_DIR", ""),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Results: ResultsConfig{
			GatewayURL: getEnv("RESULTS_GATEWAY_URL", tallyURL),
			CacheTTL:   getEnvAsDuration("RESULTS_CACHE_TTL", 15*time.Second),
		},
		Admin: AdminConfig{
			APIKey:        getEnv("ADMIN_API_KEY", ""),
			ResultsAPIKey: getEnv("RESULTS_API_KEY", ""),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Tally.BaseURL == "" {
		return fmt.Errorf("tally base url is required")
	}
	if err := validateURL(c.Tally.BaseURL); err != nil {
		return fmt.Errorf("invalid tally base url: %w", err)
	}
	if c.Results.GatewayURL != "" {
		if err := validateURL(c.Results.GatewayURL); err != nil {
			return fmt.Errorf("invalid results gateway url: %w", err)
		}
	}

	if strings.TrimSpace(c.Poll.ID) == "" {
		return fmt.Errorf("poll id is required")
	}

	if c.Catalog.CategoriesPath == "" || c.Catalog.PeoplePath == "" {
		return fmt.Errorf("categories and people paths are required")
	}

	if c.Tally.Timeout <= 0 || c.Poll.StatusInterval <= 0 {
		return fmt.Errorf("tally timeout and status interval must be positive")
	}

	if c.Admin.APIKey != "" && c.Admin.APIKey == c.Admin.ResultsAPIKey {
		return fmt.Errorf("admin and results api keys must differ")
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
}

// Clients returns the administrator API clients derived from the
// configured keys
func (c *Config) Clients() []models.ApiClient {
	var clients []models.ApiClient
	if c.Admin.APIKey != "" {
		clients = append(clients, models.ApiClient{
			Name:        "admin",
			ApiKey:      c.Admin.APIKey,
			Permissions: []string{"*"},
		})
	}
	if c.Admin.ResultsAPIKey != "" {
		clients = append(clients, models.ApiClient{
			Name:        "results-viewer",
			ApiKey:      c.Admin.ResultsAPIKey,
			Permissions: []string{PermResultsRead, PermSettingsRead},
		})
	}
	return clients
}

// LogLevel returns the configured slog level
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an absolute http(s) url", raw)
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
