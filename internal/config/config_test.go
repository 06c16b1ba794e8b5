package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TALLY_BASE_URL", "https://tally.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "2026-awards", cfg.Poll.ID)
	assert.Equal(t, 30*time.Second, cfg.Poll.StatusInterval)
	assert.Equal(t, "./data/categories.json", cfg.Catalog.CategoriesPath)
	assert.Equal(t, "https://tally.example.com", cfg.Results.GatewayURL)
	assert.Empty(t, cfg.Database.DSN)
	assert.Empty(t, cfg.Redis.Address)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
	assert.Empty(t, cfg.Clients())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TALLY_BASE_URL", "http://localhost:8787")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("POLL_ID", "2027-awards")
	t.Setenv("POLL_STATUS_INTERVAL", "5s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("RESULTS_GATEWAY_URL", "https://results.example")
	t.Setenv("ADMIN_API_KEY", "admin-secret-key")
	t.Setenv("RESULTS_API_KEY", "viewer-secret-key")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "2027-awards", cfg.Poll.ID)
	assert.Equal(t, 5*time.Second, cfg.Poll.StatusInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "https://results.example", cfg.Results.GatewayURL)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())

	clients := cfg.Clients()
	require.Len(t, clients, 2)
	assert.True(t, clients[0].HasPermission(PermSettingsWrite))
	assert.True(t, clients[1].HasPermission(PermResultsRead))
	assert.False(t, clients[1].HasPermission(PermSettingsWrite))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  ServerConfig{Port: 8080},
			Tally:   TallyConfig{BaseURL: "https://tally.example.com", Timeout: time.Second},
			Poll:    PollConfig{ID: "p", StatusInterval: time.Second},
			Catalog: CatalogConfig{CategoriesPath: "c.json", PeoplePath: "p.json"},
			Log:     LogConfig{Level: "info"},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"missing tally url", func(c *Config) { c.Tally.BaseURL = "" }},
		{"relative tally url", func(c *Config) { c.Tally.BaseURL = "tally.example.com" }},
		{"bad results url", func(c *Config) { c.Results.GatewayURL = "ftp://x" }},
		{"empty poll id", func(c *Config) { c.Poll.ID = "  " }},
		{"missing people path", func(c *Config) { c.Catalog.PeoplePath = "" }},
		{"zero interval", func(c *Config) { c.Poll.StatusInterval = 0 }},
		{"shared keys", func(c *Config) { c.Admin.APIKey = "same"; c.Admin.ResultsAPIKey = "same" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
