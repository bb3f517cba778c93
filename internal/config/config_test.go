package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://steamcommunity.com", cfg.Crawler.CommunityBaseURL)
	assert.Equal(t, "https://store.steampowered.com", cfg.Crawler.StoreBaseURL)
	assert.Equal(t, 10, cfg.Crawler.MaxPageFails)
	assert.Equal(t, "review_fails", cfg.Crawler.FailDumpDir)
	assert.Equal(t, 1*time.Second, cfg.Crawler.RateLimit)
	assert.Equal(t, "storecrawl", cfg.Database.DBName)
	assert.Equal(t, 100*time.Millisecond, cfg.News.Pause)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CRAWLER_MAX_PAGE_FAILS", "3")
	t.Setenv("CRAWLER_RATE_LIMIT", "250ms")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Crawler.MaxPageFails)
	assert.Equal(t, 250*time.Millisecond, cfg.Crawler.RateLimit)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"zero retry budget", func(c *Config) { c.Crawler.MaxPageFails = 0 }, true},
		{"negative rate limit", func(c *Config) { c.Crawler.RateLimit = -time.Second }, true},
		{"missing database host", func(c *Config) { c.Database.Host = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
