package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Crawler  CrawlerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	News     NewsConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type CrawlerConfig struct {
	// CommunityBaseURL is the root of the community site hosting review feeds.
	CommunityBaseURL string
	// StoreBaseURL is the root of the storefront hosting product pages.
	StoreBaseURL string
	RateLimit    time.Duration
	FetchTimeout time.Duration
	MaxPageFails int
	// FailDumpDir receives raw pages whose extraction partially failed.
	FailDumpDir string
	// UnsuccessfulFile collects product ids whose feeds were abandoned.
	UnsuccessfulFile string
	UserAgent        string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type NewsConfig struct {
	APIBaseURL string
	APIKey     string
	Pause      time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Crawler: CrawlerConfig{
			CommunityBaseURL: getEnvOrDefault("CRAWLER_COMMUNITY_BASE_URL", "https://steamcommunity.com"),
			StoreBaseURL:     getEnvOrDefault("CRAWLER_STORE_BASE_URL", "https://store.steampowered.com"),
			RateLimit:        getDurationOrDefault("CRAWLER_RATE_LIMIT", 1*time.Second),
			FetchTimeout:     getDurationOrDefault("CRAWLER_FETCH_TIMEOUT", 30*time.Second),
			MaxPageFails:     getIntOrDefault("CRAWLER_MAX_PAGE_FAILS", 10),
			FailDumpDir:      getEnvOrDefault("CRAWLER_FAIL_DUMP_DIR", "review_fails"),
			UnsuccessfulFile: getEnvOrDefault("CRAWLER_UNSUCCESSFUL_FILE", "unsuccessfully_processed.txt"),
			UserAgent:        getEnvOrDefault("CRAWLER_USER_AGENT", "storecrawl"),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "storecrawl"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		News: NewsConfig{
			APIBaseURL: getEnvOrDefault("NEWS_API_BASE_URL", "https://api.steampowered.com"),
			APIKey:     getEnvOrDefault("NEWS_API_KEY", ""),
			Pause:      getDurationOrDefault("NEWS_PAUSE", 100*time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Crawler.MaxPageFails < 1 {
		return fmt.Errorf("CRAWLER_MAX_PAGE_FAILS must be at least 1")
	}

	if c.Crawler.RateLimit < 0 {
		return fmt.Errorf("CRAWLER_RATE_LIMIT cannot be negative")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST must not be empty")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
