// Path: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"media-search/internal/validation"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	API      APIConfig
	Search   SearchConfig
	Log      LogConfig
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	StoreTTL        time.Duration `mapstructure:"store_ttl"`
}

// DatabaseConfig holds the session store settings.
// An empty URI keeps sessions in memory only.
type DatabaseConfig struct {
	URI        string `mapstructure:"uri"`
	Name       string `mapstructure:"name" validate:"required_with=URI"`
	Collection string `mapstructure:"collection" validate:"required_with=URI"`
}

// APIConfig holds settings for the upstream media search API.
type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RetryLimit        int           `mapstructure:"retry_limit" validate:"gte=0"`
	RetryStatusCodes  []int         `mapstructure:"retry_status_codes"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gt=0"`
	BurstLimit        int           `mapstructure:"burst_limit" validate:"gt=0"`
	BreakerThreshold  int           `mapstructure:"breaker_threshold" validate:"gt=0"`
	BreakerCooldown   time.Duration `mapstructure:"breaker_cooldown"`
	ThumbnailBaseURL  string        `mapstructure:"thumbnail_base_url"`
}

// SearchConfig holds the defaults a new search session starts with.
type SearchConfig struct {
	DefaultPageSize  int    `mapstructure:"default_page_size" validate:"gt=0"`
	PageSizes        []int  `mapstructure:"page_sizes" validate:"min=1,dive,gt=0"`
	DefaultSortOrder string `mapstructure:"default_sort_order" validate:"oneof=asc desc"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json console"`
}

// Load loads the configuration from file and environment variables.
// configFile may be empty, in which case ./configs/config.yaml is tried.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("SERVER.PORT", "8090")
	v.SetDefault("SERVER.SHUTDOWN_TIMEOUT", 5*time.Second)
	v.SetDefault("SERVER.SESSION_TTL", 30*time.Minute)
	v.SetDefault("SERVER.STORE_TTL", 7*24*time.Hour)
	v.SetDefault("DATABASE.URI", "")
	v.SetDefault("DATABASE.NAME", "media-search")
	v.SetDefault("DATABASE.COLLECTION", "sessions")
	v.SetDefault("API.BASE_URL", "http://localhost:8080/api/v1")
	v.SetDefault("API.TIMEOUT", 10*time.Second)
	v.SetDefault("API.RETRY_LIMIT", 2)
	v.SetDefault("API.RETRY_STATUS_CODES", []int{408, 413, 429, 500, 502, 503, 504})
	v.SetDefault("API.RETRY_BACKOFF", 300*time.Millisecond)
	v.SetDefault("API.REQUESTS_PER_SECOND", 10)
	v.SetDefault("API.BURST_LIMIT", 20)
	v.SetDefault("API.BREAKER_THRESHOLD", 5)
	v.SetDefault("API.BREAKER_COOLDOWN", 30*time.Second)
	v.SetDefault("API.THUMBNAIL_BASE_URL", "")
	v.SetDefault("SEARCH.DEFAULT_PAGE_SIZE", 20)
	v.SetDefault("SEARCH.PAGE_SIZES", []int{5, 10, 15, 20, 50})
	v.SetDefault("SEARCH.DEFAULT_SORT_ORDER", "asc")
	v.SetDefault("LOG.LEVEL", "info")
	v.SetDefault("LOG.FORMAT", "json")

	// Load from config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Load from environment variables, e.g. API_BASE_URL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, size := range c.Search.PageSizes {
		if size == c.Search.DefaultPageSize {
			return nil
		}
	}
	return fmt.Errorf("invalid config: default page size %d is not one of %v",
		c.Search.DefaultPageSize, c.Search.PageSizes)
}
