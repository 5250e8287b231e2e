// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	shopDomain := cfg.Remotes.Shopify.ShopDomain
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Remotes       RemotesConfig       `yaml:"remotes"`
	Sync          SyncSettings        `yaml:"sync"`
	Storage       StorageConfig       `yaml:"storage"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RemotesConfig holds credentials and endpoints for each remote system.
// Values arrive resolved and ready to use; encryption is owned elsewhere.
type RemotesConfig struct {
	Shopify ShopifyConfig `yaml:"shopify"`
	Books   BooksConfig   `yaml:"books"`
	Woo     WooConfig     `yaml:"woo"`
}

// ShopifyConfig holds storefront API settings
type ShopifyConfig struct {
	ShopDomain     string        `yaml:"shop_domain"`
	AccessToken    string        `yaml:"access_token"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// BooksConfig holds accounting system API settings
type BooksConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// WooConfig holds the optional second storefront settings
type WooConfig struct {
	Enabled        bool          `yaml:"enabled"`
	BaseURL        string        `yaml:"base_url"`
	ConsumerKey    string        `yaml:"consumer_key"`
	ConsumerSecret string        `yaml:"consumer_secret"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Price fallback policies applied when the configured price list has no
// entry for a variant.
const (
	PriceFallbackShopify = "shopify" // use the source system's own price
	PriceFallbackNone    = "none"    // use 0
	PriceFallbackSkip    = "skip"    // abandon the variant entirely
)

// SyncSettings is the explicit settings snapshot passed into each
// component. There are no ambient globals; a config change takes effect
// on the next cycle, when the poller re-reads this struct.
type SyncSettings struct {
	Enabled             bool   `yaml:"enabled"`
	IntervalMinutes     int    `yaml:"interval_minutes"`
	BatchSize           int    `yaml:"batch_size"`
	LookbackMinutes     int    `yaml:"lookback_minutes"`
	MaxRetries          int    `yaml:"max_retries"`
	PriceListID         string `yaml:"price_list_id"`
	PriceFallback       string `yaml:"price_fallback"` // "shopify", "none", or "skip"
	IncludeImages       bool   `yaml:"include_images"`
	IncludeTags         bool   `yaml:"include_tags"`
	IncludeDescriptions bool   `yaml:"include_descriptions"`
	IncludeProductType  bool   `yaml:"include_product_type"`
	OnlyActive          bool   `yaml:"only_active"`
}

// WithDefaults fills in zero-valued settings with their defaults.
func (s SyncSettings) WithDefaults() SyncSettings {
	if s.BatchSize <= 0 {
		s.BatchSize = 5
	}
	if s.MaxRetries <= 0 {
		s.MaxRetries = 3
	}
	if s.PriceFallback == "" {
		s.PriceFallback = PriceFallbackShopify
	}
	return s
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${SHOPIFY_ACCESS_TOKEN})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	return &Config{
		Storage: StorageConfig{
			DatabasePath: getEnv("SYNC_DB_PATH", "storefront_sync.db"),
		},
		Server: ServerConfig{
			Port: getEnvInt("PORT", 8080),
		},
		Remotes: RemotesConfig{
			Shopify: ShopifyConfig{
				ShopDomain:  os.Getenv("SHOPIFY_SHOP_DOMAIN"),
				AccessToken: os.Getenv("SHOPIFY_ACCESS_TOKEN"),
			},
			Books: BooksConfig{
				BaseURL: os.Getenv("BOOKS_BASE_URL"),
				APIKey:  os.Getenv("BOOKS_API_KEY"),
			},
			Woo: WooConfig{
				Enabled:        os.Getenv("WOO_BASE_URL") != "",
				BaseURL:        os.Getenv("WOO_BASE_URL"),
				ConsumerKey:    os.Getenv("WOO_CONSUMER_KEY"),
				ConsumerSecret: os.Getenv("WOO_CONSUMER_SECRET"),
			},
		},
		Sync: SyncSettings{
			Enabled:         getEnv("SYNC_ENABLED", "true") == "true",
			IntervalMinutes: getEnvInt("SYNC_INTERVAL_MINUTES", 15),
			BatchSize:       getEnvInt("SYNC_BATCH_SIZE", 5),
			LookbackMinutes: getEnvInt("SYNC_LOOKBACK_MINUTES", 60),
			MaxRetries:      getEnvInt("SYNC_MAX_RETRIES", 3),
			PriceListID:     os.Getenv("SYNC_PRICE_LIST_ID"),
			PriceFallback:   getEnv("SYNC_PRICE_FALLBACK", PriceFallbackShopify),
			OnlyActive:      getEnv("SYNC_ONLY_ACTIVE", "true") == "true",
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}
