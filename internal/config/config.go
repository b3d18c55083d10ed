// Package config loads fenrir's configuration from environment variables
// prefixed FENRIR_, an optional YAML file, and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds the venue's runtime options.
type Config struct {
	EnableLiquidity     bool    `mapstructure:"enable_liquidity"`
	FallbackPrice       string  `mapstructure:"fallback_price"`
	RefreshIntervalMS   int     `mapstructure:"refresh_interval_ms"`
	PriceCacheTTLSecs   int     `mapstructure:"price_cache_ttl_seconds"`
	APIKey              string  `mapstructure:"api_key"`
	QuoteBaseURL        string  `mapstructure:"quote_base_url"`
	ProfileBaseURL      string  `mapstructure:"profile_base_url"`
	WireListenAddr      string  `mapstructure:"wire_listen_addr"`
	InspectListenAddr   string  `mapstructure:"inspect_listen_addr"`
}

// Load reads configuration from an optional YAML file at path (skipped if
// path is empty; any read error other than viper.ConfigFileNotFoundError is
// returned) layered under FENRIR_-prefixed environment variables and the
// defaults below.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("enable_liquidity", true)
	v.SetDefault("fallback_price", "100.00")
	v.SetDefault("refresh_interval_ms", 5000)
	v.SetDefault("price_cache_ttl_seconds", 30)
	v.SetDefault("api_key", "")
	v.SetDefault("quote_base_url", "")
	v.SetDefault("profile_base_url", "")
	v.SetDefault("wire_listen_addr", ":9090")
	v.SetDefault("inspect_listen_addr", ":8080")

	v.SetEnvPrefix("FENRIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// FallbackPriceDecimal parses FallbackPrice, returning 100.00 if the
// configured value is malformed.
func (c *Config) FallbackPriceDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(c.FallbackPrice)
	if err != nil {
		return decimal.New(10000, -2)
	}
	return d
}

// RefreshInterval returns RefreshIntervalMS as a time.Duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMS) * time.Millisecond
}

// PriceCacheTTL returns PriceCacheTTLSecs as a time.Duration.
func (c *Config) PriceCacheTTL() time.Duration {
	return time.Duration(c.PriceCacheTTLSecs) * time.Second
}

// HasCredentials reports whether api-key is set. An empty key forces
// internal/refprice and internal/liquidity to skip HTTP entirely and fall
// back to defaults instead.
func (c *Config) HasCredentials() bool {
	return c.APIKey != ""
}
