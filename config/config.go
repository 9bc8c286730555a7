// Package config loads assetcrawlr settings from an optional YAML file, a
// .env file and ASSETCRAWLR_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emilyzhang/assetcrawlr/assetcrawler"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

const envPrefix = "ASSETCRAWLR"

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr string `mapstructure:"addr"`
	// TTL of extraction records; zero keeps them forever.
	TTL time.Duration `mapstructure:"ttl"`
}

type CrawlerConfig struct {
	BatchSize        int           `mapstructure:"batch_size"`
	AssetTimeout     time.Duration `mapstructure:"asset_timeout"`
	RootTimeout      time.Duration `mapstructure:"root_timeout"`
	MaxResponseBytes int64         `mapstructure:"max_response_bytes"`
	MaxRootBytes     int64         `mapstructure:"max_root_bytes"`
	MaxURLLength     int           `mapstructure:"max_url_length"`
	MaxPayloadProbes int           `mapstructure:"max_payload_probes"`
	UserAgent        string        `mapstructure:"user_agent"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads the configuration. path names an optional YAML file; when it is
// empty, config.yaml is looked up in the working directory and ./config.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("Unable to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("Unable to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("Unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := assetcrawler.DefaultConfig()
	v.SetDefault("server.address", ":8000")
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.dsn", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.ttl", "0s")
	v.SetDefault("crawler.batch_size", d.BatchSize)
	v.SetDefault("crawler.asset_timeout", d.AssetTimeout.String())
	v.SetDefault("crawler.root_timeout", d.RootTimeout.String())
	v.SetDefault("crawler.max_response_bytes", d.MaxResponseBytes)
	v.SetDefault("crawler.max_root_bytes", d.MaxRootBytes)
	v.SetDefault("crawler.max_url_length", d.MaxURLLength)
	v.SetDefault("crawler.max_payload_probes", d.MaxPayloadProbes)
	v.SetDefault("crawler.user_agent", d.UserAgent)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Validate rejects configurations the application cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverRedis:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Server.Address == "" {
		return errors.New("server.address must not be empty")
	}
	cc := c.Crawler
	if cc.BatchSize <= 0 || cc.MaxURLLength <= 0 || cc.MaxPayloadProbes <= 0 {
		return errors.New("crawler batch_size, max_url_length and max_payload_probes must be positive")
	}
	if cc.MaxResponseBytes <= 0 || cc.MaxRootBytes <= 0 {
		return errors.New("crawler response size limits must be positive")
	}
	if cc.AssetTimeout <= 0 || cc.RootTimeout <= 0 {
		return errors.New("crawler timeouts must be positive")
	}
	return nil
}

// AssetCrawler converts the crawler section for assetcrawler.New.
func (c *Config) AssetCrawler() assetcrawler.Config {
	return assetcrawler.Config{
		BatchSize:        c.Crawler.BatchSize,
		AssetTimeout:     c.Crawler.AssetTimeout,
		RootTimeout:      c.Crawler.RootTimeout,
		MaxResponseBytes: c.Crawler.MaxResponseBytes,
		MaxRootBytes:     c.Crawler.MaxRootBytes,
		MaxURLLength:     c.Crawler.MaxURLLength,
		MaxPayloadProbes: c.Crawler.MaxPayloadProbes,
		UserAgent:        c.Crawler.UserAgent,
	}
}
