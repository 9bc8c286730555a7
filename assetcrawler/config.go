package assetcrawler

import "time"

// Config tunes the crawler.
type Config struct {
	// BatchSize is the number of assets fetched concurrently per batch.
	BatchSize int
	// AssetTimeout bounds each asset and payload fetch.
	AssetTimeout time.Duration
	// RootTimeout bounds the root page fetch.
	RootTimeout      time.Duration
	MaxResponseBytes int64
	MaxRootBytes     int64
	MaxURLLength     int
	MaxPayloadProbes int
	UserAgent        string
}

// DefaultConfig returns the default crawler configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:        10,
		AssetTimeout:     15 * time.Second,
		RootTimeout:      30 * time.Second,
		MaxResponseBytes: 10 << 20,
		MaxRootBytes:     20 << 20,
		MaxURLLength:     2048,
		MaxPayloadProbes: 10,
		UserAgent:        "assetcrawlr/1.0 (+https://github.com/emilyzhang/assetcrawlr)",
	}
}

// withDefaults fills every unset field from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.AssetTimeout <= 0 {
		c.AssetTimeout = d.AssetTimeout
	}
	if c.RootTimeout <= 0 {
		c.RootTimeout = d.RootTimeout
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = d.MaxResponseBytes
	}
	if c.MaxRootBytes <= 0 {
		c.MaxRootBytes = d.MaxRootBytes
	}
	if c.MaxURLLength <= 0 {
		c.MaxURLLength = d.MaxURLLength
	}
	if c.MaxPayloadProbes <= 0 {
		c.MaxPayloadProbes = d.MaxPayloadProbes
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	return c
}
