package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(tt *testing.T) {
		cfg, err := Load("")
		require.NoError(tt, err)
		assert.Equal(tt, ":8000", cfg.Server.Address)
		assert.Equal(tt, DriverMemory, cfg.Store.Driver)
		assert.Equal(tt, "localhost:6379", cfg.Redis.Addr)
		assert.Equal(tt, 10, cfg.Crawler.BatchSize)
		assert.Equal(tt, 15*time.Second, cfg.Crawler.AssetTimeout)
		assert.Equal(tt, 30*time.Second, cfg.Crawler.RootTimeout)
		assert.Equal(tt, int64(10<<20), cfg.Crawler.MaxResponseBytes)
		assert.Equal(tt, int64(20<<20), cfg.Crawler.MaxRootBytes)
		assert.Equal(tt, 2048, cfg.Crawler.MaxURLLength)
		assert.Equal(tt, "info", cfg.Log.Level)
	})

	t.Run("file and environment", func(tt *testing.T) {
		path := filepath.Join(tt.TempDir(), "assetcrawlr.yaml")
		require.NoError(tt, os.WriteFile(path, []byte(`
server:
  address: ":9090"
store:
  driver: redis
crawler:
  batch_size: 4
  root_timeout: 5s
`), 0o600))
		tt.Setenv("ASSETCRAWLR_CRAWLER_BATCH_SIZE", "6")
		tt.Setenv("ASSETCRAWLR_LOG_LEVEL", "debug")

		cfg, err := Load(path)
		require.NoError(tt, err)
		assert.Equal(tt, ":9090", cfg.Server.Address)
		assert.Equal(tt, DriverRedis, cfg.Store.Driver)
		assert.Equal(tt, 6, cfg.Crawler.BatchSize)
		assert.Equal(tt, 5*time.Second, cfg.Crawler.RootTimeout)
		assert.Equal(tt, "debug", cfg.Log.Level)

		cc := cfg.AssetCrawler()
		assert.Equal(tt, 6, cc.BatchSize)
		assert.Equal(tt, 5*time.Second, cc.RootTimeout)
		assert.Equal(tt, cfg.Crawler.UserAgent, cc.UserAgent)
	})

	t.Run("missing explicit file", func(tt *testing.T) {
		_, err := Load(filepath.Join(tt.TempDir(), "nope.yaml"))
		assert.Error(tt, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := valid()
	cfg.Store.Driver = "sqlite"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Store.Driver = DriverPostgres
	assert.Error(t, cfg.Validate())
	cfg.Store.DSN = "postgres://localhost/assetcrawlr"
	assert.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.Crawler.BatchSize = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Crawler.RootTimeout = 0
	assert.Error(t, cfg.Validate())
}
