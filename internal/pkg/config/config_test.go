package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullYAML = `
server:
  host: "127.0.0.1"
  port: 8081
  shutdown_timeout: 5s
  max_upload_size: "512 KiB"
  daemon: true
  pid_file: "/tmp/vkparse.pid"
  log_file: "/tmp/vkparse.log"
processing:
  task_timeout: 120s
  task_ttl: 2h
  cache_ttl: 30m
  cache_max_entries: 16
  pool_size: 8
  cleanup_interval: 10m
output:
  delimiter: "\n---\n"
filter:
  max_depth: 2
logging:
  level: "debug"
  format: "text"
`

// partialYAML задает только часть полей, остальные должны остаться по умолчанию.
const partialYAML = `
server:
  port: 9090
logging:
  level: "warn"
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
	return path
}

func TestLoadFromYAML(t *testing.T) {
	t.Run("все секции", func(t *testing.T) {
		path := createTempConfigFile(t, fullYAML)
		cfg := defaultConfig()
		err := loadFromYAML(path, cfg)
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 8081, cfg.Server.Port)
		assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
		assert.Equal(t, "127.0.0.1:8081", cfg.Address())
		assert.True(t, cfg.Server.Daemon)
		assert.Equal(t, "/tmp/vkparse.pid", cfg.Server.PidFile)
		assert.Equal(t, "/tmp/vkparse.log", cfg.Server.LogFile)

		size, err := cfg.Server.MaxUploadBytes()
		require.NoError(t, err)
		assert.Equal(t, int64(512*1024), size)

		assert.Equal(t, 120*time.Second, cfg.Processing.TaskTimeout)
		assert.Equal(t, 2*time.Hour, cfg.Processing.TaskTTL)
		assert.Equal(t, 30*time.Minute, cfg.Processing.CacheTTL)
		assert.Equal(t, 16, cfg.Processing.CacheMaxEntries)
		assert.Equal(t, 8, cfg.Processing.PoolSize)
		assert.Equal(t, 10*time.Minute, cfg.Processing.CleanupInterval)
		assert.Equal(t, "\n---\n", cfg.Output.Delimiter)
		require.NotNil(t, cfg.Filter.DefaultMaxDepth())
		assert.Equal(t, 2, *cfg.Filter.DefaultMaxDepth())
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "text", cfg.Logging.Format)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("частичный файл сохраняет значения по умолчанию", func(t *testing.T) {
		cfg := defaultConfig()
		require.NoError(t, loadFromYAML(createTempConfigFile(t, partialYAML), cfg))

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, DefaultServerHost, cfg.Server.Host)
		assert.Equal(t, DefaultPoolSize, cfg.Processing.PoolSize)
		assert.Equal(t, DefaultCacheMaxEntries, cfg.Processing.CacheMaxEntries)
		assert.Equal(t, DefaultDelimiter, cfg.Output.Delimiter)
		assert.Nil(t, cfg.Filter.DefaultMaxDepth())
	})

	t.Run("отсутствие файла не ошибка", func(t *testing.T) {
		cfg := defaultConfig()
		err := loadFromYAML("non_existent_file.yml", cfg)
		assert.NoError(t, err)
	})

	t.Run("некорректный YAML", func(t *testing.T) {
		path := createTempConfigFile(t, "invalid yaml: {")
		cfg := defaultConfig()
		err := loadFromYAML(path, cfg)
		assert.Error(t, err)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("переменные окружения переопределяют файл", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", createTempConfigFile(t, partialYAML))
		t.Setenv("SERVER_PORT", "7000")
		t.Setenv("POOL_SIZE", "2")
		t.Setenv("CACHE_TTL", "5m")
		t.Setenv("CACHE_MAX_ENTRIES", "0")
		t.Setenv("MAX_UPLOAD_SIZE", "1 MB")
		t.Setenv("DAEMON", "true")

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, 7000, cfg.Server.Port)
		assert.Equal(t, 2, cfg.Processing.PoolSize)
		assert.Equal(t, 5*time.Minute, cfg.Processing.CacheTTL)
		assert.Equal(t, 0, cfg.Processing.CacheMaxEntries)
		assert.True(t, cfg.Server.Daemon)
		assert.Equal(t, "warn", cfg.Logging.Level)

		size, err := cfg.Server.MaxUploadBytes()
		require.NoError(t, err)
		assert.Equal(t, int64(1000*1000), size)
	})

	t.Run("некорректное число в окружении", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", createTempConfigFile(t, partialYAML))
		t.Setenv("SERVER_PORT", "eighty")

		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("некорректная длительность в окружении", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", createTempConfigFile(t, partialYAML))
		t.Setenv("TASK_TIMEOUT", "soon")

		_, err := LoadConfig()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutator func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"no task timeout", func(c *Config) { c.Processing.TaskTimeout = 0 }, false},
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, true},
		{"invalid shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }, true},
		{"invalid upload size", func(c *Config) { c.Server.MaxUploadSize = "a lot" }, true},
		{"zero upload size", func(c *Config) { c.Server.MaxUploadSize = "0 B" }, true},
		{"daemon without pid file", func(c *Config) { c.Server.Daemon = true; c.Server.PidFile = "" }, true},
		{"invalid task_timeout", func(c *Config) { c.Processing.TaskTimeout = -1 }, true},
		{"invalid task_ttl", func(c *Config) { c.Processing.TaskTTL = 0 }, true},
		{"invalid cache_ttl", func(c *Config) { c.Processing.CacheTTL = 0 }, true},
		{"unlimited cache", func(c *Config) { c.Processing.CacheMaxEntries = 0 }, false},
		{"negative cache_max_entries", func(c *Config) { c.Processing.CacheMaxEntries = -1 }, true},
		{"invalid pool_size", func(c *Config) { c.Processing.PoolSize = 0 }, true},
		{"invalid cleanup_interval", func(c *Config) { c.Processing.CleanupInterval = 0 }, true},
		{"invalid logging level", func(c *Config) { c.Logging.Level = "wrong" }, true},
		{"invalid logging format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutator(cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
