// Package config предоставляет управление конфигурацией приложения
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Server содержит конфигурацию сервера
type Server struct {
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	// MaxUploadSize задается в человекочитаемом виде: "20 MB", "512KiB".
	MaxUploadSize string `json:"max_upload_size" yaml:"max_upload_size"`
	// Daemon включает отсоединение процесса от терминала (go-daemon).
	Daemon  bool   `json:"daemon" yaml:"daemon"`
	PidFile string `json:"pid_file" yaml:"pid_file"`
	LogFile string `json:"log_file" yaml:"log_file"`
}

// MaxUploadBytes возвращает лимит размера загрузки в байтах.
func (s Server) MaxUploadBytes() (int64, error) {
	n, err := humanize.ParseBytes(s.MaxUploadSize)
	if err != nil {
		return 0, fmt.Errorf("invalid max_upload_size %q: %w", s.MaxUploadSize, err)
	}
	return int64(n), nil
}

// Processing содержит конфигурацию обработки
type Processing struct {
	TaskTimeout time.Duration `json:"task_timeout" yaml:"task_timeout"` // 0 - без ограничений
	TaskTTL     time.Duration `json:"task_ttl" yaml:"task_ttl"`
	CacheTTL    time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
	// CacheMaxEntries ограничивает число результатов в кэше, 0 - без ограничений.
	CacheMaxEntries int `json:"cache_max_entries" yaml:"cache_max_entries"`
	PoolSize        int `json:"pool_size" yaml:"pool_size"`
	// CleanupInterval - период очистки просроченных задач и кэша.
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`
}

// Output содержит параметры текстового вывода
type Output struct {
	Delimiter string `json:"delimiter" yaml:"delimiter"`
}

// Filter содержит фильтры по умолчанию для запросов, которые их не задают
type Filter struct {
	MaxDepth int `json:"max_depth" yaml:"max_depth"` // отрицательное значение - без ограничений
}

// DefaultMaxDepth возвращает глубину по умолчанию в виде, принятом в domain.FilterOptions.
func (f Filter) DefaultMaxDepth() *int {
	if f.MaxDepth < 0 {
		return nil
	}
	d := f.MaxDepth
	return &d
}

// Logging содержит конфигурацию логирования
type Logging struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// Config содержит конфигурацию приложения
type Config struct {
	Server     Server     `json:"server" yaml:"server"`
	Processing Processing `json:"processing" yaml:"processing"`
	Output     Output     `json:"output" yaml:"output"`
	Filter     Filter     `json:"filter" yaml:"filter"`
	Logging    Logging    `json:"logging" yaml:"logging"`
}

func defaultConfig() *Config {
	return &Config{
		Server: Server{
			Host:            DefaultServerHost,
			Port:            DefaultServerPort,
			ShutdownTimeout: DefaultShutdownTimeout,
			MaxUploadSize:   DefaultMaxUploadSize,
			PidFile:         DefaultPidFile,
			LogFile:         DefaultLogFile,
		},
		Processing: Processing{
			TaskTimeout:     DefaultTaskTimeout,
			TaskTTL:         DefaultTaskTTL,
			CacheTTL:        DefaultCacheTTL,
			CacheMaxEntries: DefaultCacheMaxEntries,
			PoolSize:        DefaultPoolSize,
			CleanupInterval: DefaultCleanupInterval,
		},
		Output: Output{Delimiter: DefaultDelimiter},
		Filter: Filter{MaxDepth: DefaultMaxDepth},
		Logging: Logging{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// LoadConfig загружает конфигурацию: значения по умолчанию, затем config.yml
// (путь можно переопределить через CONFIG_PATH), затем переменные окружения и .env файл.
func LoadConfig() (*Config, error) {
	// .env необязателен, переменные окружения могут быть заданы напрямую
	_ = godotenv.Load()

	cfg := defaultConfig()
	if err := loadFromYAML(getEnv("CONFIG_PATH", "config.yml"), cfg); err != nil {
		return nil, err
	}
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	return cfg, nil
}

// loadFromYAML накладывает значения из YAML-файла поверх cfg. Отсутствие файла не ошибка.
func loadFromYAML(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// loadFromEnv переопределяет значения переменными окружения
func loadFromEnv(cfg *Config) error {
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.MaxUploadSize = getEnv("MAX_UPLOAD_SIZE", cfg.Server.MaxUploadSize)
	cfg.Server.PidFile = getEnv("PID_FILE", cfg.Server.PidFile)
	cfg.Server.LogFile = getEnv("LOG_FILE", cfg.Server.LogFile)
	cfg.Output.Delimiter = getEnv("TEXT_DELIMITER", cfg.Output.Delimiter)
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	var err error
	if cfg.Server.Port, err = envInt("SERVER_PORT", cfg.Server.Port); err != nil {
		return err
	}
	if cfg.Processing.PoolSize, err = envInt("POOL_SIZE", cfg.Processing.PoolSize); err != nil {
		return err
	}
	if cfg.Filter.MaxDepth, err = envInt("MAX_DEPTH", cfg.Filter.MaxDepth); err != nil {
		return err
	}
	if cfg.Processing.TaskTimeout, err = envDuration("TASK_TIMEOUT", cfg.Processing.TaskTimeout); err != nil {
		return err
	}
	if cfg.Processing.CacheTTL, err = envDuration("CACHE_TTL", cfg.Processing.CacheTTL); err != nil {
		return err
	}
	if cfg.Processing.CacheMaxEntries, err = envInt("CACHE_MAX_ENTRIES", cfg.Processing.CacheMaxEntries); err != nil {
		return err
	}
	if v := os.Getenv("DAEMON"); v != "" {
		if cfg.Server.Daemon, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("invalid DAEMON: %w", err)
		}
	}

	return nil
}

// Address возвращает адрес сервера в формате "host:port"
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate проверяет, являются ли значения конфигурации допустимыми
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid port number (1-65535)")
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}

	if n, err := c.Server.MaxUploadBytes(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("server.max_upload_size must be positive")
	}

	if c.Server.Daemon && c.Server.PidFile == "" {
		return fmt.Errorf("server.pid_file is required in daemon mode")
	}

	if c.Processing.TaskTimeout < 0 {
		return fmt.Errorf("processing.task_timeout must be non-negative (0 for no limit)")
	}

	if c.Processing.TaskTTL <= 0 {
		return fmt.Errorf("processing.task_ttl must be positive")
	}

	if c.Processing.CacheTTL <= 0 {
		return fmt.Errorf("processing.cache_ttl must be positive")
	}

	if c.Processing.CacheMaxEntries < 0 {
		return fmt.Errorf("processing.cache_max_entries must be non-negative (0 for no limit)")
	}

	if c.Processing.PoolSize <= 0 {
		return fmt.Errorf("processing.pool_size must be positive")
	}

	if c.Processing.CleanupInterval <= 0 {
		return fmt.Errorf("processing.cleanup_interval must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// all good
	default:
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// getEnv извлекает значение переменной окружения или возвращает значение по умолчанию, если она не установлена
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
