package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// ColumnWidths определяет ширину колонок таблицы участников.
type ColumnWidths struct {
	ShortName int `yaml:"short_name"`
	FullName  int `yaml:"full_name"`
	Count     int `yaml:"count"`
}

// BotConfig содержит конфигурацию для Telegram-бота
type BotConfig struct {
	Token      string `yaml:"token"`
	BackendURL string `yaml:"backend_url"`
	// BackendURLs - дополнительные серверы конвертации, задачи распределяются по кругу.
	BackendURLs []string `yaml:"backend_urls"`
	// HealthCheckSeconds - интервал проверки серверов, выведенных из пула.
	HealthCheckSeconds int `yaml:"health_check_seconds"`
	// PollingIntervalSeconds - интервал опроса статуса задачи на бэкенде.
	PollingIntervalSeconds int `yaml:"polling_interval_seconds"`
	// ExcelThreshold - начиная с этого числа сообщений к ответу прикладывается книга Excel.
	ExcelThreshold       int          `yaml:"excel_threshold"`
	MaxFilesPerMessage   int          `yaml:"max_files_per_message"`
	FileBatchTimeoutSecs int          `yaml:"file_batch_timeout_seconds"`
	HTTPTimeoutSeconds   int          `yaml:"http_timeout_seconds"`
	MaxFileSize          string       `yaml:"max_file_size"`
	Render               ColumnWidths `yaml:"render"`
}

// LoggingConfig - настройки логирования бота.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config является оберткой для соответствия структуре YAML файла.
type Config struct {
	Bot     BotConfig     `yaml:"bot"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoadConfig загружает конфигурацию бота из файла. Отсутствующий файл не ошибка:
// токен и адрес бэкенда можно передать через BOT_TOKEN и BACKEND_URL (в том числе из .env).
func LoadConfig(filename string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bot config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read bot config file %s: %w", filename, err)
	}

	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.Bot.Token = v
	}
	if v := os.Getenv("BACKEND_URL"); v != "" {
		cfg.Bot.BackendURL = ""
		cfg.Bot.BackendURLs = strings.Split(v, ",")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	b := &c.Bot
	if b.PollingIntervalSeconds == 0 {
		b.PollingIntervalSeconds = DefaultPollingIntervalSeconds
	}
	if b.ExcelThreshold == 0 {
		b.ExcelThreshold = DefaultExcelThreshold
	}
	if b.MaxFilesPerMessage == 0 {
		b.MaxFilesPerMessage = DefaultMaxFilesPerMessage
	}
	if b.FileBatchTimeoutSecs == 0 {
		b.FileBatchTimeoutSecs = DefaultFileBatchTimeoutSecs
	}
	if b.HTTPTimeoutSeconds == 0 {
		b.HTTPTimeoutSeconds = DefaultHTTPTimeoutSeconds
	}
	if b.HealthCheckSeconds == 0 {
		b.HealthCheckSeconds = DefaultHealthCheckSeconds
	}
	if b.MaxFileSize == "" {
		b.MaxFileSize = DefaultMaxFileSize
	}
	if b.Render.ShortName == 0 {
		b.Render.ShortName = DefaultShortNameColumnWidth
	}
	if b.Render.FullName == 0 {
		b.Render.FullName = DefaultFullNameColumnWidth
	}
	if b.Render.Count == 0 {
		b.Render.Count = DefaultCountColumnWidth
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// Backends возвращает адреса всех серверов без повторов.
func (c *BotConfig) Backends() []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, u := range append([]string{c.BackendURL}, c.BackendURLs...) {
		u = strings.TrimRight(strings.TrimSpace(u), "/")
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}

// MaxFileBytes возвращает лимит размера одного файла в байтах.
func (c *BotConfig) MaxFileBytes() (uint64, error) {
	n, err := humanize.ParseBytes(c.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("bot.max_file_size: %w", err)
	}
	return n, nil
}

// Validate проверяет корректность конфигурации бота.
func (c *BotConfig) Validate() error {
	if c.Token == "" || c.Token == "YOUR_TELEGRAM_BOT_TOKEN" {
		return fmt.Errorf("bot.token is not configured")
	}
	if len(c.Backends()) == 0 {
		return fmt.Errorf("bot.backend_url cannot be empty")
	}
	if c.PollingIntervalSeconds <= 0 {
		return fmt.Errorf("bot.polling_interval_seconds must be positive")
	}
	if c.ExcelThreshold <= 0 {
		return fmt.Errorf("bot.excel_threshold must be positive")
	}
	if c.MaxFilesPerMessage <= 0 {
		return fmt.Errorf("bot.max_files_per_message must be positive")
	}
	if c.FileBatchTimeoutSecs <= 0 {
		return fmt.Errorf("bot.file_batch_timeout_seconds must be positive")
	}
	if _, err := c.MaxFileBytes(); err != nil {
		return err
	}
	return nil
}

// Validate проверяет всю конфигурацию.
func (c *Config) Validate() error {
	if err := c.Bot.Validate(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	return nil
}
