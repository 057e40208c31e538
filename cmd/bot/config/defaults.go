package config

import "time"

// Значения по умолчанию для бота.
const (
	DefaultPollingIntervalSeconds = 2
	DefaultExcelThreshold         = 500
	DefaultMaxFilesPerMessage     = 10
	DefaultFileBatchTimeoutSecs   = 3
	DefaultHTTPTimeoutSeconds     = 30
	DefaultHealthCheckSeconds     = 30
	// Bot API не отдает ботам файлы больше 20 МБ.
	DefaultMaxFileSize = "20 MB"

	DefaultShortNameColumnWidth = 14
	DefaultFullNameColumnWidth  = 22
	DefaultCountColumnWidth     = 6

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// HTTPTimeout возвращает таймаут запросов к бэкенду.
func (c *BotConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// HealthCheckInterval возвращает интервал проверки нездоровых серверов.
func (c *BotConfig) HealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheckSeconds) * time.Second
}

// PollingInterval возвращает интервал опроса статуса задачи.
func (c *BotConfig) PollingInterval() time.Duration {
	return time.Duration(c.PollingIntervalSeconds) * time.Second
}

// FileBatchTimeout возвращает время ожидания следующих файлов пачки.
func (c *BotConfig) FileBatchTimeout() time.Duration {
	return time.Duration(c.FileBatchTimeoutSecs) * time.Second
}
