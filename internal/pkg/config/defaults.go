package config

import "time"

// Default values for configuration.
const (
	// Server defaults
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8080
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxUploadSize   = "20 MB"
	DefaultCleanupInterval = 1 * time.Hour
	DefaultPidFile         = "vkparse-server.pid"
	DefaultLogFile         = "vkparse-server.log"

	// Processing defaults
	DefaultTaskTimeout     = 600 * time.Second
	DefaultTaskTTL         = 24 * time.Hour
	DefaultCacheTTL        = 60 * time.Minute
	DefaultCacheMaxEntries = 256
	DefaultPoolSize        = 4

	// Output defaults
	DefaultDelimiter = "\n"

	// Filter defaults. Отрицательная глубина означает отсутствие ограничения.
	DefaultMaxDepth = -1

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)
