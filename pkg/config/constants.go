package config

import "time"

const (
	// Server ports.
	DefaultGRPCPort = 9090

	// Database defaults.
	DefaultPostgresPort = 5432
	DefaultRedisPort    = 6379

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	// Connection pool defaults.
	DefaultMaxConnections = 25
	DefaultMinConnections = 5
	DefaultMaxRetries     = 3
	DefaultPoolSize       = 10
	DefaultMinIdleConns   = 2

	// Timeout defaults.
	DefaultMaxConnIdleTime = 30 * time.Minute
	DefaultDialTimeout     = 5 * time.Second
	DefaultReadTimeout     = 3 * time.Second
	DefaultWriteTimeout    = 3 * time.Second

	// Scanner defaults.
	DefaultScanWorkers    = 4
	DefaultScanQueueSize  = 256
	DefaultJobHistorySize = 50

	// Metadata client defaults.
	DefaultProviderTimeout    = 10 * time.Second
	DefaultProviderAttempts   = 4
	DefaultInitialBackoff     = 500 * time.Millisecond
	DefaultMaxBackoff         = 10 * time.Second
	DefaultProviderRateLimit  = 4.0 // requests per second
	DefaultProviderRateBurst  = 4
	DefaultPersistentCacheTTL = 24 * time.Hour

	// Watcher defaults.
	DefaultWatchDebounce         = time.Second
	DefaultResubscribeBackoff    = time.Second
	DefaultMaxResubscribeBackoff = time.Minute
)
