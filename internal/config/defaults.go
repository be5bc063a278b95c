package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL              = "http://localhost:5000/api"
	DefaultWSURL                = "ws://localhost:5000/ws"
	DefaultAPITimeout           = 30 * time.Second
	DefaultMaxRetries           = 3
	DefaultMaxBatch             = 100
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 10
	DefaultMinConns             = 2
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultReconnectFailedAfter = 10
	DefaultPingInterval         = 25 * time.Second
	DefaultPingTimeout          = 60 * time.Second
	DefaultBufferSize           = 1000
	DefaultDispatchBuffer       = 256
	DefaultCreatedEvent         = "order-created"
	DefaultUpdatedEvent         = "order-updated"
	DefaultQuiescence           = 300 * time.Millisecond
	DefaultReader               = ReaderAPI
	DefaultNamespace            = "orders"
	DefaultSyncConcurrency      = 8
	DefaultSyncRate             = 50
	DefaultSyncBurst            = 10
	DefaultSyncTimeout          = 15 * time.Second
	DefaultCacheTTL             = 5 * time.Minute
	DefaultCacheCleanup         = 10 * time.Minute
	DefaultHealthPort           = 8080
	DefaultLogLevel             = "info"
)

// Sync readers.
const (
	ReaderAPI      = "api"
	ReaderPostgres = "postgres"
)

// ApplyDefaults fills every unset optional field.
func (c *Config) ApplyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.MaxBatch == 0 {
		c.API.MaxBatch = DefaultMaxBatch
	}

	// Database defaults apply only when one is configured
	if c.Database.Enabled() {
		applyDBDefaults(&c.Database)
	}

	// Connection defaults
	conn := &c.Connection
	if conn.ReconnectBaseDelay == 0 {
		conn.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if conn.ReconnectMaxDelay == 0 {
		conn.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if conn.ReconnectFailedAfter == 0 {
		conn.ReconnectFailedAfter = DefaultReconnectFailedAfter
	}
	if conn.PingInterval == 0 {
		conn.PingInterval = DefaultPingInterval
	}
	if conn.PingTimeout == 0 {
		conn.PingTimeout = DefaultPingTimeout
	}
	if conn.BufferSize == 0 {
		conn.BufferSize = DefaultBufferSize
	}
	if conn.DispatchBuffer == 0 {
		conn.DispatchBuffer = DefaultDispatchBuffer
	}
	if conn.Events.Created == "" {
		conn.Events.Created = DefaultCreatedEvent
	}
	if conn.Events.Updated == "" {
		conn.Events.Updated = DefaultUpdatedEvent
	}

	// Coalesce defaults
	if c.Coalesce.Quiescence == 0 {
		c.Coalesce.Quiescence = DefaultQuiescence
	}

	// Sync defaults
	if c.Sync.Reader == "" {
		c.Sync.Reader = DefaultReader
	}
	if c.Sync.Namespace == "" {
		c.Sync.Namespace = DefaultNamespace
	}
	if c.Sync.Concurrency == 0 {
		c.Sync.Concurrency = DefaultSyncConcurrency
	}
	if c.Sync.Rate == 0 {
		c.Sync.Rate = DefaultSyncRate
	}
	if c.Sync.Burst == 0 {
		c.Sync.Burst = DefaultSyncBurst
	}
	if c.Sync.Timeout == 0 {
		c.Sync.Timeout = DefaultSyncTimeout
	}

	// Cache defaults
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Cache.CleanupInterval == 0 {
		c.Cache.CleanupInterval = DefaultCacheCleanup
	}

	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
