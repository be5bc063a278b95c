package config

import "time"

// Config is the root configuration for an ordersync instance.
type Config struct {
	Instance   InstanceConfig   `yaml:"instance"`
	API        APIConfig        `yaml:"api"`
	Database   DBConfig         `yaml:"database"`
	Connection ConnectionConfig `yaml:"connection"`
	Coalesce   CoalesceConfig   `yaml:"coalesce"`
	Sync       SyncConfig       `yaml:"sync"`
	Cache      CacheConfig      `yaml:"cache"`
	Poller     PollerConfig     `yaml:"poller"`
	Health     HealthConfig     `yaml:"health"`
	Log        LogConfig        `yaml:"log"`
}

// InstanceConfig identifies this instance in logs.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds order service settings.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	WSURL      string        `yaml:"ws_url"`
	Token      string        `yaml:"token"`      // Bearer token, usually ${ORDERSYNC_TOKEN}
	TokenFile  string        `yaml:"token_file"` // Read when token is empty
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	MaxBatch   int           `yaml:"max_batch"` // Ids per bulk request
}

// DBConfig holds the optional Postgres read replica.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Enabled reports whether a database is configured.
func (db DBConfig) Enabled() bool {
	return db.Host != ""
}

// ConnectionConfig holds realtime connection settings.
type ConnectionConfig struct {
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	ReconnectFailedAfter int           `yaml:"reconnect_failed_after"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	PingTimeout          time.Duration `yaml:"ping_timeout"`
	BufferSize           int           `yaml:"buffer_size"`
	DispatchBuffer       int           `yaml:"dispatch_buffer"`
	Events               EventsConfig  `yaml:"events"`
}

// EventsConfig names the order events on the wire.
type EventsConfig struct {
	Created string `yaml:"created"`
	Updated string `yaml:"updated"`
}

// CoalesceConfig holds coalescing queue settings.
type CoalesceConfig struct {
	Quiescence time.Duration `yaml:"quiescence"`
	MaxBatch   int           `yaml:"max_batch"` // 0 = unbounded
	MaxWait    time.Duration `yaml:"max_wait"`  // 0 = no cap
}

// SyncConfig holds batch sync settings.
type SyncConfig struct {
	Reader        string        `yaml:"reader"` // "api" or "postgres"
	Namespace     string        `yaml:"namespace"`
	DiscardStale  bool          `yaml:"discard_stale"`
	FilterAppends bool          `yaml:"filter_appends"`
	Concurrency   int           `yaml:"concurrency"`
	Rate          float64       `yaml:"rate"` // Point reads per second
	Burst         int           `yaml:"burst"`
	Timeout       time.Duration `yaml:"timeout"`
}

// CacheConfig holds query cache settings.
type CacheConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// PollerConfig holds resync poller settings.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval"` // 0 disables
}

// HealthConfig holds the health server settings.
type HealthConfig struct {
	Port int `yaml:"port"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}
