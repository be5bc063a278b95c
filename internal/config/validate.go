package config

import (
	"errors"
	"fmt"
	"log/slog"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.API.Token == "" && c.API.TokenFile == "" {
		return errors.New("api.token or api.token_file is required")
	}
	if c.API.MaxBatch < 1 {
		return errors.New("api.max_batch must be >= 1")
	}

	switch c.Sync.Reader {
	case ReaderAPI:
	case ReaderPostgres:
		if !c.Database.Enabled() {
			return errors.New("database.host is required when sync.reader is postgres")
		}
	default:
		return fmt.Errorf("sync.reader must be %q or %q, got %q", ReaderAPI, ReaderPostgres, c.Sync.Reader)
	}

	if c.Database.Enabled() {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}

	if c.Connection.ReconnectMaxDelay < c.Connection.ReconnectBaseDelay {
		return fmt.Errorf("connection.reconnect_max_delay (%s) cannot be below reconnect_base_delay (%s)",
			c.Connection.ReconnectMaxDelay, c.Connection.ReconnectBaseDelay)
	}
	if c.Connection.Events.Created == c.Connection.Events.Updated {
		return fmt.Errorf("connection.events.created and updated must differ, both are %q", c.Connection.Events.Created)
	}

	if c.Coalesce.Quiescence < 0 {
		return errors.New("coalesce.quiescence must be >= 0")
	}
	if c.Coalesce.MaxBatch < 0 {
		return errors.New("coalesce.max_batch must be >= 0")
	}
	if c.Coalesce.MaxWait != 0 && c.Coalesce.MaxWait < c.Coalesce.Quiescence {
		return fmt.Errorf("coalesce.max_wait (%s) cannot be below quiescence (%s)", c.Coalesce.MaxWait, c.Coalesce.Quiescence)
	}

	if c.Sync.Concurrency < 1 {
		return errors.New("sync.concurrency must be >= 1")
	}
	if c.Sync.Rate < 0 {
		return errors.New("sync.rate must be >= 0")
	}

	if c.Poller.Interval < 0 {
		return errors.New("poller.interval must be >= 0")
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
