package sqlite

import "time"

// ClientOption configures Client.
type ClientOption func(*ClientConfig)

// ClientConfig holds SQLite configuration.
type ClientConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
}

// WithPath sets the database file path.
func WithPath(path string) ClientOption {
	return func(c *ClientConfig) {
		c.Path = path
	}
}

// WithMaxConnections sets max open and idle connections.
func WithMaxConnections(maxOpen, maxIdle int) ClientOption {
	return func(c *ClientConfig) {
		c.MaxOpenConns = maxOpen
		c.MaxIdleConns = maxIdle
	}
}

// WithConnMaxLifetime sets how long a pooled connection may live.
func WithConnMaxLifetime(d time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.ConnMaxLifetime = d
	}
}

// WithBusyTimeout sets how long writes wait on a locked database.
func WithBusyTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.BusyTimeout = d
	}
}
