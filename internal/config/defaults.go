package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPingTimeout          = 60 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultCommandTimeout       = 10 * time.Second
	DefaultVenueBufferSize      = 10000
	DefaultMaxRetries           = 3
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 10
	DefaultMinConns             = 2
	DefaultInputBufferSize      = 10000
	DefaultSubscriberBufferSize = 1000
	DefaultRequestTimeout       = 30 * time.Second
	DefaultConnectTimeout       = 30 * time.Second
	DefaultReconnectBaseWait    = 1 * time.Second
	DefaultReconnectMaxWait     = 60 * time.Second
	DefaultMaxConnectRetries    = 5
	DefaultBatchSize            = 1000
	DefaultFlushInterval        = 1 * time.Second
	DefaultHealthPort           = 8080
	DefaultHealthPath           = "/health"
)

func (c *FeedConfig) applyDefaults() {
	// Venue defaults
	if c.Venue.PingTimeout == 0 {
		c.Venue.PingTimeout = DefaultPingTimeout
	}
	if c.Venue.WriteTimeout == 0 {
		c.Venue.WriteTimeout = DefaultWriteTimeout
	}
	if c.Venue.CommandTimeout == 0 {
		c.Venue.CommandTimeout = DefaultCommandTimeout
	}
	if c.Venue.BufferSize == 0 {
		c.Venue.BufferSize = DefaultVenueBufferSize
	}
	if c.Venue.MaxRetries == 0 {
		c.Venue.MaxRetries = DefaultMaxRetries
	}

	// Database defaults
	applyDBDefaults(&c.Database.Timescale)

	// Engine defaults
	if c.Engine.InputBufferSize == 0 {
		c.Engine.InputBufferSize = DefaultInputBufferSize
	}
	if c.Engine.SubscriberBufferSize == 0 {
		c.Engine.SubscriberBufferSize = DefaultSubscriberBufferSize
	}

	// Dispatch defaults
	if c.Dispatch.RequestTimeout == 0 {
		c.Dispatch.RequestTimeout = DefaultRequestTimeout
	}

	// Lifecycle defaults
	if c.Lifecycle.ConnectTimeout == 0 {
		c.Lifecycle.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Lifecycle.ReconnectBaseWait == 0 {
		c.Lifecycle.ReconnectBaseWait = DefaultReconnectBaseWait
	}
	if c.Lifecycle.ReconnectMaxWait == 0 {
		c.Lifecycle.ReconnectMaxWait = DefaultReconnectMaxWait
	}
	if c.Lifecycle.MaxConnectRetries == 0 {
		c.Lifecycle.MaxConnectRetries = DefaultMaxConnectRetries
	}

	// Recorder defaults
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
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
