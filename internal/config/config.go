package config

import "time"

// FeedConfig is the root configuration for a feed daemon instance.
type FeedConfig struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Venue     VenueConfig     `yaml:"venue"`
	Database  DatabaseConfig  `yaml:"database"`
	Engine    EngineConfig    `yaml:"engine"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	Health    HealthConfig    `yaml:"health"`
}

// InstanceConfig identifies this daemon.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// VenueConfig holds venue adapter settings.
type VenueConfig struct {
	Name           string        `yaml:"name"`
	WSURL          string        `yaml:"ws_url"`
	RestURL        string        `yaml:"rest_url"`
	Token          string        `yaml:"token"` // Bearer token, usually via ${VAR}
	PingTimeout    time.Duration `yaml:"ping_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	BufferSize     int           `yaml:"buffer_size"`
	MaxRetries     int           `yaml:"max_retries"`
}

// DatabaseConfig holds the time-series database connection.
type DatabaseConfig struct {
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
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

// EngineConfig holds ingestion engine settings.
type EngineConfig struct {
	InputBufferSize      int `yaml:"input_buffer_size"`
	SubscriberBufferSize int `yaml:"subscriber_buffer_size"`
}

// DispatchConfig holds request dispatcher settings.
type DispatchConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LifecycleConfig holds adapter lifecycle settings.
type LifecycleConfig struct {
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	ReconnectBaseWait time.Duration `yaml:"reconnect_base_wait"`
	ReconnectMaxWait  time.Duration `yaml:"reconnect_max_wait"`
	MaxConnectRetries int           `yaml:"max_connect_retries"`
}

// RecorderConfig holds batch recorder settings.
type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
