package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *FeedConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Venue.Name == "" {
		return errors.New("venue.name is required")
	}
	if c.Venue.WSURL == "" {
		return errors.New("venue.ws_url is required")
	}
	if c.Venue.RestURL == "" {
		return errors.New("venue.rest_url is required")
	}

	if c.Recorder.Enabled {
		if err := c.Database.Timescale.validate("database.timescale"); err != nil {
			return err
		}
		if c.Recorder.BatchSize < 1 {
			return errors.New("recorder.batch_size must be >= 1")
		}
	}

	if c.Engine.InputBufferSize < 1 {
		return errors.New("engine.input_buffer_size must be >= 1")
	}
	if c.Engine.SubscriberBufferSize < 1 {
		return errors.New("engine.subscriber_buffer_size must be >= 1")
	}

	if c.Lifecycle.ReconnectBaseWait > c.Lifecycle.ReconnectMaxWait {
		return errors.New("lifecycle.reconnect_base_wait cannot exceed reconnect_max_wait")
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
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
