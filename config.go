package warden

import "time"

// Config holds configuration for a Warden instance.
type Config struct {
	// HeartbeatInterval is how often a running conductor pulses its record.
	HeartbeatInterval time.Duration

	// HeartbeatTimeout is the freshness window: a conductor whose last
	// heartbeat is older than this is not considered alive.
	HeartbeatTimeout time.Duration

	// UnregisterTimeout bounds the graceful unregister issued on shutdown.
	UnregisterTimeout time.Duration

	// AllowOverwrite lets a conductor register over an existing online
	// record with the same hostname.
	AllowOverwrite bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 10 * time.Second,
		HeartbeatTimeout:  60 * time.Second,
		UnregisterTimeout: 5 * time.Second,
	}
}

// Validate checks that the intervals are usable.
func (c Config) Validate() error {
	if c.HeartbeatInterval <= 0 {
		return InvalidParameter("heartbeat interval must be positive, got %s", c.HeartbeatInterval)
	}
	if c.HeartbeatTimeout <= c.HeartbeatInterval {
		return InvalidParameter("heartbeat timeout %s must exceed heartbeat interval %s",
			c.HeartbeatTimeout, c.HeartbeatInterval)
	}
	if c.UnregisterTimeout <= 0 {
		return InvalidParameter("unregister timeout must be positive, got %s", c.UnregisterTimeout)
	}
	return nil
}
