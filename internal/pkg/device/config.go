package device

import "time"

const (
	DefaultCommandTimeout    = time.Second
	DefaultHeartbeatTimeout  = 3 * time.Second
	DefaultTickInterval      = 10 * time.Millisecond
	DefaultHeartbeatInterval = time.Second

	// DefaultOwnSystemID and DefaultOwnComponentID identify this side as a ground station.
	DefaultOwnSystemID    uint8 = 245
	DefaultOwnComponentID uint8 = 190
)

// Config holds the timing knobs of a device link. Zero values fall back to defaults.
type Config struct {
	CommandTimeout    time.Duration
	HeartbeatTimeout  time.Duration
	TickInterval      time.Duration
	HeartbeatInterval time.Duration
	OwnSystemID       uint8
	OwnComponentID    uint8
}

func DefaultConfig() Config {
	return Config{
		CommandTimeout:    DefaultCommandTimeout,
		HeartbeatTimeout:  DefaultHeartbeatTimeout,
		TickInterval:      DefaultTickInterval,
		HeartbeatInterval: DefaultHeartbeatInterval,
		OwnSystemID:       DefaultOwnSystemID,
		OwnComponentID:    DefaultOwnComponentID,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = d.CommandTimeout
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = d.HeartbeatTimeout
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.OwnSystemID == 0 {
		c.OwnSystemID = d.OwnSystemID
	}
	if c.OwnComponentID == 0 {
		c.OwnComponentID = d.OwnComponentID
	}
	return c
}
