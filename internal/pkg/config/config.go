package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/anicoll/dronelink/internal/pkg/device"
	"github.com/anicoll/dronelink/internal/pkg/model"
)

const EnvPrefix = "DRONELINK_"

type Config struct {
	LinkCfg     *LinkConfig
	MqttCfg     *MqttConfig
	DatabaseCfg *DatabaseConfig
	DeviceCfg   *DeviceConfig
	HTTPAddr    string
	// APITokenHash is the bcrypt hash of a static control API token.
	APITokenHash string
	// APIJWTSecret verifies HS256 control API tokens. With neither set the API is open.
	APIJWTSecret string
	LogLevel     string
}

type LinkConfig struct {
	URL                string
	InsecureSkipVerify bool
	PingInterval       time.Duration
	// ReconnectDelay is the pause between a dropped link and the next dial.
	ReconnectDelay time.Duration
}

type MqttConfig struct {
	Host     string
	Username string
	Password string
	// TopicPrefix is prepended to every event topic.
	TopicPrefix string
}

type DatabaseConfig struct {
	URL            string
	MigrationsPath string
	// Retention is how long journal events are kept by the nightly cleanup.
	Retention time.Duration
}

// DeviceConfig holds the protocol timing knobs, read from the environment.
type DeviceConfig struct {
	CommandTimeout    time.Duration `env:"COMMAND_TIMEOUT" envDefault:"1s"`
	HeartbeatTimeout  time.Duration `env:"HEARTBEAT_TIMEOUT" envDefault:"3s"`
	TickInterval      time.Duration `env:"TICK_INTERVAL" envDefault:"10ms"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"1s"`
	OwnSystemID       uint8         `env:"OWN_SYSTEM_ID" envDefault:"245"`
	OwnComponentID    uint8         `env:"OWN_COMPONENT_ID" envDefault:"190"`
	// StreamRates maps message id to rate in Hz, applied to each device on discovery.
	// Format: "148:0.5,0:1".
	StreamRates map[uint32]float64 `env:"STREAM_RATES" envKeyValSeparator:":"`
}

// LoadDeviceConfig reads DRONELINK_* variables, falling back to the protocol defaults.
func LoadDeviceConfig() (*DeviceConfig, error) {
	cfg := &DeviceConfig{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse device config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *DeviceConfig) validate() error {
	var problems []string
	if c.CommandTimeout <= 0 {
		problems = append(problems, "command timeout must be positive")
	}
	if c.HeartbeatTimeout <= 0 {
		problems = append(problems, "heartbeat timeout must be positive")
	}
	if c.TickInterval <= 0 {
		problems = append(problems, "tick interval must be positive")
	}
	if c.HeartbeatInterval < c.TickInterval {
		problems = append(problems, "heartbeat interval must not be shorter than the tick interval")
	}
	if c.OwnSystemID == 0 {
		problems = append(problems, "own system id must not be 0")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid device config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *DeviceConfig) Device() device.Config {
	return device.Config{
		CommandTimeout:    c.CommandTimeout,
		HeartbeatTimeout:  c.HeartbeatTimeout,
		TickInterval:      c.TickInterval,
		HeartbeatInterval: c.HeartbeatInterval,
		OwnSystemID:       c.OwnSystemID,
		OwnComponentID:    c.OwnComponentID,
	}
}

func (c *DeviceConfig) Rates() map[model.MessageID]float64 {
	rates := make(map[model.MessageID]float64, len(c.StreamRates))
	for id, hz := range c.StreamRates {
		rates[model.MessageID(id)] = hz
	}
	return rates
}
