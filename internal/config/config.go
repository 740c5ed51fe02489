// Package config loads the flight monitor's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values.
const (
	DefaultVehicleID   = "vehicle-01"
	DefaultTick        = 100 * time.Millisecond
	DefaultHeartbeat   = 15 * time.Minute
	DefaultBroker      = "tcp://127.0.0.1:1883"
	DefaultClientID    = "flight-monitor"
	DefaultTopicPrefix = "vehicle"
	DefaultBufferSize  = 256
	DefaultMaxWind     = 12.0 // m/s
	DefaultChip        = "gpiochip0"
	DefaultRedPin      = 54
	DefaultGreenPin    = 55
	DefaultParamsPath  = "/var/lib/flight-monitor/params"
	DefaultFlightLog   = "/var/lib/flight-monitor/flightlog.db"
	DefaultWindRecords = 864000 // 24 h at 10 Hz
	DefaultHTTPAddr    = ":8080"
)

// Config is the full daemon configuration.
type Config struct {
	VehicleID string        `yaml:"vehicle_id"`
	Tick      time.Duration `yaml:"tick"`

	// Heartbeat is the system heartbeat interval. 0 disables heartbeats.
	Heartbeat time.Duration `yaml:"heartbeat"`

	MQTT      MQTTConfig      `yaml:"mqtt"`
	Wind      WindConfig      `yaml:"wind"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Params    ParamsConfig    `yaml:"params"`
	FlightLog FlightLogConfig `yaml:"flightlog"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`

	// BufferSize is the number of messages kept while disconnected.
	BufferSize int `yaml:"buffer_size"`
}

// WindConfig holds the wind failsafe tunables. Applied live on reload.
type WindConfig struct {
	// MaxSpeed is the maximum wind speed in m/s. The soft threshold is 70% of it.
	MaxSpeed float64 `yaml:"max_speed"`
}

// IndicatorConfig configures the status lights.
type IndicatorConfig struct {
	// Enabled selects the hardware variant with indicator lights.
	Enabled  bool   `yaml:"enabled"`
	Chip     string `yaml:"chip"`
	RedPin   int    `yaml:"red_pin"`
	GreenPin int    `yaml:"green_pin"`

	// Toggle: 0 stops the pattern, 1 runs it normally, 2..7 force a status
	// while disarmed (bench testing). Applied live on reload.
	Toggle int `yaml:"toggle"`
}

// ParamsConfig locates the persisted parameter store.
type ParamsConfig struct {
	Path string `yaml:"path"`
}

// FlightLogConfig locates the flight log database. An empty path disables it.
type FlightLogConfig struct {
	Path string `yaml:"path"`

	// MaxWindRecords is the number of wind records kept. 0 keeps all.
	MaxWindRecords int `yaml:"max_wind_records"`
}

// HTTPConfig configures the status server. An empty address disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// BaseTopic returns the per-vehicle topic root, e.g. "vehicle/asteria-01".
func (c *Config) BaseTopic() string {
	return c.MQTT.TopicPrefix + "/" + c.VehicleID
}

// Topic returns the full topic for the given suffix, e.g. "vehicle/asteria-01/state".
func (c *Config) Topic(suffix string) string {
	return c.BaseTopic() + "/" + suffix
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse parses YAML config data.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	return &Config{
		VehicleID: DefaultVehicleID,
		Tick:      DefaultTick,
		Heartbeat: DefaultHeartbeat,
		MQTT: MQTTConfig{
			Broker:      DefaultBroker,
			ClientID:    DefaultClientID,
			TopicPrefix: DefaultTopicPrefix,
			BufferSize:  DefaultBufferSize,
		},
		Wind: WindConfig{MaxSpeed: DefaultMaxWind},
		Indicator: IndicatorConfig{
			Enabled:  true,
			Chip:     DefaultChip,
			RedPin:   DefaultRedPin,
			GreenPin: DefaultGreenPin,
			Toggle:   1,
		},
		Params:    ParamsConfig{Path: DefaultParamsPath},
		FlightLog: FlightLogConfig{Path: DefaultFlightLog, MaxWindRecords: DefaultWindRecords},
		HTTP:      HTTPConfig{Addr: DefaultHTTPAddr},
	}
}

func validate(cfg *Config) error {
	if cfg.VehicleID == "" {
		return fmt.Errorf("vehicle_id must not be empty")
	}
	if cfg.Tick <= 0 {
		return fmt.Errorf("tick must be positive")
	}
	if cfg.Heartbeat < 0 {
		return fmt.Errorf("heartbeat must not be negative")
	}
	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker must not be empty")
	}
	if cfg.MQTT.TopicPrefix == "" {
		return fmt.Errorf("mqtt.topic_prefix must not be empty")
	}
	if cfg.MQTT.BufferSize <= 0 {
		return fmt.Errorf("mqtt.buffer_size must be positive")
	}
	if cfg.Wind.MaxSpeed <= 0 {
		return fmt.Errorf("wind.max_speed %v must be positive", cfg.Wind.MaxSpeed)
	}
	if cfg.FlightLog.MaxWindRecords < 0 {
		return fmt.Errorf("flightlog.max_wind_records must not be negative")
	}
	if cfg.Indicator.Toggle < 0 || cfg.Indicator.Toggle > 7 {
		return fmt.Errorf("indicator.toggle %d is out of range [0, 7]", cfg.Indicator.Toggle)
	}
	if cfg.Indicator.Enabled {
		if cfg.Indicator.Chip == "" {
			return fmt.Errorf("indicator.chip must not be empty")
		}
		if cfg.Indicator.RedPin < 0 || cfg.Indicator.GreenPin < 0 {
			return fmt.Errorf("indicator pins must not be negative")
		}
		if cfg.Indicator.RedPin == cfg.Indicator.GreenPin {
			return fmt.Errorf("indicator.red_pin and indicator.green_pin must differ")
		}
	}
	if cfg.Params.Path == "" {
		return fmt.Errorf("params.path must not be empty")
	}
	return nil
}
