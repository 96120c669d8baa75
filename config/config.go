package config

import (
	"errors"
	"fmt"
	"github.com/shimmeringbee/pda/coordinator"
	"gopkg.in/yaml.v3"
	"os"
	"time"
)

type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Polling   PollingConfig   `yaml:"polling"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Rules     RulesConfig     `yaml:"rules"`
	Simulator SimulatorConfig `yaml:"simulator"`
}

type DeviceConfig struct {
	ID string `yaml:"id"`
}

type PollingConfig struct {
	Interval time.Duration `yaml:"interval"`
	Retries  int           `yaml:"retries"`
}

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Prefix   string `yaml:"prefix"`
	QoS      int    `yaml:"qos"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type RulesConfig struct {
	// Path is an optional directory of additional yaml rulesets.
	Path string `yaml:"path"`
	// Embedded controls loading of the built in rulesets.
	Embedded bool `yaml:"embedded"`
}

type SimulatorConfig struct {
	Model string `yaml:"model"`
	Power string `yaml:"power"`
}

// Load reads the yaml configuration at path over the defaults, applies environment overrides and validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ID: "projector",
		},
		Polling: PollingConfig{
			Interval: coordinator.DefaultPollInterval,
			Retries:  coordinator.DefaultDeviceRetries,
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "pda",
			Prefix:   "homeassistant",
			QoS:      1,
		},
		Rules: RulesConfig{
			Embedded: true,
		},
		Simulator: SimulatorConfig{
			Model: "W1070",
			Power: coordinator.PowerStatusOn.String(),
		},
	}
}

// applyEnvOverrides applies environment variable overrides, of the form PDA_SECTION_KEY.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PDA_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	if v := os.Getenv("PDA_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}

	if v := os.Getenv("PDA_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}

	if v := os.Getenv("PDA_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
}

func (c *Config) Validate() error {
	var errs []error

	if len(c.Device.ID) == 0 {
		errs = append(errs, errors.New("device.id is required"))
	}

	if c.Polling.Interval <= 0 {
		errs = append(errs, fmt.Errorf("polling.interval must be positive, got %s", c.Polling.Interval))
	}

	if c.Polling.Retries < 1 {
		errs = append(errs, fmt.Errorf("polling.retries must be at least 1, got %d", c.Polling.Retries))
	}

	if c.MQTT.Enabled {
		if len(c.MQTT.Broker) == 0 {
			errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
		}

		if len(c.MQTT.Prefix) == 0 {
			errs = append(errs, errors.New("mqtt.prefix is required when mqtt is enabled"))
		}

		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
		}
	}

	if _, err := c.Simulator.PowerStatus(); err != nil {
		errs = append(errs, fmt.Errorf("simulator.power: %w", err))
	}

	return errors.Join(errs...)
}

func (s SimulatorConfig) PowerStatus() (coordinator.PowerStatus, error) {
	return coordinator.ParsePowerStatus(s.Power)
}
