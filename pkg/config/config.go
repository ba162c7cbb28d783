package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Channel directions
const (
	DirectionInbound  = "INBOUND"
	DirectionOutbound = "OUTBOUND"
)

// Config represents the operational tuning of the controller. Unlike the
// bootstrap file it may be changed at runtime through the API.
type Config struct {
	Version     string         `yaml:"version" json:"version"`
	ConfigID    string         `yaml:"config_id" json:"config_id"`
	LastUpdated string         `yaml:"lastUpdated" json:"lastUpdated"`
	RobotID     string         `yaml:"robot_id" json:"robot_id"`
	Tuning      TuningConfig   `yaml:"tuning" json:"tuning"`
	Channels    []Channel      `yaml:"channels" json:"channels"`
	Defaults    DefaultsConfig `yaml:"defaults" json:"defaults"`
}

// TuningConfig holds the capability speeds
type TuningConfig struct {
	// WalkSpeed is the linear speed used by the move capability.
	WalkSpeed float64 `yaml:"walk_speed" json:"walk_speed"`
	// YawSpeed is the angular speed used by the rotate capability.
	YawSpeed float64 `yaml:"yaw_speed" json:"yaw_speed"`
}

// Channel describes one pub/sub channel the controller uses
type Channel struct {
	Topic       string `yaml:"topic" json:"topic"`
	Direction   string `yaml:"direction" json:"direction"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// DefaultsConfig holds default values for channels
type DefaultsConfig struct {
	Direction string `yaml:"direction" json:"direction"`
}

// DefaultTuning is used for speeds the tuning file leaves unset.
var DefaultTuning = TuningConfig{WalkSpeed: 1.0, YawSpeed: 1.5}

// LoadConfig loads configuration from the specified file path
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	config.ApplyTuningDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ApplyTuningDefaults fills unset speeds with DefaultTuning.
func (c *Config) ApplyTuningDefaults() {
	if c.Tuning.WalkSpeed == 0 {
		c.Tuning.WalkSpeed = DefaultTuning.WalkSpeed
	}
	if c.Tuning.YawSpeed == 0 {
		c.Tuning.YawSpeed = DefaultTuning.YawSpeed
	}
}

// Validate checks speeds and channel directions.
func (c *Config) Validate() error {
	if !isFinite(c.Tuning.WalkSpeed) || !isFinite(c.Tuning.YawSpeed) {
		return fmt.Errorf("tuning speeds must be finite, got walk_speed=%v yaw_speed=%v", c.Tuning.WalkSpeed, c.Tuning.YawSpeed)
	}
	if c.Tuning.WalkSpeed < 0 {
		return fmt.Errorf("tuning.walk_speed must not be negative, got %v", c.Tuning.WalkSpeed)
	}
	if c.Tuning.YawSpeed <= 0 {
		return fmt.Errorf("tuning.yaw_speed must be positive, got %v", c.Tuning.YawSpeed)
	}
	for i, ch := range c.Channels {
		if ch.Topic == "" {
			return fmt.Errorf("channels[%d]: missing topic", i)
		}
		switch applyDefaults(ch, c.Defaults).Direction {
		case DirectionInbound, DirectionOutbound:
		default:
			return fmt.Errorf("channels[%d] %s: invalid direction %q", i, ch.Topic, ch.Direction)
		}
	}
	return nil
}

// GetChannelsByDirection returns channels filtered by direction
func (c *Config) GetChannelsByDirection(direction string) []Channel {
	var result []Channel

	for _, ch := range c.Channels {
		withDefaults := applyDefaults(ch, c.Defaults)
		if withDefaults.Direction == direction {
			result = append(result, withDefaults)
		}
	}

	return result
}

// GetChannelByTopic returns the channel for a specific topic
func (c *Config) GetChannelByTopic(topic string) (Channel, bool) {
	for _, ch := range c.Channels {
		if ch.Topic == topic {
			return applyDefaults(ch, c.Defaults), true
		}
	}

	return Channel{}, false
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// applyDefaults merges default values into a channel where fields are empty
func applyDefaults(ch Channel, defaults DefaultsConfig) Channel {
	result := ch
	if result.Direction == "" {
		result.Direction = defaults.Direction
	}
	return result
}
