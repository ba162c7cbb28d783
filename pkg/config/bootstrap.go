package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// BootstrapFileName is the bootstrap file looked up in the config directory.
const BootstrapFileName = "controller_config.yaml"

// Robot backends
const (
	BackendUnitree = "unitree"
	BackendSim     = "sim"
	BackendFake    = "fake"
)

// BootstrapConfig holds the initial configuration loaded from controller_config.yaml
type BootstrapConfig struct {
	Logging LoggingConfig         `yaml:"logging"`
	Server  BootstrapServerConfig `yaml:"server"`
	Robot   RobotConfig           `yaml:"robot"`
	ZeroMQ  ZeroMQBootstrap       `yaml:"zeromq"`
	Motion  MotionConfig          `yaml:"motion"`
	Camera  CameraConfig          `yaml:"camera"`
	Data    DataConfig            `yaml:"data"`
}

// LoggingConfig holds logging settings from bootstrap
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogPath string `yaml:"log_path,omitempty"`
}

// BootstrapServerConfig holds the HTTP capability API settings
type BootstrapServerConfig struct {
	HTTPPort int `yaml:"http_port"`
	// AuthSecret enables HS256 bearer-token checks on motion routes when set.
	AuthSecret string `yaml:"auth_secret,omitempty"`
}

// RobotConfig selects the robot backend
type RobotConfig struct {
	Backend     string `yaml:"backend"`
	Description string `yaml:"description,omitempty"`
}

// ZeroMQBootstrap holds ZeroMQ endpoints and topics
type ZeroMQBootstrap struct {
	CommandAddress      string `yaml:"command_address"`
	CommandTopic        string `yaml:"command_topic"`
	TelemetryAddress    string `yaml:"telemetry_address"`
	TelemetryTopic      string `yaml:"telemetry_topic"`
	CameraAddress       string `yaml:"camera_address"`
	NotifyTopic         string `yaml:"notify_topic"`
	ReconnectIntervalMs int    `yaml:"reconnect_interval_ms"`
}

// MotionConfig holds control loop tuning
type MotionConfig struct {
	DefaultHeight  float64 `yaml:"default_height"`
	RateHz         float64 `yaml:"rate_hz"`
	ToleranceDeg   float64 `yaml:"tolerance_deg"`
	MaxSampleAgeMs int     `yaml:"max_sample_age_ms"`
}

// CameraConfig holds snapshot settings
type CameraConfig struct {
	Name           string  `yaml:"name"`
	DeadlineSec    float64 `yaml:"deadline_sec"`
	PollIntervalMs int     `yaml:"poll_interval_ms"`
}

// DataConfig holds data directory settings from bootstrap
type DataConfig struct {
	Directory        string `yaml:"directory"`
	TuningConfigFile string `yaml:"tuning_config_file"`
}

// MaxSampleAge returns the heading staleness limit, zero when disabled.
func (m MotionConfig) MaxSampleAge() time.Duration {
	return time.Duration(m.MaxSampleAgeMs) * time.Millisecond
}

// Deadline returns the snapshot deadline.
func (c CameraConfig) Deadline() time.Duration {
	return time.Duration(c.DeadlineSec * float64(time.Second))
}

// PollInterval returns the frame polling interval.
func (c CameraConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// TuningConfigPath returns the full path of the operational tuning file.
func (d DataConfig) TuningConfigPath() string {
	return filepath.Join(d.Directory, d.TuningConfigFile)
}

// DefaultBootstrapConfig returns the settings used for anything the file leaves out.
func DefaultBootstrapConfig() BootstrapConfig {
	return BootstrapConfig{
		Logging: LoggingConfig{Level: "info"},
		Server:  BootstrapServerConfig{HTTPPort: 8080},
		Robot:   RobotConfig{Backend: BackendSim, Description: "Unitree G1 humanoid (simulated)"},
		ZeroMQ: ZeroMQBootstrap{
			CommandAddress:      "tcp://*:5555",
			CommandTopic:        "rt/run_command/cmd",
			TelemetryAddress:    "tcp://localhost:5556",
			TelemetryTopic:      "rt/lowstate",
			CameraAddress:       "tcp://localhost:5557",
			NotifyTopic:         "configuration.notification",
			ReconnectIntervalMs: 1000,
		},
		Motion: MotionConfig{
			DefaultHeight: 0.8,
			RateHz:        100,
			ToleranceDeg:  2,
		},
		Camera: CameraConfig{Name: "head", DeadlineSec: 5, PollIntervalMs: 20},
		Data:   DataConfig{Directory: "config", TuningConfigFile: "motion_tuning.yaml"},
	}
}

// LoadBootstrapConfig loads the bootstrap configuration from controller_config.yaml
func LoadBootstrapConfig(configDir string) (*BootstrapConfig, error) {
	bootstrapConfigPath := filepath.Join(configDir, BootstrapFileName)

	data, err := os.ReadFile(bootstrapConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error reading bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	return ParseBootstrapConfig(data)
}

// ParseBootstrapConfig parses bootstrap YAML on top of the defaults and validates it.
func ParseBootstrapConfig(data []byte) (*BootstrapConfig, error) {
	bootstrapCfg := DefaultBootstrapConfig()
	if err := yaml.Unmarshal(data, &bootstrapCfg); err != nil {
		return nil, fmt.Errorf("error parsing bootstrap config: %w", err)
	}
	if err := bootstrapCfg.Validate(); err != nil {
		return nil, err
	}
	return &bootstrapCfg, nil
}

// Validate checks required fields and value ranges.
func (c *BootstrapConfig) Validate() error {
	switch c.Robot.Backend {
	case BackendUnitree, BackendSim, BackendFake:
	case "":
		return fmt.Errorf("missing required field in bootstrap config: robot.backend")
	default:
		return fmt.Errorf("unknown robot backend %q (want %s, %s or %s)", c.Robot.Backend, BackendUnitree, BackendSim, BackendFake)
	}

	if c.Robot.Backend == BackendUnitree {
		if c.ZeroMQ.CommandAddress == "" {
			return fmt.Errorf("missing required field in bootstrap config: zeromq.command_address")
		}
		if c.ZeroMQ.TelemetryAddress == "" {
			return fmt.Errorf("missing required field in bootstrap config: zeromq.telemetry_address")
		}
	}
	if c.Data.Directory == "" {
		return fmt.Errorf("missing required field in bootstrap config: data.directory")
	}
	if c.Data.TuningConfigFile == "" {
		return fmt.Errorf("missing required field in bootstrap config: data.tuning_config_file")
	}

	if c.Motion.RateHz <= 0 {
		return fmt.Errorf("motion.rate_hz must be positive, got %v", c.Motion.RateHz)
	}
	if c.Motion.ToleranceDeg <= 0 {
		return fmt.Errorf("motion.tolerance_deg must be positive, got %v", c.Motion.ToleranceDeg)
	}
	if c.Motion.MaxSampleAgeMs < 0 {
		return fmt.Errorf("motion.max_sample_age_ms must not be negative, got %d", c.Motion.MaxSampleAgeMs)
	}
	if c.Camera.DeadlineSec < 0 {
		return fmt.Errorf("camera.deadline_sec must not be negative, got %v", c.Camera.DeadlineSec)
	}
	return nil
}
