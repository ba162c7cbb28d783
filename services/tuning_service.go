package services

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/open-teleop/motion-controller/pkg/config"
	customlog "github.com/open-teleop/motion-controller/pkg/log"
)

// ErrInvalidConfig marks updates rejected before anything was persisted.
var ErrInvalidConfig = errors.New("invalid tuning configuration")

// ConfigPublisher defines the interface for publishing configuration updates.
type ConfigPublisher interface {
	PublishConfigUpdatedNotification(cfg *config.Config) error
}

// TuningConfigService manages the operational tuning configuration.
type TuningConfigService interface {
	LoadConfig() error
	GetCurrentConfig() *config.Config
	GetCurrentConfigYAML() ([]byte, error)
	UpdateConfig(newConfigYAML []byte) error
	UpdateSpeeds(walkSpeed, yawSpeed *float64) (*config.Config, error)
	PersistConfig(yamlData []byte) error
	SetPublisher(p ConfigPublisher)
	OnUpdate(fn func(cfg *config.Config))
	Speeds() config.TuningConfig
}

// tuningConfigService implements the TuningConfigService interface.
type tuningConfigService struct {
	operationalConfigPath string
	logger                customlog.Logger
	configPublisher       ConfigPublisher
	listeners             []func(cfg *config.Config)
	currentConfig         *config.Config
	mu                    sync.RWMutex

	// updateMu serializes loads and updates end to end, listeners included.
	updateMu sync.Mutex
}

// NewTuningConfigService creates a new TuningConfigService.
// Publisher can be set later via SetPublisher.
func NewTuningConfigService(operationalConfigPath string, logger customlog.Logger) (TuningConfigService, error) {
	if operationalConfigPath == "" {
		return nil, fmt.Errorf("operational configuration path cannot be empty")
	}

	service := &tuningConfigService{
		operationalConfigPath: operationalConfigPath,
		logger:                logger,
	}

	// A missing file is not fatal: speeds fall back to the defaults until a
	// configuration is provided through the API.
	if err := service.LoadConfig(); err != nil {
		logger.Warnf("Initial load of tuning config '%s' failed: %v. Using default speeds.", operationalConfigPath, err)
		return service, nil
	}

	logger.Infof("TuningConfigService initialized successfully for path: %s", operationalConfigPath)
	return service, nil
}

// LoadConfig reads the tuning file from disk and updates the current config.
func (s *tuningConfigService) LoadConfig() error {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	s.logger.Infof("Loading tuning configuration from: %s", s.operationalConfigPath)
	cfg, err := config.LoadConfig(s.operationalConfigPath)
	if err != nil {
		s.logger.Errorf("Error loading tuning config file '%s': %v", s.operationalConfigPath, err)
		return err
	}

	s.mu.Lock()
	s.currentConfig = cfg
	listeners := append([]func(*config.Config){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
	s.logger.Infof("Successfully loaded tuning configuration ID: %s, Version: %s", cfg.ConfigID, cfg.Version)
	return nil
}

// GetCurrentConfig returns the current configuration, nil if none is loaded.
// It's read-only; modifications should go through UpdateConfig.
func (s *tuningConfigService) GetCurrentConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentConfig
}

// Speeds returns the tuned speeds, or the defaults when nothing is loaded.
func (s *tuningConfigService) Speeds() config.TuningConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentConfig == nil {
		return config.DefaultTuning
	}
	return s.currentConfig.Tuning
}

// GetCurrentConfigYAML returns the raw YAML of the tuning file.
func (s *tuningConfigService) GetCurrentConfigYAML() ([]byte, error) {
	s.logger.Debugf("Reading raw tuning configuration YAML from: %s", s.operationalConfigPath)
	data, err := os.ReadFile(s.operationalConfigPath)
	if err != nil {
		s.logger.Errorf("Error reading tuning config file '%s' for YAML export: %v", s.operationalConfigPath, err)
		return nil, fmt.Errorf("error reading tuning config file '%s': %w", s.operationalConfigPath, err)
	}
	return data, nil
}

// UpdateConfig validates, persists and applies a new configuration given as
// YAML, then publishes a notification.
func (s *tuningConfigService) UpdateConfig(newConfigYAML []byte) error {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	s.logger.Infof("Attempting to update tuning configuration from provided YAML")

	var newCfg config.Config
	if err := yaml.Unmarshal(newConfigYAML, &newCfg); err != nil {
		s.logger.Errorf("Failed to parse provided YAML configuration: %v", err)
		return fmt.Errorf("%w: invalid YAML format: %v", ErrInvalidConfig, err)
	}
	if newCfg.ConfigID == "" || newCfg.Version == "" || newCfg.RobotID == "" {
		s.logger.Errorf("Validation failed: Missing required fields (ConfigID, Version, RobotID) in provided YAML.")
		return fmt.Errorf("%w: missing required fields (config_id, version, robot_id)", ErrInvalidConfig)
	}
	newCfg.ApplyTuningDefaults()
	if err := newCfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return s.apply(&newCfg, newConfigYAML)
}

// UpdateSpeeds changes the tuned speeds, leaving nil arguments untouched. The
// result gets a fresh config_id and timestamp.
func (s *tuningConfigService) UpdateSpeeds(walkSpeed, yawSpeed *float64) (*config.Config, error) {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	s.mu.RLock()
	var next config.Config
	if s.currentConfig != nil {
		next = *s.currentConfig
		next.Channels = append([]config.Channel(nil), s.currentConfig.Channels...)
	} else {
		next = config.Config{Version: "1.0", RobotID: "robot", Tuning: config.DefaultTuning}
	}
	s.mu.RUnlock()

	if walkSpeed != nil {
		next.Tuning.WalkSpeed = *walkSpeed
	}
	if yawSpeed != nil {
		next.Tuning.YawSpeed = *yawSpeed
	}
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	next.ConfigID = uuid.NewString()
	next.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	data, err := yaml.Marshal(&next)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tuning config: %w", err)
	}
	if err := s.apply(&next, data); err != nil {
		return nil, err
	}
	return &next, nil
}

// apply persists data and then swaps in cfg. Persistence failure leaves the
// active configuration untouched. The caller holds updateMu.
func (s *tuningConfigService) apply(cfg *config.Config, data []byte) error {
	s.mu.Lock()
	if err := s.persistConfigUnlocked(data); err != nil {
		s.mu.Unlock()
		return err
	}

	oldCfgID := "N/A"
	if s.currentConfig != nil {
		oldCfgID = s.currentConfig.ConfigID
	}
	s.currentConfig = cfg
	publisher := s.configPublisher
	listeners := append([]func(*config.Config){}, s.listeners...)
	s.mu.Unlock()

	s.logger.Infof("Successfully updated and persisted tuning configuration. ID %s -> %s, Version: %s", oldCfgID, cfg.ConfigID, cfg.Version)

	for _, fn := range listeners {
		fn(cfg)
	}

	if publisher != nil {
		// Publish in a separate goroutine so a slow socket never blocks the update.
		go func() {
			if err := publisher.PublishConfigUpdatedNotification(cfg); err != nil {
				s.logger.Warnf("Failed to publish config update notification: %v", err)
			} else {
				s.logger.Infof("Published config update notification successfully.")
			}
		}()
	} else {
		s.logger.Infof("ConfigPublisher not configured, skipping update notification.")
	}
	return nil
}

// PersistConfig writes the given YAML data to the tuning file path.
func (s *tuningConfigService) PersistConfig(yamlData []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistConfigUnlocked(yamlData)
}

// persistConfigUnlocked writes the config file. The caller holds the lock.
func (s *tuningConfigService) persistConfigUnlocked(yamlData []byte) error {
	s.logger.Infof("Persisting tuning configuration to: %s", s.operationalConfigPath)
	if err := os.WriteFile(s.operationalConfigPath, yamlData, 0644); err != nil {
		s.logger.Errorf("Error writing tuning config file '%s': %v", s.operationalConfigPath, err)
		return fmt.Errorf("error writing tuning config file '%s': %w", s.operationalConfigPath, err)
	}
	return nil
}

// SetPublisher allows injecting the ConfigPublisher after initialization.
func (s *tuningConfigService) SetPublisher(p ConfigPublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configPublisher = p
	s.logger.Infof("ConfigPublisher injected into TuningConfigService.")
}

// OnUpdate registers fn to run after every successful load or update. If a
// configuration is already loaded fn runs immediately.
func (s *tuningConfigService) OnUpdate(fn func(cfg *config.Config)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	current := s.currentConfig
	s.mu.Unlock()

	if current != nil {
		fn(current)
	}
}
