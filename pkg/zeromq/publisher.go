package zeromq

import (
	"github.com/open-teleop/motion-controller/pkg/config"
	customlog "github.com/open-teleop/motion-controller/pkg/log"
)

// JSONPublisher is the part of ZeroMQService used to send notifications
type JSONPublisher interface {
	PublishJSON(topic string, messageType string, data interface{}) error
}

// ConfigPublisher announces tuning configuration changes to subscribers
type ConfigPublisher struct {
	publisher JSONPublisher
	topic     string
	logger    customlog.Logger
}

// NewConfigPublisher creates a new publisher for configuration updates
func NewConfigPublisher(publisher JSONPublisher, topic string, logger customlog.Logger) *ConfigPublisher {
	if topic == "" {
		topic = "configuration.notification"
	}
	return &ConfigPublisher{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}
}

// PublishConfigUpdatedNotification publishes a notification that the config has been updated
func (p *ConfigPublisher) PublishConfigUpdatedNotification(cfg *config.Config) error {
	p.logger.Infof("Publishing configuration update notification (ID: %s)", cfg.ConfigID)

	notification := map[string]interface{}{
		"config_id":    cfg.ConfigID,
		"version":      cfg.Version,
		"last_updated": cfg.LastUpdated,
		"tuning":       cfg.Tuning,
	}

	return p.publisher.PublishJSON(p.topic, MsgTypeConfigUpdated, notification)
}
