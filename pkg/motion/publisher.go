package motion

import (
	"github.com/open-teleop/motion-controller/pkg/fault"
	customlog "github.com/open-teleop/motion-controller/pkg/log"
)

// DefaultCommandTopic is the channel the actuator bridge listens on.
const DefaultCommandTopic = "rt/run_command/cmd"

// MessagePublisher defines the interface for publishing messages on a named channel.
type MessagePublisher interface {
	PublishMessage(topic string, data []byte) error
}

// VelocityCommand is one velocity/height set-point. A nil Height means the
// publisher's default height.
type VelocityCommand struct {
	XVel   float64
	YVel   float64
	YawVel float64
	Height *float64
}

// HeightOf returns a pointer to h, for filling optional height fields.
func HeightOf(h float64) *float64 {
	return &h
}

// IsStop reports whether the command carries zero velocity on every axis.
func (c VelocityCommand) IsStop() bool {
	return c.XVel == 0 && c.YVel == 0 && c.YawVel == 0
}

// CommandPublisher encodes velocity commands and sends them once on the command
// channel. It does not wait for any acknowledgement.
type CommandPublisher struct {
	transport     MessagePublisher
	topic         string
	defaultHeight float64
	logger        customlog.Logger
}

// NewCommandPublisher creates a publisher writing to topic on transport.
func NewCommandPublisher(transport MessagePublisher, topic string, defaultHeight float64, logger customlog.Logger) *CommandPublisher {
	if topic == "" {
		topic = DefaultCommandTopic
	}
	return &CommandPublisher{
		transport:     transport,
		topic:         topic,
		defaultHeight: defaultHeight,
		logger:        logger,
	}
}

// Publish encodes cmd and sends it. Encoding and send failures are returned as
// transport faults and are not retried.
func (p *CommandPublisher) Publish(cmd VelocityCommand) error {
	height := p.resolveHeight(cmd.Height)
	payload, err := EncodeCommand(cmd.XVel, cmd.YVel, cmd.YawVel, height)
	if err != nil {
		return fault.Wrap(fault.KindTransport, "publish", err)
	}
	if err := p.transport.PublishMessage(p.topic, payload); err != nil {
		return fault.Wrap(fault.KindTransport, "publish", err)
	}
	return nil
}

// Stop sends a zero-velocity command at the given height (nil for the default).
func (p *CommandPublisher) Stop(height *float64) error {
	return p.Publish(VelocityCommand{Height: height})
}

// DefaultHeight returns the height used when a command leaves it unspecified.
func (p *CommandPublisher) DefaultHeight() float64 {
	return p.defaultHeight
}

// Topic returns the command channel name.
func (p *CommandPublisher) Topic() string {
	return p.topic
}

func (p *CommandPublisher) resolveHeight(h *float64) float64 {
	if h == nil {
		return p.defaultHeight
	}
	return *h
}
