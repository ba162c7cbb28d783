package zeromq

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pebbe/zmq4"
	"go.uber.org/multierr"

	"github.com/open-teleop/motion-controller/pkg/config"
	customlog "github.com/open-teleop/motion-controller/pkg/log"
	"github.com/open-teleop/motion-controller/pkg/processing"
)

// Common errors
var (
	ErrServiceClosed = errors.New("zeromq service is closed")
	ErrNoHandler     = errors.New("no handler registered for topic")
)

// Message types
const (
	MsgTypeConfigUpdated = "CONFIG_UPDATED"
	MsgTypeError         = "ERROR"
)

// ZeroMQMessage represents a generic JSON message structure for ZeroMQ communication
type ZeroMQMessage struct {
	Type      string      `json:"type"`
	Timestamp float64     `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// MessageSender publishes (topic, payload) pairs on a PUB socket
type MessageSender struct {
	socket   *zmq4.Socket
	registry *processing.TopicRegistry
	logger   customlog.Logger
	running  bool
	mu       sync.Mutex
}

// newMessageSender creates a PUB socket bound to address
func newMessageSender(ctx *zmq4.Context, address string, registry *processing.TopicRegistry, logger customlog.Logger) (*MessageSender, error) {
	socket, err := ctx.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}

	if err := socket.Bind(address); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", address, err)
	}

	logger.Infof("MessageSender initialized on %s", address)

	return &MessageSender{
		socket:   socket,
		registry: registry,
		logger:   logger,
		running:  true,
	}, nil
}

// PublishMessage sends a message with the given topic
func (s *MessageSender) PublishMessage(topic string, message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrServiceClosed
	}

	// Topic frame first, then the payload
	if _, err := s.socket.Send(topic, zmq4.SNDMORE); err != nil {
		s.registry.RecordError(topic)
		return fmt.Errorf("failed to send topic: %w", err)
	}
	if _, err := s.socket.SendBytes(message, 0); err != nil {
		s.registry.RecordError(topic)
		return fmt.Errorf("failed to send message: %w", err)
	}

	s.registry.UpdateTopicStats(topic, time.Now().UnixNano())
	return nil
}

// Close cleans up resources
func (s *MessageSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	if s.socket == nil {
		return nil
	}
	err := s.socket.Close()
	s.socket = nil
	return err
}

// ZeroMQService owns the ZeroMQ context, the command sender and every subscriber
type ZeroMQService struct {
	config      config.ZeroMQBootstrap
	ctx         *zmq4.Context
	sender      *MessageSender
	subscribers []*Subscriber
	registry    *processing.TopicRegistry
	logger      customlog.Logger
	running     bool
	mu          sync.Mutex
}

// NewZeroMQService creates the context and binds the command PUB socket
func NewZeroMQService(cfg config.ZeroMQBootstrap, registry *processing.TopicRegistry, logger customlog.Logger) (*ZeroMQService, error) {
	ctx, err := zmq4.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ context: %w", err)
	}

	sender, err := newMessageSender(ctx, cfg.CommandAddress, registry, logger)
	if err != nil {
		ctx.Term()
		return nil, err
	}

	return &ZeroMQService{
		config:   cfg,
		ctx:      ctx,
		sender:   sender,
		registry: registry,
		logger:   logger,
	}, nil
}

// Subscribe creates a SUB socket connected to address and dispatching the given
// topics to handler. Subscribers added before Start are started with the service.
func (s *ZeroMQService) Subscribe(address string, topics []string, handler MessageHandler) (*Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dispatcher := NewMessageDispatcher(s.logger)
	for _, topic := range topics {
		dispatcher.RegisterHandler(topic, handler)
		s.registry.Register(topic, config.DirectionInbound)
	}

	reconnect := time.Duration(s.config.ReconnectIntervalMs) * time.Millisecond
	sub, err := newSubscriber(s.ctx, address, topics, reconnect, dispatcher, s.registry, s.logger)
	if err != nil {
		return nil, err
	}
	s.subscribers = append(s.subscribers, sub)
	if s.running {
		sub.Start()
	}
	return sub, nil
}

// Start begins every subscriber receive loop
func (s *ZeroMQService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true
	s.logger.Infof("Starting ZeroMQ service with %d subscribers", len(s.subscribers))

	for _, sub := range s.subscribers {
		sub.Start()
	}
	return nil
}

// Stop halts the subscribers, closes every socket and terminates the context
func (s *ZeroMQService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		return nil
	}
	s.logger.Infof("Stopping ZeroMQ service")
	s.running = false

	var err error
	for _, sub := range s.subscribers {
		err = multierr.Append(err, sub.Stop())
	}
	err = multierr.Append(err, s.sender.Close())
	err = multierr.Append(err, s.ctx.Term())
	s.ctx = nil

	s.logger.Infof("ZeroMQ service stopped")
	return err
}

// PublishMessage sends a message with the given topic
func (s *ZeroMQService) PublishMessage(topic string, message []byte) error {
	return s.sender.PublishMessage(topic, message)
}

// PublishJSON publishes a JSON-serializable message with the given topic
func (s *ZeroMQService) PublishJSON(topic string, messageType string, data interface{}) error {
	msg := ZeroMQMessage{
		Type:      messageType,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Data:      data,
	}

	msgData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return s.PublishMessage(topic, msgData)
}
