package zeromq

import (
	"fmt"
	"sync"

	customlog "github.com/open-teleop/motion-controller/pkg/log"
)

// MessageHandler processes one message received on a subscribed topic
type MessageHandler interface {
	HandleMessage(topic string, data []byte) error
}

// HandlerFunc is a function type that implements MessageHandler
type HandlerFunc func(topic string, data []byte) error

// HandleMessage calls the function
func (f HandlerFunc) HandleMessage(topic string, data []byte) error {
	return f(topic, data)
}

// MessageDispatcher routes messages to the handler registered for their topic
type MessageDispatcher struct {
	handlers map[string]MessageHandler
	logger   customlog.Logger
	mu       sync.RWMutex
}

// NewMessageDispatcher creates a new message dispatcher
func NewMessageDispatcher(logger customlog.Logger) *MessageDispatcher {
	return &MessageDispatcher{
		handlers: make(map[string]MessageHandler),
		logger:   logger,
	}
}

// RegisterHandler adds a handler for a specific topic
func (d *MessageDispatcher) RegisterHandler(topic string, handler MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[topic] = handler
	d.logger.Debugf("Registered handler for topic: %s", topic)
}

// Dispatch hands data to the handler of topic
func (d *MessageDispatcher) Dispatch(topic string, data []byte) error {
	d.mu.RLock()
	handler, exists := d.handlers[topic]
	d.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrNoHandler, topic)
	}
	return handler.HandleMessage(topic, data)
}
