package zeromq

import (
	"fmt"
	"sync"
	"time"

	"github.com/pebbe/zmq4"

	customlog "github.com/open-teleop/motion-controller/pkg/log"
	"github.com/open-teleop/motion-controller/pkg/processing"
)

// pollTimeout bounds how long Stop waits for the receive loop to notice.
const pollTimeout = 100 * time.Millisecond

// Subscriber receives (topic, payload) messages on a SUB socket and hands them to
// a dispatcher from a single goroutine.
type Subscriber struct {
	address    string
	socket     *zmq4.Socket
	poller     *zmq4.Poller
	dispatcher *MessageDispatcher
	registry   *processing.TopicRegistry
	logger     customlog.Logger
	topics     map[string]struct{}

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
}

// newSubscriber connects a SUB socket to address and subscribes to topics
func newSubscriber(ctx *zmq4.Context, address string, topics []string, reconnect time.Duration,
	dispatcher *MessageDispatcher, registry *processing.TopicRegistry, logger customlog.Logger) (*Subscriber, error) {
	socket, err := ctx.NewSocket(zmq4.SUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create SUB socket: %w", err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}
	if reconnect > 0 {
		if err := socket.SetReconnectIvl(reconnect); err != nil {
			socket.Close()
			return nil, fmt.Errorf("failed to set reconnect interval: %w", err)
		}
	}
	subscribed := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		subscribed[topic] = struct{}{}
		if err := socket.SetSubscribe(topic); err != nil {
			socket.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}
	if err := socket.Connect(address); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	poller := zmq4.NewPoller()
	poller.Add(socket, zmq4.POLLIN)

	logger.Infof("Subscriber connected to %s for topics %v", address, topics)

	return &Subscriber{
		address:    address,
		socket:     socket,
		poller:     poller,
		dispatcher: dispatcher,
		registry:   registry,
		logger:     logger.WithField("address", address),
		topics:     subscribed,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Start begins the receive loop
func (s *Subscriber) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true
	go s.receiveLoop()
}

// Stop ends the receive loop and closes the socket
func (s *Subscriber) Stop() error {
	s.mu.Lock()
	started := s.started
	select {
	case <-s.stop:
		s.mu.Unlock()
		return nil
	default:
		close(s.stop)
	}
	s.mu.Unlock()

	if started {
		<-s.done
		return nil
	}
	return s.socket.Close()
}

// receiveLoop owns the socket until it exits
func (s *Subscriber) receiveLoop() {
	defer close(s.done)
	defer s.socket.Close()

	s.logger.Infof("Subscriber started")
	for {
		select {
		case <-s.stop:
			s.logger.Infof("Subscriber stopped")
			return
		default:
		}

		polled, err := s.poller.Poll(pollTimeout)
		if err != nil {
			if zmq4.AsErrno(err) == zmq4.ETERM {
				return
			}
			s.logger.Warnf("Error polling socket: %v", err)
			time.Sleep(pollTimeout)
			continue
		}
		if len(polled) == 0 {
			continue
		}

		parts, err := s.socket.RecvMessageBytes(0)
		if err != nil {
			s.logger.Warnf("Error receiving message: %v", err)
			continue
		}
		if len(parts) != 2 {
			s.logger.Warnf("Dropping message with %d frames, want topic and payload", len(parts))
			continue
		}

		// SUB filters on prefixes; "head" also admits "head_depth".
		topic := string(parts[0])
		if _, ok := s.topics[topic]; !ok {
			s.logger.Debugf("Ignoring %s, not an exact subscribed topic", topic)
			continue
		}
		if err := s.dispatcher.Dispatch(topic, parts[1]); err != nil {
			s.registry.RecordError(topic)
			s.logger.Debugf("Handler for %s failed: %v", topic, err)
			continue
		}
		s.registry.UpdateTopicStats(topic, time.Now().UnixNano())
	}
}
