package telemetry

import (
	"sync/atomic"

	customlog "github.com/open-teleop/motion-controller/pkg/log"
)

// QuaternionSink receives an [x, y, z, w] orientation.
type QuaternionSink func(quaternion []float64)

// Handler decodes attitude messages from a subscription and forwards the
// quaternion to a sink. Undecodable payloads are dropped and counted.
type Handler struct {
	sink    QuaternionSink
	logger  customlog.Logger
	decoded atomic.Int64
	dropped atomic.Int64
}

// NewHandler creates a handler feeding sink.
func NewHandler(sink QuaternionSink, logger customlog.Logger) *Handler {
	return &Handler{sink: sink, logger: logger}
}

// HandleMessage decodes one payload received on topic.
func (h *Handler) HandleMessage(topic string, payload []byte) error {
	a, err := Decode(payload)
	if err != nil {
		n := h.dropped.Add(1)
		// Log the first drop and then every hundredth to avoid flooding at 500 Hz.
		if n == 1 || n%100 == 0 {
			h.logger.Warnf("Dropping attitude message on %s (%d dropped so far): %v", topic, n, err)
		}
		return err
	}
	h.decoded.Add(1)
	h.sink(a.Quaternion[:])
	return nil
}

// Decoded is the number of messages forwarded to the sink.
func (h *Handler) Decoded() int64 {
	return h.decoded.Load()
}

// Dropped is the number of messages that could not be decoded.
func (h *Handler) Dropped() int64 {
	return h.dropped.Load()
}
