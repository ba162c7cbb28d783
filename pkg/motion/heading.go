package motion

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// AttitudeSample is the most recent heading derived from attitude telemetry.
type AttitudeSample struct {
	HeadingRad float64
	ReceivedAt time.Time
}

// HeadingEstimator caches the latest heading reported by attitude telemetry.
// OnTelemetry is called by the subscription goroutine; Heading may be called from
// any number of goroutines concurrently.
type HeadingEstimator struct {
	clock  clock.Clock
	maxAge time.Duration

	mu     sync.RWMutex
	sample *AttitudeSample

	dropped atomic.Int64
}

// NewHeadingEstimator creates an estimator. A positive maxAge makes samples older
// than maxAge read as unavailable.
func NewHeadingEstimator(clk clock.Clock, maxAge time.Duration) *HeadingEstimator {
	if clk == nil {
		clk = clock.New()
	}
	return &HeadingEstimator{clock: clk, maxAge: maxAge}
}

// OnTelemetry consumes one orientation quaternion in [x, y, z, w] order and replaces
// the cached sample. Malformed input is counted and dropped.
func (e *HeadingEstimator) OnTelemetry(quaternion []float64) {
	if len(quaternion) != 4 {
		e.dropped.Add(1)
		return
	}
	yaw, err := QuaternionToYaw(quaternion[0], quaternion[1], quaternion[2], quaternion[3])
	if err != nil {
		e.dropped.Add(1)
		return
	}

	sample := &AttitudeSample{HeadingRad: yaw, ReceivedAt: e.clock.Now()}

	e.mu.Lock()
	e.sample = sample
	e.mu.Unlock()
}

// Heading returns the latest heading in radians, or false if none is available.
func (e *HeadingEstimator) Heading() (float64, bool) {
	s, ok := e.Sample()
	if !ok {
		return 0, false
	}
	return s.HeadingRad, true
}

// HeadingDeg is Heading in degrees.
func (e *HeadingEstimator) HeadingDeg() (float64, bool) {
	h, ok := e.Heading()
	return Degrees(h), ok
}

// Sample returns a copy of the latest sample, or false if none has arrived yet or
// the sample is older than the configured maximum age.
func (e *HeadingEstimator) Sample() (AttitudeSample, bool) {
	s, ok := e.Latest()
	if !ok {
		return AttitudeSample{}, false
	}
	if e.maxAge > 0 && e.clock.Since(s.ReceivedAt) > e.maxAge {
		return AttitudeSample{}, false
	}
	return s, true
}

// Latest returns the last stored sample regardless of its age.
func (e *HeadingEstimator) Latest() (AttitudeSample, bool) {
	e.mu.RLock()
	s := e.sample
	e.mu.RUnlock()

	if s == nil {
		return AttitudeSample{}, false
	}
	return *s, true
}

// DroppedCount is the number of telemetry updates rejected as malformed.
func (e *HeadingEstimator) DroppedCount() int64 {
	return e.dropped.Load()
}

// Age returns how long ago the latest sample arrived, or false if none has.
func (e *HeadingEstimator) Age() (time.Duration, bool) {
	s, ok := e.Latest()
	if !ok {
		return 0, false
	}
	return e.clock.Since(s.ReceivedAt), true
}
