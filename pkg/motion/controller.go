// Package motion implements the closed-loop motion core: heading estimation from
// attitude telemetry, velocity command publishing, open-loop duration streaming and
// a closed-loop in-place rotation.
package motion

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	customlog "github.com/open-teleop/motion-controller/pkg/log"
)

// Controller defaults
const (
	DefaultHeight       = 0.8
	DefaultRateHz       = 100.0
	DefaultToleranceDeg = 2.0
	DefaultYawSpeed     = 1.5
)

// Options configures a Controller.
type Options struct {
	CommandTopic  string
	DefaultHeight float64
	// RateHz is the publish rate of every control loop. Non-positive means 100 Hz.
	RateHz float64
	// ToleranceDeg is the rotation convergence tolerance. Non-positive means 2°.
	ToleranceDeg float64
	// MaxSampleAge makes older heading samples read as unavailable. Zero disables it.
	MaxSampleAge time.Duration
	Clock        clock.Clock
}

// DefaultOptions returns the stock controller tuning.
func DefaultOptions() Options {
	return Options{
		CommandTopic:  DefaultCommandTopic,
		DefaultHeight: DefaultHeight,
		RateHz:        DefaultRateHz,
		ToleranceDeg:  DefaultToleranceDeg,
	}
}

// Controller drives one robot through its command channel, using the heading
// estimator for closed-loop moves. At most one motion primitive runs at a time.
type Controller struct {
	estimator *HeadingEstimator
	publisher *CommandPublisher
	clock     clock.Clock
	period    time.Duration
	tolerance float64 // radians
	logger    customlog.Logger

	// active is held for the duration of MoveFor and Rotate.
	active sync.Mutex

	mu           sync.RWMutex
	lastRotation *RotationResult
}

// NewController creates a controller publishing on transport.
func NewController(transport MessagePublisher, opts Options, logger customlog.Logger) *Controller {
	logger = logger.WithField(customlog.ComponentField, "motion")
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	period := 10 * time.Millisecond
	if opts.RateHz > 0 {
		period = time.Duration(float64(time.Second) / opts.RateHz)
	}

	toleranceDeg := opts.ToleranceDeg
	if toleranceDeg <= 0 {
		toleranceDeg = DefaultToleranceDeg
	}

	logger.Infof("Motion controller initialized: topic=%s, default_height=%.2f, period=%v, tolerance=%.2f°",
		opts.CommandTopic, opts.DefaultHeight, period, toleranceDeg)

	return &Controller{
		estimator: NewHeadingEstimator(clk, opts.MaxSampleAge),
		publisher: NewCommandPublisher(transport, opts.CommandTopic, opts.DefaultHeight, logger),
		clock:     clk,
		period:    period,
		tolerance: Radians(toleranceDeg),
		logger:    logger,
	}
}

// OnTelemetry is the callback registered with the attitude subscription.
func (c *Controller) OnTelemetry(quaternion []float64) {
	c.estimator.OnTelemetry(quaternion)
}

// Estimator exposes the heading estimator for read-only consumers.
func (c *Controller) Estimator() *HeadingEstimator {
	return c.estimator
}

// Heading returns the latest heading in radians.
func (c *Controller) Heading() (float64, bool) {
	return c.estimator.Heading()
}

// HeadingDeg returns the latest heading in degrees.
func (c *Controller) HeadingDeg() (float64, bool) {
	return c.estimator.HeadingDeg()
}

// Publish sends a single command.
func (c *Controller) Publish(cmd VelocityCommand) error {
	return c.publisher.Publish(cmd)
}

// Stop sends a single zero-velocity command.
func (c *Controller) Stop(height *float64) error {
	return c.publisher.Stop(height)
}

// Period returns the control loop period.
func (c *Controller) Period() time.Duration {
	return c.period
}

// LastRotation returns the result of the most recent Rotate call.
func (c *Controller) LastRotation() (RotationResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastRotation == nil {
		return RotationResult{}, false
	}
	return *c.lastRotation, true
}

func (c *Controller) recordRotation(r RotationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRotation = &r
}
