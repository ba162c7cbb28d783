package motion

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/open-teleop/motion-controller/pkg/fault"
)

// RotationState is a state of the rotation state machine.
type RotationState int

// Rotation states. Every state but START and CONVERGING is terminal.
const (
	StateStart RotationState = iota
	StateConverging
	StateConverged
	StateTimedOut
	StateUnavailable
	StateHeadingLost
	StateFailed
)

var rotationStateNames = map[RotationState]string{
	StateStart:       "START",
	StateConverging:  "CONVERGING",
	StateConverged:   "CONVERGED",
	StateTimedOut:    "TIMED_OUT",
	StateUnavailable: "UNAVAILABLE",
	StateHeadingLost: "HEADING_LOST",
	StateFailed:      "TRANSPORT_FAILED",
}

func (s RotationState) String() string {
	if name, ok := rotationStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("RotationState(%d)", int(s))
}

// Rotation timeout tuning: 20 s to turn 90° at yaw speed 1.5, scaled linearly.
const (
	referenceTimeout  = 20.0
	referenceAngleDeg = 90.0
	referenceYawSpeed = 1.5
)

// RotationRequest asks for an in-place turn by DeltaDeg degrees; positive is
// counter-clockwise (left).
type RotationRequest struct {
	DeltaDeg float64
	YawSpeed float64
	Height   *float64
}

// Validate checks the request bounds.
func (r RotationRequest) Validate() error {
	if math.IsNaN(r.DeltaDeg) || r.DeltaDeg < -180 || r.DeltaDeg > 180 {
		return fmt.Errorf("%w: angle %v outside [-180, 180]", ErrInvalidRotation, r.DeltaDeg)
	}
	if math.IsNaN(r.YawSpeed) || math.IsInf(r.YawSpeed, 0) || r.YawSpeed <= 0 {
		return fmt.Errorf("%w: yaw speed must be positive, got %v", ErrInvalidRotation, r.YawSpeed)
	}
	return nil
}

// RotationResult describes how a Rotate call ended.
type RotationResult struct {
	ID            string        `json:"id"`
	State         RotationState `json:"-"`
	StateName     string        `json:"state"`
	DeltaDeg      float64       `json:"delta_deg"`
	StartHeading  float64       `json:"start_heading_rad"`
	TargetHeading float64       `json:"target_heading_rad"`
	FinalHeading  float64       `json:"final_heading_rad"`
	FinalErrorRad float64       `json:"final_error_rad"`
	Timeout       time.Duration `json:"timeout"`
	Elapsed       time.Duration `json:"elapsed"`
	Commands      int           `json:"commands"`
}

// rotationSession is the state of one Rotate call.
type rotationSession struct {
	start       float64
	target      float64
	deadline    time.Time
	commandRate float64
}

// RotationTimeout returns how long a rotation of deltaDeg at yawSpeed may take.
func RotationTimeout(deltaDeg, yawSpeed float64) time.Duration {
	return time.Duration(RotationTimeoutSeconds(deltaDeg, yawSpeed) * float64(time.Second))
}

// RotationTimeoutSeconds is RotationTimeout in seconds.
func RotationTimeoutSeconds(deltaDeg, yawSpeed float64) float64 {
	return referenceTimeout * (math.Abs(deltaDeg) / referenceAngleDeg) * (referenceYawSpeed / math.Abs(yawSpeed))
}

// Rotate turns in place by req.DeltaDeg using heading feedback. The command
// direction is fixed at entry and the loop ends on convergence within tolerance,
// on timeout, or when the heading becomes unavailable. Every path that sent a
// command ends with a stop command.
//
// Errors: invalid request and busy faults send nothing; a missing heading at entry
// is a precondition fault; a timeout is a retryable timeout fault.
func (c *Controller) Rotate(req RotationRequest) (RotationResult, error) {
	result := RotationResult{ID: uuid.NewString(), State: StateStart, DeltaDeg: req.DeltaDeg}

	if err := req.Validate(); err != nil {
		return c.finish(result, fault.Wrap(fault.KindInvalidRequest, "rotate", err))
	}
	if !c.active.TryLock() {
		return c.finish(result, fault.Wrap(fault.KindBusy, "rotate", ErrBusy))
	}
	defer c.active.Unlock()

	logger := c.logger.WithField("rotation_id", result.ID)

	start, ok := c.estimator.Heading()
	if !ok {
		result.State = StateUnavailable
		logger.Warnf("Rotation rejected: %v", ErrHeadingUnavailable)
		return c.finish(result, fault.Wrap(fault.KindPrecondition, "rotate", ErrHeadingUnavailable))
	}

	startTime := c.clock.Now()
	timeout := RotationTimeout(req.DeltaDeg, req.YawSpeed)
	session := rotationSession{
		start:       start,
		target:      WrapToPi(start + Radians(req.DeltaDeg)),
		deadline:    startTime.Add(timeout),
		commandRate: commandRate(req.DeltaDeg, req.YawSpeed),
	}
	result.StartHeading = session.start
	result.TargetHeading = session.target
	result.Timeout = timeout
	result.State = StateConverging

	logger.Infof("Rotating %.1f° from %.1f° to %.1f° (rate %.2f, timeout %v)",
		req.DeltaDeg, Degrees(session.start), Degrees(session.target), session.commandRate, timeout)

	for {
		heading, ok := c.estimator.Heading()
		if !ok {
			result.State = StateHeadingLost
			result.Elapsed = c.clock.Since(startTime)
			logger.Warnf("Heading lost after %v, stopping", result.Elapsed)
			return c.finish(result, c.publisher.Stop(req.Height))
		}

		errRad := WrapToPi(session.target - heading)
		result.FinalHeading = heading
		result.FinalErrorRad = errRad

		if math.Abs(errRad) <= c.tolerance {
			result.State = StateConverged
			result.Elapsed = c.clock.Since(startTime)
			logger.Infof("Rotation converged at %.1f° (error %.2f°) after %v",
				Degrees(heading), Degrees(errRad), result.Elapsed)
			return c.finish(result, c.publisher.Stop(req.Height))
		}

		if !c.clock.Now().Before(session.deadline) {
			result.State = StateTimedOut
			result.Elapsed = c.clock.Since(startTime)
			logger.Warnf("Rotation timed out after %v with error %.2f°", result.Elapsed, Degrees(errRad))
			timeoutErr := fault.Wrap(fault.KindTimeout, "rotate", ErrRotationTimeout)
			return c.finish(result, multierr.Append(timeoutErr, c.publisher.Stop(req.Height)))
		}

		if err := c.publisher.Publish(VelocityCommand{YawVel: session.commandRate, Height: req.Height}); err != nil {
			result.State = StateFailed
			result.Elapsed = c.clock.Since(startTime)
			logger.Errorf("Publish failed during rotation: %v", err)
			return c.finish(result, multierr.Append(err, c.publisher.Stop(req.Height)))
		}
		result.Commands++
		c.clock.Sleep(c.period)
	}
}

// commandRate picks the fixed angular rate for a rotation. A positive angle turns
// counter-clockwise, which the actuator expects as a negative yaw rate.
func commandRate(deltaDeg, yawSpeed float64) float64 {
	if deltaDeg > 0 {
		return -math.Abs(yawSpeed)
	}
	return math.Abs(yawSpeed)
}

func (c *Controller) finish(result RotationResult, err error) (RotationResult, error) {
	result.StateName = result.State.String()
	if result.State != StateStart {
		c.recordRotation(result)
	}
	return result, err
}
