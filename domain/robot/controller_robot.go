package robot

import (
	"time"

	"go.uber.org/multierr"

	"github.com/open-teleop/motion-controller/pkg/camera"
	"github.com/open-teleop/motion-controller/pkg/fault"
	customlog "github.com/open-teleop/motion-controller/pkg/log"
	"github.com/open-teleop/motion-controller/pkg/motion"
)

// ControllerRobot drives a robot through a motion.Controller. The unitree and
// sim backends differ only in the transport and frame source behind it.
type ControllerRobot struct {
	backend     string
	description string
	controller  *motion.Controller
	snapshotter *camera.Snapshotter
	deadline    time.Duration
	speeds      SpeedSource
	closers     []func() error
	logger      customlog.Logger
}

var _ Robot = (*ControllerRobot)(nil)
var _ Diagnosable = (*ControllerRobot)(nil)

// NewControllerRobot wires a controller and snapshotter into a Robot. closers run
// in reverse order on Close.
func NewControllerRobot(backend, description string, controller *motion.Controller, snapshotter *camera.Snapshotter,
	deadline time.Duration, speeds SpeedSource, logger customlog.Logger, closers ...func() error) *ControllerRobot {
	if deadline <= 0 {
		deadline = camera.DefaultDeadline
	}
	return &ControllerRobot{
		backend:     backend,
		description: description,
		controller:  controller,
		snapshotter: snapshotter,
		deadline:    deadline,
		speeds:      speeds,
		closers:     closers,
		logger:      logger.WithField("backend", backend),
	}
}

// Description returns the robot summary.
func (r *ControllerRobot) Description() string {
	return r.description
}

// Controller exposes the motion controller.
func (r *ControllerRobot) Controller() *motion.Controller {
	return r.controller
}

// Move walks in direction at the tuned walking speed.
func (r *ControllerRobot) Move(direction Direction, duration time.Duration) error {
	speed := r.speeds.Speeds().WalkSpeed
	cmd, err := direction.Command(speed)
	if err != nil {
		return err
	}
	r.logger.Infof("Walking %s for %v at speed %.2f", direction, duration, speed)

	if err := r.controller.MoveFor(duration, cmd); err != nil {
		r.logger.Errorf("Error while walking: %v", err)
		return err
	}
	return nil
}

// Rotate turns by angleDeg at the tuned yaw speed.
func (r *ControllerRobot) Rotate(angleDeg float64) (motion.RotationResult, error) {
	if err := validateAngle(angleDeg); err != nil {
		return motion.RotationResult{}, err
	}
	speed := r.speeds.Speeds().YawSpeed
	r.logger.Infof("Rotating %.1f degrees at speed %.2f", angleDeg, speed)

	result, err := r.controller.Rotate(motion.RotationRequest{DeltaDeg: angleDeg, YawSpeed: speed})
	if err != nil {
		r.logger.Errorf("Error while rotating: %v", err)
	}
	return result, err
}

// Rotation returns the current heading in degrees.
func (r *ControllerRobot) Rotation() (float64, error) {
	deg, ok := r.controller.HeadingDeg()
	if !ok {
		return 0, fault.Wrap(fault.KindPrecondition, "rotation", motion.ErrHeadingUnavailable)
	}
	return deg, nil
}

// CameraSnapshot returns a PNG of the main camera.
func (r *ControllerRobot) CameraSnapshot() (camera.Snapshot, error) {
	if r.snapshotter == nil {
		return camera.Snapshot{}, fault.Wrap(fault.KindPrecondition, "snapshot", ErrNoCamera)
	}
	snap, err := r.snapshotter.Snapshot(r.deadline)
	if err != nil {
		r.logger.Errorf("Error while getting camera snapshot: %v", err)
	}
	return snap, err
}

// HeadingAge returns how long ago the heading was last updated.
func (r *ControllerRobot) HeadingAge() (time.Duration, bool) {
	return r.controller.Estimator().Age()
}

// Diagnostics reports heading freshness and the last rotation.
func (r *ControllerRobot) Diagnostics() Diagnostics {
	est := r.controller.Estimator()
	d := Diagnostics{Backend: r.backend, DroppedTelemetry: est.DroppedCount()}

	if deg, ok := est.HeadingDeg(); ok {
		d.HeadingDeg = &deg
	}
	if age, ok := r.HeadingAge(); ok {
		ms := age.Milliseconds()
		d.SampleAgeMs = &ms
	}
	if last, ok := r.controller.LastRotation(); ok {
		d.LastRotation = &last
	}
	return d
}

// Close sends a final stop and releases the backend.
func (r *ControllerRobot) Close() error {
	err := r.controller.Stop(nil)
	for i := len(r.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, r.closers[i]())
	}
	return err
}
