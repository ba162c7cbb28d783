package robot

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/open-teleop/motion-controller/pkg/camera"
	"github.com/open-teleop/motion-controller/pkg/fault"
	customlog "github.com/open-teleop/motion-controller/pkg/log"
	"github.com/open-teleop/motion-controller/pkg/motion"
)

// FakeRobot only logs what it is asked to do. Rotations complete instantly so
// Rotation keeps answering consistently.
type FakeRobot struct {
	description string
	logger      customlog.Logger

	mu      sync.Mutex
	heading float64 // radians
	actions []string
}

var _ Robot = (*FakeRobot)(nil)
var _ Diagnosable = (*FakeRobot)(nil)

// NewFakeRobot creates a fake robot facing heading 0.
func NewFakeRobot(description string, logger customlog.Logger) *FakeRobot {
	if description == "" {
		description = "A fake robot for testing."
	}
	return &FakeRobot{description: description, logger: logger.WithField("backend", "fake")}
}

func (r *FakeRobot) record(format string, args ...interface{}) {
	r.logger.Infof("[ACTION] "+format, args...)
}

// Description returns the robot summary.
func (r *FakeRobot) Description() string {
	return r.description
}

// Move logs the walk.
func (r *FakeRobot) Move(direction Direction, duration time.Duration) error {
	if _, err := direction.Command(1); err != nil {
		return err
	}
	r.mu.Lock()
	r.actions = append(r.actions, "move "+string(direction))
	r.mu.Unlock()
	r.record("Fake robot walking %s for %v", direction, duration)
	return nil
}

// Rotate logs the turn and applies it to the heading.
func (r *FakeRobot) Rotate(angleDeg float64) (motion.RotationResult, error) {
	if err := validateAngle(angleDeg); err != nil {
		return motion.RotationResult{}, err
	}

	r.mu.Lock()
	start := r.heading
	r.heading = motion.WrapToPi(start + motion.Radians(angleDeg))
	final := r.heading
	r.actions = append(r.actions, "rotate")
	r.mu.Unlock()

	r.record("Fake robot rotating %.1f degrees", angleDeg)
	return motion.RotationResult{
		ID:            uuid.NewString(),
		State:         motion.StateConverged,
		StateName:     motion.StateConverged.String(),
		DeltaDeg:      angleDeg,
		StartHeading:  start,
		TargetHeading: final,
		FinalHeading:  final,
	}, nil
}

// Rotation returns the integrated heading in degrees.
func (r *FakeRobot) Rotation() (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return motion.Degrees(r.heading), nil
}

// CameraSnapshot always fails: the fake robot has no camera.
func (r *FakeRobot) CameraSnapshot() (camera.Snapshot, error) {
	r.record("Fake robot has no camera to take a snapshot with")
	return camera.Snapshot{}, fault.Wrap(fault.KindPrecondition, "snapshot", ErrNoCamera)
}

// Actions returns the actions performed so far.
func (r *FakeRobot) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.actions...)
}

// Diagnostics reports the integrated heading.
func (r *FakeRobot) Diagnostics() Diagnostics {
	deg, _ := r.Rotation()
	return Diagnostics{Backend: "fake", HeadingDeg: &deg}
}

// Close does nothing.
func (r *FakeRobot) Close() error {
	return nil
}
