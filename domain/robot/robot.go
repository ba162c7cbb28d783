// Package robot is the capability surface callers drive a robot through: walk in
// a direction for a while, rotate by an angle, read the heading and take a camera
// snapshot. Backends differ in how commands reach the actuator.
package robot

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/open-teleop/motion-controller/pkg/camera"
	"github.com/open-teleop/motion-controller/pkg/config"
	"github.com/open-teleop/motion-controller/pkg/fault"
	"github.com/open-teleop/motion-controller/pkg/motion"
)

// Direction is a walking direction relative to the robot body.
type Direction string

// Walking directions
const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
	Left     Direction = "left"
	Right    Direction = "right"
)

// Common errors
var (
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidAngle     = errors.New("angle must be within [-180, 180] degrees")
	ErrNoCamera         = errors.New("robot has no camera")
)

// ParseDirection validates a direction name.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Forward, Backward, Left, Right:
		return d, nil
	}
	return "", fault.Wrap(fault.KindInvalidRequest, "move", fmt.Errorf("%w: %q", ErrInvalidDirection, s))
}

// Command returns the velocity command that walks in d at speed.
func (d Direction) Command(speed float64) (motion.VelocityCommand, error) {
	switch d {
	case Forward:
		return motion.VelocityCommand{XVel: math.Abs(speed)}, nil
	case Backward:
		return motion.VelocityCommand{XVel: -math.Abs(speed)}, nil
	case Left:
		return motion.VelocityCommand{YVel: -math.Abs(speed)}, nil
	case Right:
		return motion.VelocityCommand{YVel: math.Abs(speed)}, nil
	}
	return motion.VelocityCommand{}, fault.Wrap(fault.KindInvalidRequest, "move", fmt.Errorf("%w: %q", ErrInvalidDirection, string(d)))
}

// Robot is implemented by every backend.
type Robot interface {
	// Description is a short human-readable summary of the robot.
	Description() string
	// Move walks in direction for duration and then stops.
	Move(direction Direction, duration time.Duration) error
	// Rotate turns in place by angleDeg; positive is counter-clockwise.
	Rotate(angleDeg float64) (motion.RotationResult, error)
	// Rotation returns the current absolute heading in degrees.
	Rotation() (float64, error)
	// CameraSnapshot returns the next frame of the main camera as PNG.
	CameraSnapshot() (camera.Snapshot, error)
	Close() error
}

// Diagnostics is the observable state of a robot backend.
type Diagnostics struct {
	Backend          string                 `json:"backend"`
	HeadingDeg       *float64               `json:"heading_deg"`
	SampleAgeMs      *int64                 `json:"sample_age_ms"`
	DroppedTelemetry int64                  `json:"dropped_telemetry"`
	LastRotation     *motion.RotationResult `json:"last_rotation,omitempty"`
}

// Diagnosable is implemented by backends that report Diagnostics.
type Diagnosable interface {
	Diagnostics() Diagnostics
}

// SpeedSource supplies the current capability speeds.
type SpeedSource interface {
	Speeds() config.TuningConfig
}

// StaticSpeeds is a SpeedSource that never changes.
type StaticSpeeds config.TuningConfig

// Speeds returns the fixed tuning.
func (s StaticSpeeds) Speeds() config.TuningConfig {
	return config.TuningConfig(s)
}

func validateAngle(angleDeg float64) error {
	if math.IsNaN(angleDeg) || angleDeg < -180 || angleDeg > 180 {
		return fault.Wrap(fault.KindInvalidRequest, "rotate", fmt.Errorf("%w: got %v", ErrInvalidAngle, angleDeg))
	}
	return nil
}
