// Package teleop exposes the robot capability surface over HTTP.
package teleop

import (
	"fmt"
	"math"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/motion-controller/domain/robot"
	"github.com/open-teleop/motion-controller/pkg/api"
	"github.com/open-teleop/motion-controller/pkg/fault"
	customlog "github.com/open-teleop/motion-controller/pkg/log"
)

// MaxMoveDuration bounds a single move request.
const MaxMoveDuration = 60 * time.Second

// MoveRequest asks the robot to walk for a while.
type MoveRequest struct {
	Direction   string  `json:"direction"`
	DurationSec float64 `json:"duration_sec"`
}

// RotateRequest asks the robot to turn in place; positive is counter-clockwise.
type RotateRequest struct {
	AngleDeg float64 `json:"angle_deg"`
}

// TeleopService handles robot capability calls
type TeleopService struct {
	robot  robot.Robot
	logger customlog.Logger
}

// NewTeleopService creates a new teleop service instance
func NewTeleopService(r robot.Robot, logger customlog.Logger) *TeleopService {
	return &TeleopService{robot: r, logger: logger.WithField(customlog.ComponentField, "teleop")}
}

// RegisterRoutes mounts the capability endpoints under router. Extra handlers,
// such as authentication, run before each of them.
func (s *TeleopService) RegisterRoutes(router fiber.Router, middleware ...fiber.Handler) {
	group := router.Group("/robot", middleware...)
	group.Get("/description", s.DescriptionHandler)
	group.Get("/rotation", s.RotationHandler)
	group.Post("/move", s.MoveHandler)
	group.Post("/rotate", s.RotateHandler)
}

// DescriptionHandler returns the robot summary.
func (s *TeleopService) DescriptionHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"description": s.robot.Description()})
}

// RotationHandler returns the current heading in degrees.
func (s *TeleopService) RotationHandler(c *fiber.Ctx) error {
	heading, err := s.robot.Rotation()
	if err != nil {
		return api.WriteError(c, err)
	}
	return c.JSON(fiber.Map{"heading_deg": heading})
}

// MoveHandler walks the robot in a direction for a duration.
func (s *TeleopService) MoveHandler(c *fiber.Ctx) error {
	var req MoveRequest
	if err := c.BodyParser(&req); err != nil {
		return api.WriteError(c, fault.Wrap(fault.KindInvalidRequest, "move", err))
	}

	direction, err := robot.ParseDirection(req.Direction)
	if err != nil {
		return api.WriteError(c, err)
	}
	duration, err := s.ValidateDuration(req.DurationSec)
	if err != nil {
		return api.WriteError(c, err)
	}

	s.logger.Infof("Move %s for %v requested by %s", direction, duration, c.IP())
	if err := s.robot.Move(direction, duration); err != nil {
		s.logger.Warnf("Move %s failed: %v", direction, err)
		return api.WriteError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":       "done",
		"direction":    direction,
		"duration_sec": duration.Seconds(),
	})
}

// RotateHandler turns the robot in place and reports how the rotation ended.
func (s *TeleopService) RotateHandler(c *fiber.Ctx) error {
	var req RotateRequest
	if err := c.BodyParser(&req); err != nil {
		return api.WriteError(c, fault.Wrap(fault.KindInvalidRequest, "rotate", err))
	}

	s.logger.Infof("Rotate %.1f degrees requested by %s", req.AngleDeg, c.IP())
	result, err := s.robot.Rotate(req.AngleDeg)
	if err != nil {
		s.logger.Warnf("Rotate %.1f failed: %v", req.AngleDeg, err)
		return c.Status(api.StatusFor(err)).JSON(fiber.Map{
			"error":     err.Error(),
			"kind":      fault.KindOf(err).String(),
			"retryable": fault.IsRetryable(err),
			"result":    result,
		})
	}
	return c.JSON(result)
}

// ValidateDuration converts seconds into a move duration. Zero or negative
// durations are allowed and only stop the robot.
func (s *TeleopService) ValidateDuration(seconds float64) (time.Duration, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, fault.New(fault.KindInvalidRequest, "move", "duration must be a finite number of seconds")
	}
	if seconds > MaxMoveDuration.Seconds() {
		return 0, fault.Wrap(fault.KindInvalidRequest, "move", fmt.Errorf("duration %gs exceeds %v", seconds, MaxMoveDuration))
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
