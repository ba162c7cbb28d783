// Package video serves still camera snapshots over HTTP.
package video

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/motion-controller/domain/robot"
	"github.com/open-teleop/motion-controller/pkg/api"
	"github.com/open-teleop/motion-controller/pkg/camera"
	customlog "github.com/open-teleop/motion-controller/pkg/log"
)

// Status summarizes the snapshots taken so far.
type Status struct {
	Snapshots    int64            `json:"snapshots"`
	Failures     int64            `json:"failures"`
	LastError    string           `json:"last_error,omitempty"`
	LastSnapshot *camera.Snapshot `json:"last_snapshot,omitempty"`
	LastAttempt  *time.Time       `json:"last_attempt,omitempty"`
}

// VideoService takes camera snapshots from a robot
type VideoService struct {
	robot  robot.Robot
	logger customlog.Logger

	mu     sync.RWMutex
	status Status
}

// NewVideoService creates a new video service instance
func NewVideoService(r robot.Robot, logger customlog.Logger) *VideoService {
	return &VideoService{robot: r, logger: logger.WithField(customlog.ComponentField, "video")}
}

// RegisterRoutes mounts the video endpoints under router.
func (s *VideoService) RegisterRoutes(router fiber.Router, middleware ...fiber.Handler) {
	group := router.Group("/video", middleware...)
	group.Get("/snapshot", s.SnapshotHandler)
	group.Get("/status", s.StatusHandler)
}

// SnapshotHandler returns the next camera frame as a PNG image.
func (s *VideoService) SnapshotHandler(c *fiber.Ctx) error {
	snap, err := s.Snapshot()
	if err != nil {
		return api.WriteError(c, err)
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set("X-Camera", snap.Camera)
	c.Set("X-Image-Width", strconv.Itoa(snap.Width))
	c.Set("X-Image-Height", strconv.Itoa(snap.Height))
	c.Set("X-Stream-FPS", strconv.FormatFloat(snap.FPS, 'f', 1, 64))
	return c.Send(snap.PNG)
}

// StatusHandler reports snapshot counters and the last result.
func (s *VideoService) StatusHandler(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

// Snapshot takes a snapshot and records the outcome.
func (s *VideoService) Snapshot() (camera.Snapshot, error) {
	snap, err := s.robot.CameraSnapshot()
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastAttempt = &now
	if err != nil {
		s.status.Failures++
		s.status.LastError = err.Error()
		s.logger.Warnf("Snapshot failed: %v", err)
		return camera.Snapshot{}, err
	}
	s.status.Snapshots++
	s.status.LastError = ""
	meta := snap
	meta.PNG = nil
	s.status.LastSnapshot = &meta
	s.logger.Debugf("Snapshot %dx%d from %s (%d bytes)", snap.Width, snap.Height, snap.Camera, len(snap.PNG))
	return snap, nil
}

// Status returns a copy of the snapshot counters.
func (s *VideoService) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}
