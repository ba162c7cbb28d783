// Package diagnostic reports the health of the controller and its robot.
package diagnostic

import (
	"runtime"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/motion-controller/domain/robot"
	"github.com/open-teleop/motion-controller/pkg/processing"
)

// SystemMetrics represents controller diagnostics information
type SystemMetrics struct {
	Timestamp  time.Time              `json:"timestamp"`
	UptimeSec  float64                `json:"uptime_sec"`
	RobotID    string                 `json:"robot_id"`
	Robot      *robot.Diagnostics     `json:"robot,omitempty"`
	Channels   []processing.TopicInfo `json:"channels"`
	Goroutines int                    `json:"goroutines"`
	HeapAlloc  uint64                 `json:"heap_alloc_bytes"`
}

// DiagnosticService handles system diagnostics
type DiagnosticService struct {
	mu       sync.RWMutex
	robotID  string
	robot    robot.Robot
	registry *processing.TopicRegistry
	started  time.Time
}

// NewDiagnosticService creates a new diagnostic service instance. Either
// dependency may be nil.
func NewDiagnosticService(r robot.Robot, registry *processing.TopicRegistry) *DiagnosticService {
	return &DiagnosticService{
		robot:    r,
		registry: registry,
		started:  time.Now(),
	}
}

// SetRobotID records the robot the tuning file is for.
func (s *DiagnosticService) SetRobotID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.robotID = id
}

// GetMetricsHandler handles API requests for system metrics
func (s *DiagnosticService) GetMetricsHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"metrics": s.GetMetrics(),
	})
}

// GetMetrics collects the current metrics
func (s *DiagnosticService) GetMetrics() SystemMetrics {
	s.mu.RLock()
	robotID := s.robotID
	s.mu.RUnlock()

	now := time.Now()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	metrics := SystemMetrics{
		Timestamp:  now,
		UptimeSec:  now.Sub(s.started).Seconds(),
		RobotID:    robotID,
		Channels:   []processing.TopicInfo{},
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  mem.HeapAlloc,
	}
	if d, ok := s.robot.(robot.Diagnosable); ok {
		diag := d.Diagnostics()
		metrics.Robot = &diag
	}
	if s.registry != nil {
		metrics.Channels = s.registry.GetTopicStats()
	}
	return metrics
}
