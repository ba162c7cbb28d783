// Package sim is an in-process stand-in for the robot bridge. It consumes the
// same command payloads as the real actuator, integrates them into a planar
// pose and publishes attitude telemetry and camera frames back.
package sim

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/disintegration/imaging"

	"github.com/open-teleop/motion-controller/pkg/camera"
	customlog "github.com/open-teleop/motion-controller/pkg/log"
	"github.com/open-teleop/motion-controller/pkg/motion"
	"github.com/open-teleop/motion-controller/pkg/telemetry"
)

// TelemetryHandler receives encoded attitude payloads, like a subscription would.
type TelemetryHandler func(topic string, payload []byte) error

// Options configures the simulator dynamics.
type Options struct {
	// TickRate is the integration and telemetry rate. Defaults to 500 Hz.
	TickRate float64
	// YawGain converts a wire yaw rate into rad/s. Defaults to 1.
	YawGain float64
	// LinearGain converts a wire linear velocity into m/s. Defaults to 0.5.
	LinearGain float64
	// CommandTimeout zeroes the velocity when no command arrives for this long.
	// Defaults to 200 ms.
	CommandTimeout time.Duration
	// InitialHeading is the starting yaw in radians.
	InitialHeading float64
	// Cameras are the camera names served by Frame. Defaults to head, left, right.
	Cameras []string
	// JSONTelemetry switches the telemetry encoding from FlatBuffers to JSON.
	JSONTelemetry bool
	Clock         clock.Clock
}

// Pose is the simulated robot state.
type Pose struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	HeadingRad float64 `json:"heading_rad"`
	Height     float64 `json:"height"`
	Commands   int64   `json:"commands"`
}

// Simulator integrates velocity commands into a pose.
type Simulator struct {
	opts    Options
	clock   clock.Clock
	period  time.Duration
	cameras map[string]struct{}
	logger  customlog.Logger

	mu        sync.Mutex
	pose      Pose
	cmd       motion.VelocityCommand
	cmdAt     time.Time
	running   bool
	telemetry TelemetryHandler
}

// New creates a simulator standing at the default height.
func New(opts Options, logger customlog.Logger) *Simulator {
	if opts.TickRate <= 0 {
		opts.TickRate = 500
	}
	if opts.YawGain == 0 {
		opts.YawGain = 1
	}
	if opts.LinearGain == 0 {
		opts.LinearGain = 0.5
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 200 * time.Millisecond
	}
	if len(opts.Cameras) == 0 {
		opts.Cameras = []string{"head", "left", "right"}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	cameras := make(map[string]struct{}, len(opts.Cameras))
	for _, name := range opts.Cameras {
		cameras[name] = struct{}{}
	}

	return &Simulator{
		opts:    opts,
		clock:   opts.Clock,
		period:  time.Duration(float64(time.Second) / opts.TickRate),
		cameras: cameras,
		logger:  logger.WithField(customlog.ComponentField, "sim"),
		pose: Pose{
			HeadingRad: motion.WrapToPi(opts.InitialHeading),
			Height:     motion.DefaultHeight,
		},
	}
}

// OnTelemetry registers the receiver of attitude payloads.
func (s *Simulator) OnTelemetry(handler TelemetryHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry = handler
}

// PublishMessage accepts one command payload, as the actuator bridge would.
func (s *Simulator) PublishMessage(topic string, data []byte) error {
	cmd, err := motion.DecodeCommand(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmd = cmd
	s.cmdAt = s.clock.Now()
	s.pose.Commands++
	return nil
}

// Step advances the simulation by dt.
func (s *Simulator) Step(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := s.cmd
	if s.clock.Now().Sub(s.cmdAt) > s.opts.CommandTimeout {
		cmd = motion.VelocityCommand{Height: cmd.Height}
	}
	if cmd.Height != nil {
		s.pose.Height = *cmd.Height
	}

	secs := dt.Seconds()
	// The actuator follows the wire convention: a positive wire rate turns left.
	wireYaw, wireY := -cmd.YawVel, -cmd.YVel
	s.pose.HeadingRad = motion.WrapToPi(s.pose.HeadingRad + wireYaw*s.opts.YawGain*secs)

	vx, vy := cmd.XVel*s.opts.LinearGain, wireY*s.opts.LinearGain
	sin, cos := math.Sincos(s.pose.HeadingRad)
	s.pose.X += (vx*cos - vy*sin) * secs
	s.pose.Y += (vx*sin + vy*cos) * secs
}

// Pose returns the current simulated state.
func (s *Simulator) Pose() Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pose
}

// EmitTelemetry sends the current attitude to the registered handler.
func (s *Simulator) EmitTelemetry() error {
	s.mu.Lock()
	handler := s.telemetry
	heading := s.pose.HeadingRad
	s.mu.Unlock()

	if handler == nil {
		return nil
	}
	attitude := telemetry.Attitude{
		Quaternion:  motion.YawToQuaternion(heading),
		TimestampNs: s.clock.Now().UnixNano(),
		FrameID:     "imu_link",
	}

	var payload []byte
	if s.opts.JSONTelemetry {
		var err error
		if payload, err = telemetry.EncodeJSON(attitude); err != nil {
			return err
		}
	} else {
		payload = telemetry.EncodeFlatbuffer(attitude)
	}
	return handler(telemetry.DefaultTopic, payload)
}

// Run steps the simulation and emits telemetry every tick until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("simulator already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Infof("Simulator running at %.0f Hz", s.opts.TickRate)
	ticker := s.clock.Ticker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Infof("Simulator stopped")
			return nil
		case <-ticker.C:
			s.Step(s.period)
			if err := s.EmitTelemetry(); err != nil {
				s.logger.Debugf("Telemetry handler rejected sample: %v", err)
			}
		}
	}
}

// Frame renders a JPEG view whose colour and marker position follow the heading.
// Nothing is returned until Run has started, like a stream that is not up yet.
func (s *Simulator) Frame(cam string) ([]byte, float64, error) {
	if _, ok := s.cameras[cam]; !ok {
		return nil, 0, fmt.Errorf("%w: %s", camera.ErrUnknownCamera, cam)
	}

	s.mu.Lock()
	running := s.running
	heading := s.pose.HeadingRad
	s.mu.Unlock()
	if !running {
		return nil, 0, nil
	}

	data, err := renderView(heading)
	if err != nil {
		return nil, 0, err
	}
	return data, 30, nil
}

func renderView(heading float64) ([]byte, error) {
	const width, height = 160, 120

	shade := uint8(255 * (heading + math.Pi) / (2 * math.Pi))
	view := imaging.New(width, height, color.NRGBA{R: shade, G: 96, B: 255 - shade, A: 255})

	marker := imaging.New(width/10, height, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	x := int(float64(width-width/10) * (heading + math.Pi) / (2 * math.Pi))
	view = imaging.Paste(view, marker, image.Pt(x, 0))

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, view, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("encode simulated frame: %w", err)
	}
	return buf.Bytes(), nil
}
