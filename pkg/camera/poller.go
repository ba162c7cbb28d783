// Package camera fetches still frames from a camera stream within a bounded time.
package camera

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/open-teleop/motion-controller/pkg/fault"
	customlog "github.com/open-teleop/motion-controller/pkg/log"
)

// Default poller settings
const (
	DefaultCamera       = "head"
	DefaultPollInterval = 20 * time.Millisecond
	DefaultDeadline     = 5 * time.Second
)

// Common errors
var (
	ErrFrameTimeout  = errors.New("no frame received before deadline")
	ErrUnknownCamera = errors.New("unknown camera")
)

// FrameSource yields the most recent encoded frame of a camera. An empty frame
// with a nil error means nothing has arrived yet.
type FrameSource interface {
	Frame(camera string) (data []byte, fps float64, err error)
}

// Frame is one encoded image together with the stream rate it was captured at.
type Frame struct {
	Camera     string
	Data       []byte
	FPS        float64
	CapturedAt time.Time
}

// FrameTimeoutError reports a deadline that expired before a frame arrived.
type FrameTimeoutError struct {
	Camera   string
	Deadline time.Duration
	LastFPS  float64
}

func (e *FrameTimeoutError) Error() string {
	return fmt.Sprintf("camera %q: no frame within %v (last fps %.1f)", e.Camera, e.Deadline, e.LastFPS)
}

// Unwrap makes errors.Is(err, ErrFrameTimeout) hold.
func (e *FrameTimeoutError) Unwrap() error {
	return ErrFrameTimeout
}

// Poller polls a FrameSource at a fixed interval until a frame shows up.
type Poller struct {
	source   FrameSource
	camera   string
	interval time.Duration
	clock    clock.Clock
	logger   customlog.Logger
}

// NewPoller creates a poller for one camera of source. Zero values pick the
// defaults and a nil clock means the wall clock.
func NewPoller(source FrameSource, camera string, interval time.Duration, clk clock.Clock, logger customlog.Logger) *Poller {
	if camera == "" {
		camera = DefaultCamera
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Poller{
		source:   source,
		camera:   camera,
		interval: interval,
		clock:    clk,
		logger:   logger.WithField("camera", camera),
	}
}

// Camera returns the camera name the poller reads.
func (p *Poller) Camera() string {
	return p.camera
}

// GetFrame returns the first non-empty frame seen before deadline elapses. On
// expiry it returns a timeout fault wrapping *FrameTimeoutError; it never gives
// up before the deadline. An unknown camera fails immediately.
func (p *Poller) GetFrame(deadline time.Duration) (Frame, error) {
	start := p.clock.Now()
	end := start.Add(deadline)
	lastFPS := 0.0
	attempts := 0

	for {
		data, fps, err := p.source.Frame(p.camera)
		attempts++
		switch {
		case errors.Is(err, ErrUnknownCamera):
			return Frame{}, fault.Wrap(fault.KindInvalidRequest, "get_frame", err)
		case err != nil:
			p.logger.Debugf("Frame source error (attempt %d): %v", attempts, err)
		case len(data) > 0:
			p.logger.Debugf("Got %d byte frame after %d attempts (%.1f fps)", len(data), attempts, fps)
			return Frame{Camera: p.camera, Data: data, FPS: fps, CapturedAt: p.clock.Now()}, nil
		default:
			lastFPS = fps
		}

		now := p.clock.Now()
		if !now.Before(end) {
			p.logger.Warnf("No frame after %v (%d attempts)", now.Sub(start), attempts)
			return Frame{}, fault.Wrap(fault.KindTimeout, "get_frame",
				&FrameTimeoutError{Camera: p.camera, Deadline: deadline, LastFPS: lastFPS})
		}

		wait := p.interval
		if remaining := end.Sub(now); remaining < wait {
			wait = remaining
		}
		p.clock.Sleep(wait)
	}
}
