package zeromq

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/open-teleop/motion-controller/pkg/camera"
)

// fpsSmoothing is the weight of the newest sample in the frame rate average.
const fpsSmoothing = 0.2

// DefaultCameras are the camera streams published by the robot image server.
// Each name is used as an exact topic; a subscriber drops topics that only
// share a name as a prefix.
var DefaultCameras = []string{"head", "left", "right"}

type latestFrame struct {
	data     []byte
	fps      float64
	received time.Time
}

// FrameClient keeps the most recent encoded frame of each camera stream. It is
// fed by a Subscriber (one topic per camera) and read by camera.Poller.
type FrameClient struct {
	clock   clock.Clock
	cameras map[string]struct{}

	mu     sync.RWMutex
	frames map[string]*latestFrame
}

var _ camera.FrameSource = (*FrameClient)(nil)
var _ MessageHandler = (*FrameClient)(nil)

// NewFrameClient creates a client for the named cameras.
func NewFrameClient(cameras []string, clk clock.Clock) *FrameClient {
	if clk == nil {
		clk = clock.New()
	}
	known := make(map[string]struct{}, len(cameras))
	for _, name := range cameras {
		known[name] = struct{}{}
	}
	return &FrameClient{
		clock:   clk,
		cameras: known,
		frames:  make(map[string]*latestFrame),
	}
}

// Cameras returns the camera names the client accepts.
func (c *FrameClient) Cameras() []string {
	names := make([]string, 0, len(c.cameras))
	for name := range c.cameras {
		names = append(names, name)
	}
	return names
}

// HandleMessage stores data as the latest frame of the camera named by topic.
func (c *FrameClient) HandleMessage(topic string, data []byte) error {
	if _, ok := c.cameras[topic]; !ok {
		return fmt.Errorf("%w: %s", camera.ErrUnknownCamera, topic)
	}
	if len(data) == 0 {
		return nil
	}
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.frames[topic]
	fps := 0.0
	if prev != nil {
		fps = prev.fps
		if dt := now.Sub(prev.received).Seconds(); dt > 0 {
			instant := 1 / dt
			if fps == 0 {
				fps = instant
			} else {
				fps = fpsSmoothing*instant + (1-fpsSmoothing)*fps
			}
		}
	}
	c.frames[topic] = &latestFrame{data: data, fps: fps, received: now}
	return nil
}

// Frame returns the latest frame of cam. An empty result means no frame yet.
func (c *FrameClient) Frame(cam string) ([]byte, float64, error) {
	if _, ok := c.cameras[cam]; !ok {
		return nil, 0, fmt.Errorf("%w: %s", camera.ErrUnknownCamera, cam)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	f := c.frames[cam]
	if f == nil {
		return nil, 0, nil
	}
	return f.data, f.fps, nil
}
