package camera

import (
	"bytes"
	"fmt"
	"time"

	"github.com/disintegration/imaging"

	"github.com/open-teleop/motion-controller/pkg/fault"
)

// Snapshot is a frame re-encoded as PNG.
type Snapshot struct {
	Camera     string    `json:"camera"`
	PNG        []byte    `json:"-"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	FPS        float64   `json:"fps"`
	CapturedAt time.Time `json:"captured_at"`
}

// Snapshotter turns the next camera frame into a PNG image.
type Snapshotter struct {
	poller *Poller
}

// NewSnapshotter creates a snapshotter reading frames through poller.
func NewSnapshotter(poller *Poller) *Snapshotter {
	return &Snapshotter{poller: poller}
}

// Snapshot waits up to deadline for a frame, decodes it and returns it as PNG.
func (s *Snapshotter) Snapshot(deadline time.Duration) (Snapshot, error) {
	frame, err := s.poller.GetFrame(deadline)
	if err != nil {
		return Snapshot{}, err
	}
	return EncodePNG(frame)
}

// EncodePNG decodes any image format imaging understands and re-encodes it as PNG.
func EncodePNG(frame Frame) (Snapshot, error) {
	img, err := imaging.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		return Snapshot{}, fault.Wrap(fault.KindTransport, "snapshot", fmt.Errorf("decode frame: %w", err))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return Snapshot{}, fault.Wrap(fault.KindTransport, "snapshot", fmt.Errorf("encode png: %w", err))
	}

	bounds := img.Bounds()
	return Snapshot{
		Camera:     frame.Camera,
		PNG:        buf.Bytes(),
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		FPS:        frame.FPS,
		CapturedAt: frame.CapturedAt,
	}, nil
}
