package motion

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	customlog "github.com/open-teleop/motion-controller/pkg/log"
)

// recordingTransport captures every published command.
type recordingTransport struct {
	mu       sync.Mutex
	topics   []string
	commands []VelocityCommand
	failAt   int // 1-based publish index that fails; 0 never fails
	onSend   func(cmd VelocityCommand)
}

func (r *recordingTransport) PublishMessage(topic string, data []byte) error {
	cmd, err := DecodeCommand(data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.failAt > 0 && len(r.commands)+1 == r.failAt {
		r.failAt = 0
		r.mu.Unlock()
		return errors.New("socket closed")
	}
	r.topics = append(r.topics, topic)
	r.commands = append(r.commands, cmd)
	onSend := r.onSend
	r.mu.Unlock()

	if onSend != nil {
		onSend(cmd)
	}
	return nil
}

func (r *recordingTransport) sent() []VelocityCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]VelocityCommand, len(r.commands))
	copy(out, r.commands)
	return out
}

func countStops(cmds []VelocityCommand) int {
	n := 0
	for _, c := range cmds {
		if c.IsStop() {
			n++
		}
	}
	return n
}

// loopbackActuator turns the controller's own yaw commands into heading telemetry,
// stepping the heading by gain*wireYawRate per command.
func loopbackActuator(t *testing.T, ctrl **Controller, startYaw, gain float64) *recordingTransport {
	t.Helper()
	heading := startYaw
	var mu sync.Mutex
	return &recordingTransport{
		onSend: func(cmd VelocityCommand) {
			mu.Lock()
			// The actuator turns counter-clockwise for a negative semantic yaw rate.
			heading = WrapToPi(heading - gain*cmd.YawVel)
			q := YawToQuaternion(heading)
			mu.Unlock()
			(*ctrl).OnTelemetry(q[:])
		},
	}
}

func newTestController(t *testing.T, transport MessagePublisher, rateHz float64) *Controller {
	t.Helper()
	opts := DefaultOptions()
	opts.RateHz = rateHz
	ctrl := NewController(transport, opts, customlog.NewDiscardLogger())
	require.NotNil(t, ctrl)
	return ctrl
}
