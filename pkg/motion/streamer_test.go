package motion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/motion-controller/pkg/fault"
)

func TestMoveForZeroDuration(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		transport := &recordingTransport{}
		ctrl := newTestController(t, transport, 100)

		require.NoError(t, ctrl.MoveFor(d, VelocityCommand{XVel: 1}))

		cmds := transport.sent()
		require.Len(t, cmds, 1, "duration %v", d)
		assert.True(t, cmds[0].IsStop())
		assert.Equal(t, DefaultHeight, *cmds[0].Height)
	}
}

func TestMoveForStreamsThenStops(t *testing.T) {
	transport := &recordingTransport{}
	ctrl := newTestController(t, transport, 200)

	start := time.Now()
	require.NoError(t, ctrl.MoveFor(100*time.Millisecond, VelocityCommand{XVel: 1, Height: HeightOf(0.5)}))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	cmds := transport.sent()
	require.GreaterOrEqual(t, len(cmds), 3)
	for _, c := range cmds[:len(cmds)-1] {
		assert.Equal(t, 1.0, c.XVel)
		assert.Equal(t, 0.5, *c.Height)
	}
	last := cmds[len(cmds)-1]
	assert.True(t, last.IsStop())
	assert.Equal(t, 0.5, *last.Height, "stop keeps the move height")
	assert.Equal(t, 1, countStops(cmds))
	// 100ms at 5ms period: roughly 20 commands, never wildly more.
	assert.LessOrEqual(t, len(cmds), 22)
}

func TestMoveForPublishFailureStillStops(t *testing.T) {
	transport := &recordingTransport{failAt: 3}
	ctrl := newTestController(t, transport, 1000)

	err := ctrl.MoveFor(time.Second, VelocityCommand{YVel: 1})
	require.Error(t, err)
	assert.Equal(t, fault.KindTransport, fault.KindOf(err))

	cmds := transport.sent()
	require.Len(t, cmds, 3)
	assert.True(t, cmds[2].IsStop(), "last command after a failure is a stop")
}

func TestMoveForRejectsConcurrentMotion(t *testing.T) {
	transport := &recordingTransport{}
	ctrl := newTestController(t, transport, 100)

	done := make(chan error, 1)
	go func() { done <- ctrl.MoveFor(200*time.Millisecond, VelocityCommand{XVel: 1}) }()

	require.Eventually(t, func() bool { return len(transport.sent()) > 0 }, time.Second, time.Millisecond)

	err := ctrl.MoveFor(time.Second, VelocityCommand{XVel: -1})
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, fault.KindBusy, fault.KindOf(err))
	assert.True(t, fault.IsRetryable(err))

	_, err = ctrl.Rotate(RotationRequest{DeltaDeg: 10, YawSpeed: 1.5})
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, <-done)
	for _, c := range transport.sent() {
		assert.GreaterOrEqual(t, c.XVel, 0.0, "rejected move must not publish")
	}
}
