package sim

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/motion-controller/pkg/camera"
	customlog "github.com/open-teleop/motion-controller/pkg/log"
	"github.com/open-teleop/motion-controller/pkg/motion"
	"github.com/open-teleop/motion-controller/pkg/telemetry"
)

func send(t *testing.T, s *Simulator, x, y, yaw, height float64) {
	t.Helper()
	payload, err := motion.EncodeCommand(x, y, yaw, height)
	require.NoError(t, err)
	require.NoError(t, s.PublishMessage(motion.DefaultCommandTopic, payload))
}

func TestStepIntegratesCommands(t *testing.T) {
	mock := clock.NewMock()
	s := New(Options{Clock: mock}, customlog.NewDiscardLogger())

	// A negative command rate turns left.
	send(t, s, 0, 0, -1, 0.8)
	s.Step(500 * time.Millisecond)
	assert.InDelta(t, 0.5, s.Pose().HeadingRad, 1e-12)

	send(t, s, 0, 0, 1, 0.8)
	s.Step(500 * time.Millisecond)
	assert.InDelta(t, 0, s.Pose().HeadingRad, 1e-12)

	send(t, s, 1, 0, 0, 0.6)
	s.Step(time.Second)
	pose := s.Pose()
	assert.InDelta(t, 0.5, pose.X, 1e-12)
	assert.InDelta(t, 0, pose.Y, 1e-12)
	assert.Equal(t, 0.6, pose.Height)

	// Left is a negative lateral command.
	send(t, s, 0, -1, 0, 0.6)
	s.Step(time.Second)
	assert.InDelta(t, 0.5, s.Pose().Y, 1e-12)
	assert.Equal(t, int64(4), s.Pose().Commands)
}

func TestStepStopsWithoutFreshCommands(t *testing.T) {
	mock := clock.NewMock()
	s := New(Options{Clock: mock, CommandTimeout: 100 * time.Millisecond}, customlog.NewDiscardLogger())

	send(t, s, 0, 0, -1, 0.8)
	mock.Add(150 * time.Millisecond)
	s.Step(time.Second)
	assert.Zero(t, s.Pose().HeadingRad)
}

func TestRejectsMalformedCommands(t *testing.T) {
	s := New(Options{}, customlog.NewDiscardLogger())
	assert.ErrorIs(t, s.PublishMessage(motion.DefaultCommandTopic, []byte("forward please")), motion.ErrMalformedCommand)
}

func TestFrameRequiresRunningSimulator(t *testing.T) {
	s := New(Options{}, customlog.NewDiscardLogger())

	data, _, err := s.Frame("head")
	require.NoError(t, err)
	assert.Empty(t, data)

	_, _, err = s.Frame("belly")
	assert.ErrorIs(t, err, camera.ErrUnknownCamera)
}

func TestEmitTelemetryEncodings(t *testing.T) {
	for _, useJSON := range []bool{false, true} {
		s := New(Options{InitialHeading: 1, JSONTelemetry: useJSON}, customlog.NewDiscardLogger())

		var got []float64
		h := telemetry.NewHandler(func(q []float64) { got = q }, customlog.NewDiscardLogger())
		s.OnTelemetry(h.HandleMessage)
		require.NoError(t, s.EmitTelemetry())

		require.Len(t, got, 4)
		yaw, err := motion.QuaternionToYaw(got[0], got[1], got[2], got[3])
		require.NoError(t, err)
		assert.InDelta(t, 1, yaw, 1e-9, "json=%v", useJSON)
	}
}

func TestClosedLoopAgainstController(t *testing.T) {
	logger := customlog.NewDiscardLogger()
	s := New(Options{}, logger)

	ctrl := motion.NewController(s, motion.DefaultOptions(), logger)
	handler := telemetry.NewHandler(ctrl.OnTelemetry, logger)
	s.OnTelemetry(handler.HandleMessage)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Run(ctx))
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	require.Eventually(t, func() bool {
		_, ok := ctrl.Heading()
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	result, err := ctrl.Rotate(motion.RotationRequest{DeltaDeg: 90, YawSpeed: motion.DefaultYawSpeed})
	require.NoError(t, err)
	assert.Equal(t, motion.StateConverged, result.State)

	// The last command was a stop, so the pose settles near the target.
	time.Sleep(50 * time.Millisecond)
	assert.InDelta(t, math.Pi/2, s.Pose().HeadingRad, motion.Radians(5))

	require.NoError(t, ctrl.MoveFor(200*time.Millisecond, motion.VelocityCommand{XVel: 1}))
	time.Sleep(50 * time.Millisecond)
	pose := s.Pose()
	assert.Greater(t, pose.Y, 0.0, "facing left, forward motion moves along +y")

	snap, err := camera.NewSnapshotter(camera.NewPoller(s, "head", 0, nil, logger)).Snapshot(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 160, snap.Width)
	assert.Equal(t, 120, snap.Height)
}
