package teleop

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/motion-controller/domain/robot"
	"github.com/open-teleop/motion-controller/pkg/api"
	"github.com/open-teleop/motion-controller/pkg/camera"
	"github.com/open-teleop/motion-controller/pkg/fault"
	customlog "github.com/open-teleop/motion-controller/pkg/log"
	"github.com/open-teleop/motion-controller/pkg/motion"
)

// failingRobot fails every motion call with err.
type failingRobot struct {
	robot.FakeRobot
	err error
}

func (r *failingRobot) Move(robot.Direction, time.Duration) error { return r.err }

func (r *failingRobot) Rotate(angleDeg float64) (motion.RotationResult, error) {
	return motion.RotationResult{DeltaDeg: angleDeg, StateName: motion.StateTimedOut.String()}, r.err
}

func (r *failingRobot) Rotation() (float64, error) { return 0, r.err }

func (r *failingRobot) CameraSnapshot() (camera.Snapshot, error) { return camera.Snapshot{}, r.err }

func newApp(r robot.Robot) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: api.ErrorHandler})
	NewTeleopService(r, customlog.NewDiscardLogger()).RegisterRoutes(app.Group("/api"))
	return app
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return resp.StatusCode, out
}

func TestMoveAndRotateOnFakeRobot(t *testing.T) {
	fake := robot.NewFakeRobot("test bot", customlog.NewDiscardLogger())
	app := newApp(fake)

	status, body := do(t, app, http.MethodGet, "/api/robot/description", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "test bot", body["description"])

	status, body = do(t, app, http.MethodPost, "/api/robot/move", `{"direction":"forward","duration_sec":1.5}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "forward", body["direction"])
	assert.Equal(t, 1.5, body["duration_sec"])

	status, body = do(t, app, http.MethodPost, "/api/robot/rotate", `{"angle_deg":90}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "CONVERGED", body["state"])

	status, body = do(t, app, http.MethodGet, "/api/robot/rotation", "")
	assert.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 90, body["heading_deg"], 1e-9)

	assert.Equal(t, []string{"move forward", "rotate"}, fake.Actions())
}

func TestInvalidRequests(t *testing.T) {
	fake := robot.NewFakeRobot("", customlog.NewDiscardLogger())
	app := newApp(fake)

	tests := []struct {
		name   string
		target string
		body   string
	}{
		{"unknown direction", "/api/robot/move", `{"direction":"up","duration_sec":1}`},
		{"too long", "/api/robot/move", `{"direction":"left","duration_sec":3600}`},
		{"malformed move", "/api/robot/move", `{"direction":`},
		{"angle out of range", "/api/robot/rotate", `{"angle_deg":270}`},
		{"malformed rotate", "/api/robot/rotate", `nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, app, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "invalid_request", body["kind"])
			assert.Equal(t, false, body["retryable"])
		})
	}
	assert.Empty(t, fake.Actions())
}

func TestFaultsMapToStatus(t *testing.T) {
	tests := []struct {
		kind      fault.Kind
		status    int
		retryable bool
	}{
		{fault.KindBusy, http.StatusConflict, true},
		{fault.KindPrecondition, http.StatusServiceUnavailable, false},
		{fault.KindTimeout, http.StatusGatewayTimeout, true},
		{fault.KindTransport, http.StatusBadGateway, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			app := newApp(&failingRobot{err: fault.New(tt.kind, "op", "failed")})

			status, body := do(t, app, http.MethodPost, "/api/robot/move", `{"direction":"right","duration_sec":1}`)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind.String(), body["kind"])
			assert.Equal(t, tt.retryable, body["retryable"])

			status, body = do(t, app, http.MethodPost, "/api/robot/rotate", `{"angle_deg":10}`)
			assert.Equal(t, tt.status, status)
			require.Contains(t, body, "result", "rotation failures carry the partial result")

			status, _ = do(t, app, http.MethodGet, "/api/robot/rotation", "")
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestRoutesRunMiddleware(t *testing.T) {
	app := fiber.New()
	deny := func(c *fiber.Ctx) error { return c.SendStatus(http.StatusUnauthorized) }
	NewTeleopService(robot.NewFakeRobot("", customlog.NewDiscardLogger()), customlog.NewDiscardLogger()).
		RegisterRoutes(app.Group("/api"), deny)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/robot/description", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestValidateDuration(t *testing.T) {
	s := &TeleopService{}
	d, err := s.ValidateDuration(0.25)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	d, err = s.ValidateDuration(-1)
	require.NoError(t, err, "non-positive durations only stop")
	assert.Equal(t, -time.Second, d)

	_, err = s.ValidateDuration(61)
	assert.Equal(t, fault.KindInvalidRequest, fault.KindOf(err))

	// Large enough to overflow int64 nanoseconds.
	for _, seconds := range []float64{1e10, 1e300} {
		_, err = s.ValidateDuration(seconds)
		assert.Equal(t, fault.KindInvalidRequest, fault.KindOf(err), "%g seconds", seconds)
	}

	d, err = s.ValidateDuration(60)
	require.NoError(t, err)
	assert.Equal(t, MaxMoveDuration, d)
}
