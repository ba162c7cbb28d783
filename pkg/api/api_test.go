package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/motion-controller/pkg/fault"
	customlog "github.com/open-teleop/motion-controller/pkg/log"
	"github.com/open-teleop/motion-controller/services"
)

const tuningYAML = `version: "1.0"
config_id: "initial"
robot_id: "g1"
tuning:
  walk_speed: 0.8
  yaw_speed: 1.2
`

func newConfigApp(t *testing.T) (*fiber.App, services.TuningConfigService) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "motion_tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tuningYAML), 0644))
	logger := customlog.NewDiscardLogger()
	svc, err := services.NewTuningConfigService(path, logger)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterConfigRoutes(app, svc, logger)
	return app, svc
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind fault.Kind
		want int
	}{
		{fault.KindInvalidRequest, http.StatusBadRequest},
		{fault.KindPrecondition, http.StatusServiceUnavailable},
		{fault.KindTimeout, http.StatusGatewayTimeout},
		{fault.KindTransport, http.StatusBadGateway},
		{fault.KindBusy, http.StatusConflict},
	}
	for _, tt := range tests {
		err := fault.New(tt.kind, "op", "boom")
		assert.Equal(t, tt.want, StatusFor(err), tt.kind.String())
	}
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("plain")))
	assert.Equal(t, http.StatusNotFound, StatusFor(fiber.ErrNotFound))

	body := NewErrorBody(fault.New(fault.KindBusy, "rotate", "motion in progress"))
	assert.Equal(t, "busy", body.Kind)
	assert.True(t, body.Retryable)
	assert.Equal(t, "rotate: motion in progress", body.Error)
}

func TestGetTuningConfigYAML(t *testing.T) {
	app, _ := newConfigApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/config/tuning", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-yaml", resp.Header.Get(fiber.HeaderContentType))
	assert.Equal(t, tuningYAML, readBody(t, resp))
}

func TestPutTuningConfig(t *testing.T) {
	app, svc := newConfigApp(t)

	update := "version: \"1.1\"\nconfig_id: next\nrobot_id: g1\ntuning:\n  walk_speed: 0.5\n  yaw_speed: 2\n"
	req := httptest.NewRequest(http.MethodPut, "/api/v1/config/tuning", strings.NewReader(update))
	req.Header.Set(fiber.HeaderContentType, "application/x-yaml")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2.0, svc.Speeds().YawSpeed)

	req = httptest.NewRequest(http.MethodPut, "/api/v1/config/tuning", strings.NewReader("version: [oops"))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPut, "/api/v1/config/tuning", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "next", svc.GetCurrentConfig().ConfigID)
}

func TestSpeedsEndpoints(t *testing.T) {
	app, svc := newConfigApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/config/tuning/speeds", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"walk_speed":0.8,"yaw_speed":1.2}`, readBody(t, resp))

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/config/tuning/speeds", strings.NewReader(`{"yaw_speed":3}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		ConfigID string `json:"config_id"`
		Tuning   struct {
			WalkSpeed float64 `json:"walk_speed"`
			YawSpeed  float64 `json:"yaw_speed"`
		} `json:"tuning"`
	}
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &out))
	assert.NotEqual(t, "initial", out.ConfigID)
	assert.Equal(t, 0.8, out.Tuning.WalkSpeed)
	assert.Equal(t, 3.0, out.Tuning.YawSpeed)
	assert.Equal(t, 3.0, svc.Speeds().YawSpeed)

	for _, body := range []string{`{}`, `{"yaw_speed":-1}`, `not json`} {
		req = httptest.NewRequest(http.MethodPatch, "/api/v1/config/tuning/speeds", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err = app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestAuthMiddleware(t *testing.T) {
	const secret = "s3cret"
	app := fiber.New()
	app.Use(AuthMiddleware(secret, customlog.NewDiscardLogger()))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("subject").(string))
	})

	good, err := IssueToken(secret, "operator", time.Minute)
	require.NoError(t, err)
	expired, err := IssueToken(secret, "operator", -time.Minute)
	require.NoError(t, err)
	forged, err := IssueToken("other", "operator", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"bearer", "Bearer " + good, "", http.StatusOK},
		{"lowercase scheme", "bearer " + good, "", http.StatusOK},
		{"query", "", good, http.StatusOK},
		{"expired", "Bearer " + expired, "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + forged, "", http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/whoami"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
			if tt.want == http.StatusOK {
				assert.Equal(t, "operator", readBody(t, resp))
			}
		})
	}
}

func TestIssueTokenRequiresSecret(t *testing.T) {
	_, err := IssueToken("", "x", time.Minute)
	assert.Error(t, err)
}

type stubHeading struct {
	deg float64
	err error
}

func (s stubHeading) Rotation() (float64, error) { return s.deg, s.err }

type agedHeading struct{ stubHeading }

func (agedHeading) HeadingAge() (time.Duration, bool) { return 35 * time.Millisecond, true }

func TestNewHeadingMessage(t *testing.T) {
	now := time.UnixMilli(1700000000000)

	msg := NewHeadingMessage(stubHeading{deg: 42.5}, now)
	assert.True(t, msg.Available)
	require.NotNil(t, msg.HeadingDeg)
	assert.Equal(t, 42.5, *msg.HeadingDeg)
	assert.Equal(t, int64(1700000000000), msg.TimestampMs)
	assert.Nil(t, msg.AgeMs)

	msg = NewHeadingMessage(agedHeading{stubHeading{deg: 10}}, now)
	require.NotNil(t, msg.AgeMs)
	assert.Equal(t, int64(35), *msg.AgeMs)

	msg = NewHeadingMessage(stubHeading{err: errors.New("no attitude yet")}, now)
	assert.False(t, msg.Available)
	assert.Nil(t, msg.HeadingDeg)
	assert.Equal(t, "no attitude yet", msg.Error)

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "heading_deg")
}

func TestHeadingRouteRequiresUpgrade(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterHeadingRoutes(app, stubHeading{deg: 1}, 0, customlog.NewDiscardLogger())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ws/heading", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
