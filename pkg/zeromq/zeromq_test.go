package zeromq

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/motion-controller/pkg/camera"
	"github.com/open-teleop/motion-controller/pkg/config"
	customlog "github.com/open-teleop/motion-controller/pkg/log"
	"github.com/open-teleop/motion-controller/pkg/processing"
)

func TestPublishSubscribeRoundTrip(t *testing.T) {
	logger := customlog.NewDiscardLogger()
	registry := processing.NewTopicRegistry(logger)
	svc, err := NewZeroMQService(config.ZeroMQBootstrap{CommandAddress: "inproc://roundtrip"}, registry, logger)
	require.NoError(t, err)
	defer svc.Stop()

	var mu sync.Mutex
	var got []string
	_, err = svc.Subscribe("inproc://roundtrip", []string{"rt/run_command/cmd"}, HandlerFunc(func(topic string, data []byte) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, topic+" "+string(data))
		return nil
	}))
	require.NoError(t, err)
	require.NoError(t, svc.Start())

	// PUB/SUB drops messages until the subscription has propagated.
	require.Eventually(t, func() bool {
		if err := svc.PublishMessage("rt/run_command/cmd", []byte("[0.0, -0.0, -0.0, 0.8]")); err != nil {
			return false
		}
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "rt/run_command/cmd [0.0, -0.0, -0.0, 0.8]", got[0])
	mu.Unlock()

	info, ok := registry.GetTopicInfo("rt/run_command/cmd")
	require.True(t, ok)
	assert.Positive(t, info.Count)

	require.NoError(t, svc.Stop())
	assert.ErrorIs(t, svc.PublishMessage("rt/run_command/cmd", nil), ErrServiceClosed)
}

func TestSubscriberIgnoresPrefixTopics(t *testing.T) {
	logger := customlog.NewDiscardLogger()
	registry := processing.NewTopicRegistry(logger)
	svc, err := NewZeroMQService(config.ZeroMQBootstrap{CommandAddress: "inproc://prefix"}, registry, logger)
	require.NoError(t, err)
	defer svc.Stop()

	var mu sync.Mutex
	var got []string
	_, err = svc.Subscribe("inproc://prefix", []string{"head"}, HandlerFunc(func(topic string, data []byte) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, topic)
		return nil
	}))
	require.NoError(t, err)
	require.NoError(t, svc.Start())

	// The socket is FIFO, so once "head" arrives any earlier "head_depth" was handled.
	require.Eventually(t, func() bool {
		if err := svc.PublishMessage("head_depth", []byte{1}); err != nil {
			return false
		}
		if err := svc.PublishMessage("head", []byte{2}); err != nil {
			return false
		}
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	for _, topic := range got {
		assert.Equal(t, "head", topic)
	}
	mu.Unlock()

	// The registry also counts sends, so only the error counters tell.
	for _, topic := range []string{"head_depth", "head"} {
		info, ok := registry.GetTopicInfo(topic)
		require.True(t, ok, topic)
		assert.Zero(t, info.Errors, topic)
	}
}

func TestDispatcherRoutesByTopic(t *testing.T) {
	d := NewMessageDispatcher(customlog.NewDiscardLogger())
	var seen []string
	d.RegisterHandler("a", HandlerFunc(func(topic string, data []byte) error {
		seen = append(seen, topic)
		return nil
	}))
	boom := errors.New("boom")
	d.RegisterHandler("b", HandlerFunc(func(string, []byte) error { return boom }))

	assert.NoError(t, d.Dispatch("a", nil))
	assert.ErrorIs(t, d.Dispatch("b", nil), boom)
	assert.ErrorIs(t, d.Dispatch("c", nil), ErrNoHandler)
	assert.Equal(t, []string{"a"}, seen)
}

func TestFrameClientKeepsLatestFrame(t *testing.T) {
	mock := clock.NewMock()
	c := NewFrameClient(DefaultCameras, mock)

	data, fps, err := c.Frame("head")
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.Zero(t, fps)

	require.NoError(t, c.HandleMessage("head", []byte{1}))
	mock.Add(100 * time.Millisecond)
	require.NoError(t, c.HandleMessage("head", []byte{2}))

	data, fps, err = c.Frame("head")
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, data)
	assert.InDelta(t, 10, fps, 1e-9)

	mock.Add(50 * time.Millisecond)
	require.NoError(t, c.HandleMessage("head", []byte{3}))
	_, fps, _ = c.Frame("head")
	assert.InDelta(t, 0.2*20+0.8*10, fps, 1e-9)

	_, _, err = c.Frame("tail")
	assert.ErrorIs(t, err, camera.ErrUnknownCamera)
	assert.ErrorIs(t, c.HandleMessage("tail", []byte{1}), camera.ErrUnknownCamera)

	data, _, _ = c.Frame("left")
	assert.Empty(t, data, "cameras are independent")
}

type recordingJSONPublisher struct {
	topic, msgType string
	data           interface{}
}

func (r *recordingJSONPublisher) PublishJSON(topic, messageType string, data interface{}) error {
	r.topic, r.msgType, r.data = topic, messageType, data
	return nil
}

func TestConfigPublisher(t *testing.T) {
	rec := &recordingJSONPublisher{}
	p := NewConfigPublisher(rec, "", customlog.NewDiscardLogger())

	cfg := &config.Config{ConfigID: "abc", Version: "1.0", Tuning: config.TuningConfig{WalkSpeed: 0.5, YawSpeed: 1}}
	require.NoError(t, p.PublishConfigUpdatedNotification(cfg))

	assert.Equal(t, "configuration.notification", rec.topic)
	assert.Equal(t, MsgTypeConfigUpdated, rec.msgType)

	raw, err := json.Marshal(rec.data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"config_id":"abc","version":"1.0","last_updated":"","tuning":{"walk_speed":0.5,"yaw_speed":1}}`, string(raw))
}
