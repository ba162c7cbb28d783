package motion

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadingEstimator(t *testing.T) {
	mock := clock.NewMock()
	est := NewHeadingEstimator(mock, 0)

	_, ok := est.Heading()
	assert.False(t, ok, "no heading before first sample")

	q := YawToQuaternion(0)
	est.OnTelemetry(q[:])
	h, ok := est.Heading()
	require.True(t, ok)
	assert.InDelta(t, 0, h, 1e-12)

	mock.Add(time.Second)
	q = YawToQuaternion(math.Pi / 2)
	est.OnTelemetry(q[:])
	s, ok := est.Sample()
	require.True(t, ok)
	assert.InDelta(t, math.Pi/2, s.HeadingRad, 1e-12)
	assert.Equal(t, mock.Now(), s.ReceivedAt)

	deg, ok := est.HeadingDeg()
	require.True(t, ok)
	assert.InDelta(t, 90, deg, 1e-9)
}

func TestHeadingEstimatorDropsMalformed(t *testing.T) {
	est := NewHeadingEstimator(clock.NewMock(), 0)

	q := YawToQuaternion(1)
	est.OnTelemetry(q[:])

	est.OnTelemetry(nil)
	est.OnTelemetry([]float64{0, 0, 1})
	est.OnTelemetry([]float64{0, 0, 0, 0})
	est.OnTelemetry([]float64{math.NaN(), 0, 0, 1})

	h, ok := est.Heading()
	require.True(t, ok)
	assert.InDelta(t, 1, h, 1e-12, "malformed samples must not replace the last good one")
	assert.Equal(t, int64(4), est.DroppedCount())
}

func TestHeadingEstimatorMaxAge(t *testing.T) {
	mock := clock.NewMock()
	est := NewHeadingEstimator(mock, 100*time.Millisecond)

	q := YawToQuaternion(0.5)
	est.OnTelemetry(q[:])
	_, ok := est.Heading()
	assert.True(t, ok)

	mock.Add(150 * time.Millisecond)
	_, ok = est.Heading()
	assert.False(t, ok, "stale sample reads as unavailable")

	latest, ok := est.Latest()
	assert.True(t, ok)
	assert.InDelta(t, 0.5, latest.HeadingRad, 1e-12)
}

func TestHeadingEstimatorConcurrentAccess(t *testing.T) {
	est := NewHeadingEstimator(clock.New(), 0)
	yaws := []float64{-2, -1, 0, 1, 2}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			q := YawToQuaternion(yaws[i%len(yaws)])
			est.OnTelemetry(q[:])
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				h, ok := est.Heading()
				if !ok {
					continue
				}
				matched := false
				for _, y := range yaws {
					if math.Abs(h-y) < 1e-9 {
						matched = true
					}
				}
				assert.True(t, matched, "torn or unexpected heading %v", h)
			}
		}()
	}
	wg.Wait()
}

func TestHeadingEstimatorAge(t *testing.T) {
	mock := clock.NewMock()
	est := NewHeadingEstimator(mock, 0)

	_, ok := est.Age()
	assert.False(t, ok)

	q := YawToQuaternion(0)
	est.OnTelemetry(q[:])
	mock.Add(40 * time.Millisecond)

	age, ok := est.Age()
	require.True(t, ok)
	assert.Equal(t, 40*time.Millisecond, age)
}
