// Package telemetry decodes attitude telemetry published by the robot bridge.
// Payloads are either JSON low-state messages or AttitudeState FlatBuffers.
package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	fbtelemetry "github.com/open-teleop/motion-controller/pkg/flatbuffers/open_teleop/telemetry"
)

// DefaultTopic is the low-state channel carrying IMU attitude.
const DefaultTopic = "rt/lowstate"

// ErrMalformedPayload is returned for payloads that carry no usable quaternion.
var ErrMalformedPayload = errors.New("malformed attitude payload")

// Attitude is one decoded attitude message.
type Attitude struct {
	// Quaternion is the orientation in [x, y, z, w] order.
	Quaternion  [4]float64
	TimestampNs int64
	FrameID     string
}

// lowState is the JSON shape of a low-state message. Only the IMU part is read.
type lowState struct {
	TimestampNs int64    `json:"timestamp_ns,omitempty"`
	FrameID     string   `json:"frame_id,omitempty"`
	IMUState    imuState `json:"imu_state"`
}

type imuState struct {
	Quaternion []float64 `json:"quaternion"`
}

// Decode parses a JSON or FlatBuffers attitude payload.
func Decode(payload []byte) (Attitude, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return decodeJSON(trimmed)
	}
	return decodeFlatbuffer(payload)
}

func decodeJSON(payload []byte) (Attitude, error) {
	var msg lowState
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Attitude{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(msg.IMUState.Quaternion) != 4 {
		return Attitude{}, fmt.Errorf("%w: quaternion has %d elements", ErrMalformedPayload, len(msg.IMUState.Quaternion))
	}
	a := Attitude{TimestampNs: msg.TimestampNs, FrameID: msg.FrameID}
	copy(a.Quaternion[:], msg.IMUState.Quaternion)
	return a, nil
}

// decodeFlatbuffer reads an AttitudeState table. The generated accessors panic on
// truncated or corrupt buffers, so those panics are turned into errors.
func decodeFlatbuffer(payload []byte) (a Attitude, err error) {
	if len(payload) < 8 {
		return Attitude{}, fmt.Errorf("%w: %d byte buffer", ErrMalformedPayload, len(payload))
	}
	defer func() {
		if r := recover(); r != nil {
			a = Attitude{}
			err = fmt.Errorf("%w: corrupt flatbuffer: %v", ErrMalformedPayload, r)
		}
	}()

	state := fbtelemetry.GetRootAsAttitudeState(payload, 0)
	if n := state.QuaternionLength(); n != 4 {
		return Attitude{}, fmt.Errorf("%w: quaternion has %d elements", ErrMalformedPayload, n)
	}
	for i := 0; i < 4; i++ {
		a.Quaternion[i] = state.Quaternion(i)
	}
	a.TimestampNs = state.TimestampNs()
	a.FrameID = string(state.FrameId())
	return a, nil
}

// EncodeJSON renders a as a JSON low-state message.
func EncodeJSON(a Attitude) ([]byte, error) {
	return json.Marshal(lowState{
		TimestampNs: a.TimestampNs,
		FrameID:     a.FrameID,
		IMUState:    imuState{Quaternion: a.Quaternion[:]},
	})
}

// EncodeFlatbuffer renders a as a finished AttitudeState buffer.
func EncodeFlatbuffer(a Attitude) []byte {
	builder := flatbuffers.NewBuilder(96)

	var frameID flatbuffers.UOffsetT
	if a.FrameID != "" {
		frameID = builder.CreateString(a.FrameID)
	}

	fbtelemetry.AttitudeStateStartQuaternionVector(builder, len(a.Quaternion))
	for i := len(a.Quaternion) - 1; i >= 0; i-- {
		builder.PrependFloat64(a.Quaternion[i])
	}
	quaternion := builder.EndVector(len(a.Quaternion))

	fbtelemetry.AttitudeStateStart(builder)
	fbtelemetry.AttitudeStateAddTimestampNs(builder, a.TimestampNs)
	fbtelemetry.AttitudeStateAddQuaternion(builder, quaternion)
	if a.FrameID != "" {
		fbtelemetry.AttitudeStateAddFrameId(builder, frameID)
	}
	fbtelemetry.FinishAttitudeStateBuffer(builder, fbtelemetry.AttitudeStateEnd(builder))
	return builder.FinishedBytes()
}
