package motion

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedCommand is returned when a command payload cannot be decoded.
var ErrMalformedCommand = errors.New("malformed command payload")

// EncodeCommand renders a command as the actuator's wire string
// "[x_vel, -y_vel, -yaw_vel, height]". The lateral and angular components are
// negated to match the downstream actuator's axis convention.
func EncodeCommand(xVel, yVel, yawVel, height float64) ([]byte, error) {
	values := [4]float64{xVel, -yVel, -yawVel, height}
	parts := make([]string, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("cannot encode non-finite value %v at index %d", v, i)
		}
		parts[i] = formatFloat(v)
	}
	return []byte("[" + strings.Join(parts, ", ") + "]"), nil
}

// DecodeCommand parses a wire payload back into semantic velocities, undoing the
// axis negation applied by EncodeCommand.
func DecodeCommand(payload []byte) (VelocityCommand, error) {
	s := strings.TrimSpace(string(payload))
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return VelocityCommand{}, fmt.Errorf("%w: %q", ErrMalformedCommand, s)
	}
	fields := strings.Split(s[1:len(s)-1], ",")
	if len(fields) != 4 {
		return VelocityCommand{}, fmt.Errorf("%w: expected 4 values, got %d", ErrMalformedCommand, len(fields))
	}

	var values [4]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return VelocityCommand{}, fmt.Errorf("%w: value %d: %v", ErrMalformedCommand, i, err)
		}
		values[i] = v
	}

	height := values[3]
	return VelocityCommand{
		XVel:   values[0],
		YVel:   -values[1],
		YawVel: -values[2],
		Height: &height,
	}, nil
}

// formatFloat prints v the way the actuator bridge prints floats: shortest
// round-trip digits, always with a decimal point, exponent form outside [1e-4, 1e16).
func formatFloat(v float64) string {
	if v == 0 {
		if math.Signbit(v) {
			return "-0.0"
		}
		return "0.0"
	}

	sci := strconv.FormatFloat(v, 'e', -1, 64)
	idx := strings.IndexByte(sci, 'e')
	exp, err := strconv.Atoi(sci[idx+1:])
	if err == nil && (exp < -4 || exp >= 16) {
		return sci
	}

	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
