package motion

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// ErrInvalidQuaternion is returned for quaternions that cannot describe an attitude.
var ErrInvalidQuaternion = errors.New("invalid orientation quaternion")

// WrapToPi normalizes an angle in radians into (-pi, pi].
func WrapToPi(angle float64) float64 {
	if angle > -math.Pi && angle <= math.Pi {
		return angle
	}
	a := math.Mod(angle+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	wrapped := a - math.Pi
	if wrapped <= -math.Pi {
		return math.Pi
	}
	return wrapped
}

// QuaternionToYaw extracts the heading about the vertical axis from an [x, y, z, w]
// quaternion. The quaternion is normalized first; the result lies in (-pi, pi].
func QuaternionToYaw(x, y, z, w float64) (float64, error) {
	q := quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
	if quat.IsNaN(q) || quat.IsInf(q) {
		return 0, ErrInvalidQuaternion
	}
	norm := quat.Abs(q)
	if norm == 0 || math.IsInf(norm, 0) {
		return 0, ErrInvalidQuaternion
	}
	q = quat.Scale(1/norm, q)

	sinyCosp := 2 * (q.Real*q.Kmag + q.Imag*q.Jmag)
	cosyCosp := 1 - 2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag)
	return WrapToPi(math.Atan2(sinyCosp, cosyCosp)), nil
}

// YawToQuaternion returns the [x, y, z, w] quaternion of a pure rotation about z.
func YawToQuaternion(yaw float64) [4]float64 {
	half := yaw / 2
	return [4]float64{0, 0, math.Sin(half), math.Cos(half)}
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
