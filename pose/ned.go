package pose

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// The tag frame is NED-aligned at the reference pose: the tag lies flat,
// its right edge points North (+X), its bottom edge points East (+Y), and
// +Z points down through the tag surface (right-hand rule).

// Result is the NED pose of one detection: the position of the tag
// relative to the observer as a [north, east, down] vector in meters, and
// the observer's orientation as a unit [x, y, z, w] quaternion.
type Result struct {
	Position [3]float64 `json:"position"` // observer -> tag, NED meters
	Rotation [4]float64 `json:"rotation"` // [x, y, z, w]
}

// FromCamPose converts a solved camera pose into the NED result. The
// relative position is the vector from the camera to the tag origin
// expressed in the tag's NED frame; the rotation is the camera's
// orientation relative to that frame.
func FromCamPose(cp *CamPose) *Result {
	cam := cp.CameraInTagFrame()
	// vector observer -> tag is the negated camera position
	pos := r3.Vector{X: -cam.X, Y: -cam.Y, Z: -cam.Z}
	// camera orientation in the tag frame is R^T
	var rt mat.Dense
	rt.CloneFrom(cp.Rotation.T())
	q := rotationMatrixToQuat(&rt)
	return &Result{
		Position: [3]float64{pos.X, pos.Y, pos.Z},
		Rotation: [4]float64{q.Imag, q.Jmag, q.Kmag, q.Real},
	}
}

// rotationMatrixToQuat converts a 3x3 rotation matrix into a unit
// quaternion with Shepperd's method.
func rotationMatrixToQuat(r *mat.Dense) quat.Number {
	trace := r.At(0, 0) + r.At(1, 1) + r.At(2, 2)
	var q quat.Number
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1.0)
		q.Real = 0.25 / s
		q.Imag = (r.At(2, 1) - r.At(1, 2)) * s
		q.Jmag = (r.At(0, 2) - r.At(2, 0)) * s
		q.Kmag = (r.At(1, 0) - r.At(0, 1)) * s
	case r.At(0, 0) > r.At(1, 1) && r.At(0, 0) > r.At(2, 2):
		s := 2.0 * math.Sqrt(1.0+r.At(0, 0)-r.At(1, 1)-r.At(2, 2))
		q.Real = (r.At(2, 1) - r.At(1, 2)) / s
		q.Imag = 0.25 * s
		q.Jmag = (r.At(0, 1) + r.At(1, 0)) / s
		q.Kmag = (r.At(0, 2) + r.At(2, 0)) / s
	case r.At(1, 1) > r.At(2, 2):
		s := 2.0 * math.Sqrt(1.0+r.At(1, 1)-r.At(0, 0)-r.At(2, 2))
		q.Real = (r.At(0, 2) - r.At(2, 0)) / s
		q.Imag = (r.At(0, 1) + r.At(1, 0)) / s
		q.Jmag = 0.25 * s
		q.Kmag = (r.At(1, 2) + r.At(2, 1)) / s
	default:
		s := 2.0 * math.Sqrt(1.0+r.At(2, 2)-r.At(0, 0)-r.At(1, 1))
		q.Real = (r.At(1, 0) - r.At(0, 1)) / s
		q.Imag = (r.At(0, 2) + r.At(2, 0)) / s
		q.Jmag = (r.At(1, 2) + r.At(2, 1)) / s
		q.Kmag = 0.25 * s
	}
	return normalizeQuat(q)
}

func normalizeQuat(q quat.Number) quat.Number {
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// QuaternionToEulerNED converts an [x, y, z, w] quaternion to Euler
// angles [roll, pitch, yaw] in degrees, NED convention. Pitch is negated
// relative to the naive aerospace sequence, and gimbal lock is clamped.
func QuaternionToEulerNED(q [4]float64) [3]float64 {
	x, y, z, w := q[0], q[1], q[2], q[3]

	sinrCosp := 2 * (w*x + y*z)
	cosrCosp := 1 - 2*(x*x+y*y)
	roll := math.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (w*y - z*x)
	var pitch float64
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	sinyCosp := 2 * (w*z + x*y)
	cosyCosp := 1 - 2*(y*y+z*z)
	yaw := math.Atan2(sinyCosp, cosyCosp)

	const toDeg = 180 / math.Pi
	return [3]float64{roll * toDeg, -pitch * toDeg, yaw * toDeg}
}

// EulerToQuaternionNED converts Euler angles [roll, pitch, yaw] in
// degrees, NED convention, to an [x, y, z, w] quaternion.
func EulerToQuaternionNED(e [3]float64) [4]float64 {
	const toRad = math.Pi / 180
	roll, pitch, yaw := e[0]*toRad, e[1]*toRad, e[2]*toRad

	cy := math.Cos(yaw * 0.5)
	sy := math.Sin(yaw * 0.5)
	cp := math.Cos(pitch * 0.5)
	sp := math.Sin(pitch * 0.5)
	cr := math.Cos(roll * 0.5)
	sr := math.Sin(roll * 0.5)

	qw := cr*cp*cy + sr*sp*sy
	qx := sr*cp*cy - cr*sp*sy
	qy := cr*sp*cy + sr*cp*sy
	qz := cr*cp*sy - sr*sp*cy

	return [4]float64{qx, qy, qz, qw}
}
