// Package pose recovers the camera-to-tag rigid transform from the
// refined homography and converts it into the NED (North-East-Down)
// conventions of the tag system.
package pose

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/S-SB/gp-tag/transform"
)

// CamPose is the rigid transform from the tag frame to the camera frame:
// x_cam = R * x_tag + t. The camera frame is x right, y down, z forward.
type CamPose struct {
	Rotation    *mat.Dense // 3x3
	Translation r3.Vector  // meters
}

// SolvePlanar recovers the camera pose from a homography mapping metric
// tag-plane coordinates (meters, z = 0) to pixel coordinates, given the
// camera intrinsics. The standard planar decomposition H = K [r1 r2 t] is
// used, with an SVD re-orthonormalization of the rotation.
func SolvePlanar(h *transform.Homography, intrinsics *transform.PinholeCameraIntrinsics) (*CamPose, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	var kInv mat.Dense
	if err := kInv.Inverse(intrinsics.Matrix()); err != nil {
		return nil, errors.Wrap(err, "cannot invert camera matrix")
	}
	var m mat.Dense
	m.Mul(&kInv, h.Mat())

	m1 := r3.Vector{X: m.At(0, 0), Y: m.At(1, 0), Z: m.At(2, 0)}
	m2 := r3.Vector{X: m.At(0, 1), Y: m.At(1, 1), Z: m.At(2, 1)}
	m3 := r3.Vector{X: m.At(0, 2), Y: m.At(1, 2), Z: m.At(2, 2)}
	n1, n2 := m1.Norm(), m2.Norm()
	if n1 < 1e-12 || n2 < 1e-12 {
		return nil, errors.New("degenerate homography: zero rotation column")
	}
	lambda := 2.0 / (n1 + n2)
	// tag must be in front of the camera
	if m3.Z*lambda < 0 {
		lambda = -lambda
	}
	r1 := m1.Mul(lambda)
	r2 := m2.Mul(lambda)
	r3col := r1.Cross(r2)
	t := m3.Mul(lambda)

	rApprox := mat.NewDense(3, 3, []float64{
		r1.X, r2.X, r3col.X,
		r1.Y, r2.Y, r3col.Y,
		r1.Z, r2.Z, r3col.Z,
	})
	rot, err := nearestRotation(rApprox)
	if err != nil {
		return nil, err
	}
	return &CamPose{Rotation: rot, Translation: t}, nil
}

// nearestRotation projects a near-orthonormal matrix onto SO(3) with an
// SVD: R = U * V^T, with the determinant corrected to +1.
func nearestRotation(m *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return nil, errors.New("failed to factorize rotation")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	var r mat.Dense
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		// flip the last column of U
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		r.Mul(&u, v.T())
	}
	return &r, nil
}

// CameraInTagFrame returns the camera origin expressed in the tag frame:
// C = -R^T * t.
func (cp *CamPose) CameraInTagFrame() r3.Vector {
	var rt mat.Dense
	rt.CloneFrom(cp.Rotation.T())
	t := cp.Translation
	return r3.Vector{
		X: -(rt.At(0, 0)*t.X + rt.At(0, 1)*t.Y + rt.At(0, 2)*t.Z),
		Y: -(rt.At(1, 0)*t.X + rt.At(1, 1)*t.Y + rt.At(1, 2)*t.Z),
		Z: -(rt.At(2, 0)*t.X + rt.At(2, 1)*t.Y + rt.At(2, 2)*t.Z),
	}
}

// ReprojectionError computes the RMS pixel error of the pose against the
// point correspondences used to estimate it.
func ReprojectionError(cp *CamPose, intrinsics *transform.PinholeCameraIntrinsics, tagPts []r3.Vector, imgPts [][2]float64) float64 {
	if len(tagPts) == 0 || len(tagPts) != len(imgPts) {
		return math.NaN()
	}
	var sum float64
	for i, p := range tagPts {
		c := r3.Vector{
			X: cp.Rotation.At(0, 0)*p.X + cp.Rotation.At(0, 1)*p.Y + cp.Rotation.At(0, 2)*p.Z + cp.Translation.X,
			Y: cp.Rotation.At(1, 0)*p.X + cp.Rotation.At(1, 1)*p.Y + cp.Rotation.At(1, 2)*p.Z + cp.Translation.Y,
			Z: cp.Rotation.At(2, 0)*p.X + cp.Rotation.At(2, 1)*p.Y + cp.Rotation.At(2, 2)*p.Z + cp.Translation.Z,
		}
		u := intrinsics.Fx*c.X/c.Z + intrinsics.Ppx
		v := intrinsics.Fy*c.Y/c.Z + intrinsics.Ppy
		du, dv := u-imgPts[i][0], v-imgPts[i][1]
		sum += du*du + dv*dv
	}
	return math.Sqrt(sum / float64(len(tagPts)))
}
