package transform

import "github.com/pkg/errors"

// BrownConrady is the standard radial-tangential lens distortion model
// with three radial and two tangential coefficients, in the usual
// (k1, k2, p1, p2, k3) parameter order.
type BrownConrady struct {
	RadialK1     float64 `json:"rk1"`
	RadialK2     float64 `json:"rk2"`
	RadialK3     float64 `json:"rk3"`
	TangentialP1 float64 `json:"tp1"`
	TangentialP2 float64 `json:"tp2"`
}

// NewBrownConrady takes in a slice of floats (k1, k2, p1, p2, k3) that
// will be passed into the struct in order. Missing trailing values are
// filled with 0.
func NewBrownConrady(inp []float64) (*BrownConrady, error) {
	if len(inp) > 5 {
		return nil, errors.Errorf("list of parameters too long, expected max 5, got %d", len(inp))
	}
	for i := len(inp); i < 5; i++ {
		inp = append(inp, 0.0)
	}
	return &BrownConrady{inp[0], inp[1], inp[4], inp[2], inp[3]}, nil
}

// CheckValid checks if the fields for BrownConrady have valid inputs.
func (bc *BrownConrady) CheckValid() error {
	if bc == nil {
		return InvalidDistortionError("BrownConrady shaped distortion_parameters not provided")
	}
	return nil
}

// ModelType returns the type of distortion model.
func (bc *BrownConrady) ModelType() DistortionType {
	return BrownConradyDistortionType
}

// Parameters returns the parameters of the distortion model as a list of
// floats in (k1, k2, p1, p2, k3) order.
func (bc *BrownConrady) Parameters() []float64 {
	if bc == nil {
		return []float64{}
	}
	return []float64{bc.RadialK1, bc.RadialK2, bc.TangentialP1, bc.TangentialP2, bc.RadialK3}
}

// Transform applies the forward Brown-Conrady model:
//
//	x_d = x_u*(1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p1*x_u*y_u + p2*(r² + 2*x_u²)
//	y_d = y_u*(1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p2*x_u*y_u + p1*(r² + 2*y_u²)
func (bc *BrownConrady) Transform(xu, yu float64) (float64, float64) {
	if bc == nil {
		return xu, yu
	}
	r2 := xu*xu + yu*yu
	r4 := r2 * r2
	r6 := r4 * r2
	radDist := 1.0 + bc.RadialK1*r2 + bc.RadialK2*r4 + bc.RadialK3*r6
	xd := xu*radDist + 2.0*bc.TangentialP1*xu*yu + bc.TangentialP2*(r2+2.0*xu*xu)
	yd := yu*radDist + 2.0*bc.TangentialP2*xu*yu + bc.TangentialP1*(r2+2.0*yu*yu)
	return xd, yd
}

// Undistort inverts the model with fixed-point iteration, solving for the
// undistorted coordinates that the forward model maps to (xd, yd).
func (bc *BrownConrady) Undistort(xd, yd float64) (float64, float64) {
	if bc == nil {
		return xd, yd
	}
	const maxIterations = 20
	const tolerance = 1e-10
	xu, yu := xd, yd
	for i := 0; i < maxIterations; i++ {
		fx, fy := bc.Transform(xu, yu)
		ex, ey := fx-xd, fy-yd
		if ex*ex+ey*ey < tolerance*tolerance {
			break
		}
		xu -= ex
		yu -= ey
	}
	return xu, yu
}
