package transform

import (
	"testing"

	"go.viam.com/test"
)

func TestNewBrownConrady(t *testing.T) {
	bc, err := NewBrownConrady([]float64{0.1, -0.2, 0.003, -0.004, 0.05})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bc.RadialK1, test.ShouldEqual, 0.1)
	test.That(t, bc.RadialK2, test.ShouldEqual, -0.2)
	test.That(t, bc.TangentialP1, test.ShouldEqual, 0.003)
	test.That(t, bc.TangentialP2, test.ShouldEqual, -0.004)
	test.That(t, bc.RadialK3, test.ShouldEqual, 0.05)
	test.That(t, bc.Parameters(), test.ShouldResemble, []float64{0.1, -0.2, 0.003, -0.004, 0.05})

	// short parameter lists are zero filled
	bc, err = NewBrownConrady([]float64{0.1, -0.2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bc.TangentialP1, test.ShouldEqual, 0.0)
	test.That(t, bc.RadialK3, test.ShouldEqual, 0.0)

	_, err = NewBrownConrady(make([]float64, 6))
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, bc.ModelType(), test.ShouldEqual, BrownConradyDistortionType)
}

func TestBrownConradyNil(t *testing.T) {
	var bc *BrownConrady
	test.That(t, bc.CheckValid(), test.ShouldNotBeNil)
	test.That(t, bc.Parameters(), test.ShouldResemble, []float64{})
	x, y := bc.Transform(0.25, -0.5)
	test.That(t, x, test.ShouldEqual, 0.25)
	test.That(t, y, test.ShouldEqual, -0.5)
}

func TestTransformUndistortRoundTrip(t *testing.T) {
	bc, err := NewBrownConrady([]float64{0.12, -0.08, 0.0015, -0.0025, 0.02})
	test.That(t, err, test.ShouldBeNil)

	// normalized coordinates across the field of view
	for _, pt := range [][2]float64{
		{0, 0}, {0.1, 0.1}, {-0.3, 0.2}, {0.4, -0.4}, {-0.5, -0.5},
	} {
		xd, yd := bc.Transform(pt[0], pt[1])
		xu, yu := bc.Undistort(xd, yd)
		test.That(t, xu, test.ShouldAlmostEqual, pt[0], 1e-6)
		test.That(t, yu, test.ShouldAlmostEqual, pt[1], 1e-6)
	}

	// zero coefficients mean no distortion
	identity, err := NewBrownConrady(nil)
	test.That(t, err, test.ShouldBeNil)
	x, y := identity.Transform(0.3, -0.1)
	test.That(t, x, test.ShouldEqual, 0.3)
	test.That(t, y, test.ShouldEqual, -0.1)
}
