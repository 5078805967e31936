package transform

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestNewHomography(t *testing.T) {
	vals := []float64{1., 2., 3.}
	_, err := NewHomography(vals)
	test.That(t, err.Error(), test.ShouldContainSubstring, "input to NewHomography must have length of 9")

	vals = []float64{0.2917537, -0.429283, 76.3818, 0.06943, 0.570922, 98.1731, -0.000304, -0.0005117, 1}
	h, err := NewHomography(vals)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h.At(0, 1), test.ShouldEqual, -0.429283)
	test.That(t, h.At(2, 0), test.ShouldEqual, -0.000304)
}

func TestHomographyApplyAndInverse(t *testing.T) {
	// pure translation
	h, err := NewHomography([]float64{1, 0, 10, 0, 1, -5, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)
	pt := h.Apply(r2.Point{X: 3, Y: 4})
	test.That(t, pt.X, test.ShouldAlmostEqual, 13)
	test.That(t, pt.Y, test.ShouldAlmostEqual, -1)

	inv, err := h.Inverse()
	test.That(t, err, test.ShouldBeNil)
	back := inv.Apply(pt)
	test.That(t, back.X, test.ShouldAlmostEqual, 3)
	test.That(t, back.Y, test.ShouldAlmostEqual, 4)

	singular, err := NewHomography([]float64{1, 0, 0, 1, 0, 0, 1, 0, 0})
	test.That(t, err, test.ShouldBeNil)
	_, err = singular.Inverse()
	test.That(t, err, test.ShouldNotBeNil)
}

// projectiveTestPoints builds correspondences under a known homography.
func projectiveTestPoints(h *Homography, n int, seed int64) ([]r2.Point, []r2.Point) {
	r := rand.New(rand.NewSource(seed))
	src := make([]r2.Point, n)
	dst := make([]r2.Point, n)
	for i := 0; i < n; i++ {
		src[i] = r2.Point{X: r.Float64() * 360, Y: r.Float64() * 360}
		dst[i] = h.Apply(src[i])
	}
	return src, dst
}

func TestEstimateHomography(t *testing.T) {
	truth, err := NewHomography([]float64{1.2, 0.1, 30, -0.05, 0.9, 120, 0.0002, -0.0001, 1})
	test.That(t, err, test.ShouldBeNil)
	src, dst := projectiveTestPoints(truth, 12, 17)

	h, err := EstimateHomography(src, dst)
	test.That(t, err, test.ShouldBeNil)
	for _, p := range []r2.Point{{X: 0, Y: 0}, {X: 360, Y: 0}, {X: 360, Y: 360}, {X: 180, Y: 90}} {
		want := truth.Apply(p)
		got := h.Apply(p)
		test.That(t, got.X, test.ShouldAlmostEqual, want.X, 1e-6)
		test.That(t, got.Y, test.ShouldAlmostEqual, want.Y, 1e-6)
	}

	_, err = EstimateHomography(src[:3], dst[:3])
	test.That(t, err, test.ShouldNotBeNil)
	_, err = EstimateHomography(src, dst[:5])
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEstimateHomographyMinimal(t *testing.T) {
	// exactly 4 correspondences: the 8x9 DLT system is solved by its
	// null-space vector and the estimate must interpolate the inputs
	truth, err := NewHomography([]float64{1.1, 0.05, 20, -0.02, 0.95, 45, 0.0001, -0.0002, 1})
	test.That(t, err, test.ShouldBeNil)
	src := []r2.Point{{X: 0, Y: 0}, {X: 360, Y: 0}, {X: 360, Y: 360}, {X: 0, Y: 360}}
	dst := make([]r2.Point, 4)
	for i, p := range src {
		dst[i] = truth.Apply(p)
	}

	h, err := EstimateHomography(src, dst)
	test.That(t, err, test.ShouldBeNil)
	for i, p := range src {
		got := h.Apply(p)
		test.That(t, got.X, test.ShouldAlmostEqual, dst[i].X, 1e-6)
		test.That(t, got.Y, test.ShouldAlmostEqual, dst[i].Y, 1e-6)
	}
	// and agree with the ground truth away from the inputs
	for _, p := range []r2.Point{{X: 180, Y: 180}, {X: 90, Y: 270}} {
		want := truth.Apply(p)
		got := h.Apply(p)
		test.That(t, got.X, test.ShouldAlmostEqual, want.X, 1e-5)
		test.That(t, got.Y, test.ShouldAlmostEqual, want.Y, 1e-5)
	}
}

func TestEstimateHomographyRANSAC(t *testing.T) {
	truth, err := NewHomography([]float64{0.9, -0.15, 60, 0.12, 1.1, -20, 0.0001, 0.0002, 1})
	test.That(t, err, test.ShouldBeNil)
	src, dst := projectiveTestPoints(truth, 40, 23)

	// corrupt a quarter of the correspondences
	r := rand.New(rand.NewSource(31))
	for i := 30; i < 40; i++ {
		dst[i] = r2.Point{X: r.Float64() * 1000, Y: r.Float64() * 1000}
	}

	h, inliers, err := EstimateHomographyRANSAC(src, dst, DefaultRansacConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(inliers), test.ShouldBeGreaterThanOrEqualTo, 30)
	for i := 0; i < 30; i++ {
		got := h.Apply(src[i])
		test.That(t, math.Hypot(got.X-dst[i].X, got.Y-dst[i].Y), test.ShouldBeLessThan, 1e-3)
	}

	// deterministic across calls
	h2, inliers2, err := EstimateHomographyRANSAC(src, dst, DefaultRansacConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, inliers2, test.ShouldResemble, inliers)
	test.That(t, h2, test.ShouldResemble, h)
}

func TestEstimateHomographyRANSACNotEnoughInliers(t *testing.T) {
	r := rand.New(rand.NewSource(37))
	src := make([]r2.Point, 20)
	dst := make([]r2.Point, 20)
	for i := range src {
		src[i] = r2.Point{X: r.Float64() * 360, Y: r.Float64() * 360}
		dst[i] = r2.Point{X: r.Float64() * 360, Y: r.Float64() * 360}
	}
	cfg := DefaultRansacConfig()
	cfg.MinInliers = 15
	_, _, err := EstimateHomographyRANSAC(src, dst, cfg)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "not enough inliers")
}
