package keypoints

import (
	"image"
	"image/color"
	"math"
	"testing"

	"go.viam.com/test"
)

// whiteSquareImage draws a filled white square on a black background; its
// four corners are the only FAST-detectable features.
func whiteSquareImage(size, lo, hi int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := lo; y < hi; y++ {
		for x := lo; x < hi; x++ {
			img.SetGray(x, y, color.Gray{255})
		}
	}
	return img
}

func TestCircleIdx(t *testing.T) {
	test.That(t, CircleIdx, test.ShouldHaveLength, 16)
	// all offsets lie on the radius-3 Bresenham circle: Euclidean
	// distance near 3, no duplicates. The diagonal arcs pass through
	// offsets like (2,-2) whose box distance is only 2.
	seen := map[image.Point]bool{}
	for _, p := range CircleIdx {
		test.That(t, seen[p], test.ShouldBeFalse)
		seen[p] = true
		dist := math.Hypot(float64(p.X), float64(p.Y))
		test.That(t, dist, test.ShouldBeBetweenOrEqual, 2.8, 3.2)
	}
	test.That(t, CrossIdx, test.ShouldHaveLength, 4)
}

func TestGetPointValuesInNeighborhood(t *testing.T) {
	img := whiteSquareImage(16, 4, 12)
	vals := GetPointValuesInNeighborhood(img, image.Point{8, 8}, CrossIdx)
	test.That(t, vals, test.ShouldResemble, []float64{255, 255, 255, 255})
	vals = GetPointValuesInNeighborhood(img, image.Point{1, 1}, CrossIdx)
	test.That(t, vals, test.ShouldResemble, []float64{0, 0, 0, 0})
}

func TestIsContiguousSegment(t *testing.T) {
	seg := make([]bool, 16)
	for i := 4; i < 13; i++ {
		seg[i] = true
	}
	test.That(t, isContiguousSegment(seg, 9), test.ShouldBeTrue)
	test.That(t, isContiguousSegment(seg, 10), test.ShouldBeFalse)

	// wrap-around segments count
	wrap := make([]bool, 16)
	for i := 0; i < 5; i++ {
		wrap[i] = true
	}
	for i := 12; i < 16; i++ {
		wrap[i] = true
	}
	test.That(t, isContiguousSegment(wrap, 9), test.ShouldBeTrue)
}

func TestFASTDetectsSquareCorners(t *testing.T) {
	img := whiteSquareImage(128, 40, 88)
	kps, err := NewFASTKeypointsFromImage(img, DefaultFASTConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(kps.Points), test.ShouldBeGreaterThan, 0)
	test.That(t, kps.Orientations, test.ShouldHaveLength, len(kps.Points))

	// every detection is near one of the four square corners; straight
	// edges have no segment of 9 differing circle pixels
	corners := []image.Point{{40, 40}, {87, 40}, {87, 87}, {40, 87}}
	for _, kp := range kps.Points {
		near := false
		for _, c := range corners {
			dx, dy := kp.X-c.X, kp.Y-c.Y
			if dx*dx+dy*dy <= 36 {
				near = true
				break
			}
		}
		test.That(t, near, test.ShouldBeTrue)
	}
}

func TestRescaleKeypoints(t *testing.T) {
	kps := KeyPoints{{2, 3}, {10, 0}}
	rescaled := RescaleKeypoints(kps, 2)
	test.That(t, rescaled, test.ShouldResemble, KeyPoints{{4, 6}, {20, 0}})
	same := RescaleKeypoints(kps, 1)
	test.That(t, same, test.ShouldResemble, kps)
}

func TestImagePyramid(t *testing.T) {
	img := whiteSquareImage(128, 30, 90)
	pyramid, err := GetImagePyramid(img, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pyramid.Images, test.ShouldHaveLength, len(pyramid.Scales))
	test.That(t, pyramid.Scales[0], test.ShouldEqual, 1)
	test.That(t, pyramid.Images[0].Bounds().Dx(), test.ShouldEqual, 128)
	test.That(t, pyramid.Images[1].Bounds().Dx(), test.ShouldEqual, 64)
	for i := 1; i < len(pyramid.Scales); i++ {
		test.That(t, pyramid.Scales[i], test.ShouldEqual, 2*pyramid.Scales[i-1])
	}

	// the configured downscale factor must carry into the layer sizes
	big := whiteSquareImage(243, 60, 180)
	pyramid3, err := GetImagePyramid(big, 3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(pyramid3.Scales), test.ShouldBeGreaterThan, 1)
	test.That(t, pyramid3.Images[1].Bounds().Dx(), test.ShouldEqual, 81)
	test.That(t, pyramid3.Scales[1], test.ShouldEqual, 3)

	_, err = GetImagePyramid(nil, 2)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = GetImagePyramid(img, 1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestGenerateSamplePairs(t *testing.T) {
	sp := GenerateSamplePairs(uniform, 256, 31)
	test.That(t, sp.N, test.ShouldEqual, 256)
	test.That(t, sp.P0, test.ShouldHaveLength, 256)
	test.That(t, sp.P1, test.ShouldHaveLength, 256)
	for i := range sp.P0 {
		test.That(t, sp.P0[i].X, test.ShouldBeBetweenOrEqual, -15, 16)
		test.That(t, sp.P1[i].Y, test.ShouldBeBetweenOrEqual, -15, 16)
	}

	// deterministic generation keeps descriptor sets comparable
	sp2 := GenerateSamplePairs(uniform, 256, 31)
	test.That(t, sp2, test.ShouldResemble, sp)
}
