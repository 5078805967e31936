package transform

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func testIntrinsics() *PinholeCameraIntrinsics {
	return &PinholeCameraIntrinsics{
		Width:  1280,
		Height: 720,
		Fx:     900.5,
		Fy:     900.5,
		Ppx:    648.9,
		Ppy:    367.3,
	}
}

func TestCheckValid(t *testing.T) {
	test.That(t, testIntrinsics().CheckValid(), test.ShouldBeNil)

	var nilParams *PinholeCameraIntrinsics
	err := nilParams.CheckValid()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)

	bad := testIntrinsics()
	bad.Fx = 0
	err = bad.CheckValid()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)
}

func TestPixelNormalizedRoundTrip(t *testing.T) {
	params := testIntrinsics()
	pt := r2.Point{X: 200, Y: 300}
	norm := params.PixelToNormalized(pt)
	back := params.NormalizedToPixel(norm)
	test.That(t, back.X, test.ShouldAlmostEqual, pt.X, 1e-9)
	test.That(t, back.Y, test.ShouldAlmostEqual, pt.Y, 1e-9)

	// the principal point maps to the origin of the normalized plane
	center := params.PixelToNormalized(r2.Point{X: params.Ppx, Y: params.Ppy})
	test.That(t, center.X, test.ShouldAlmostEqual, 0)
	test.That(t, center.Y, test.ShouldAlmostEqual, 0)
}

func TestCameraMatrix(t *testing.T) {
	params := testIntrinsics()
	k := params.Matrix()
	test.That(t, k.At(0, 0), test.ShouldEqual, params.Fx)
	test.That(t, k.At(1, 1), test.ShouldEqual, params.Fy)
	test.That(t, k.At(0, 2), test.ShouldEqual, params.Ppx)
	test.That(t, k.At(1, 2), test.ShouldEqual, params.Ppy)
	test.That(t, k.At(2, 2), test.ShouldEqual, 1.0)
}

func TestUndistortPoint(t *testing.T) {
	params := testIntrinsics()

	// no distortion model leaves points untouched
	model := &PinholeCameraModel{PinholeCameraIntrinsics: params}
	pt := r2.Point{X: 100, Y: 200}
	test.That(t, model.UndistortPoint(pt), test.ShouldResemble, pt)

	// with a model, undistorting a forward-distorted point recovers it
	bc, err := NewBrownConrady([]float64{0.1, -0.05, 0.001, -0.002, 0.01})
	test.That(t, err, test.ShouldBeNil)
	model = &PinholeCameraModel{PinholeCameraIntrinsics: params, Distortion: bc}

	ideal := r2.Point{X: 700, Y: 400}
	norm := params.PixelToNormalized(ideal)
	dx, dy := bc.Transform(norm.X, norm.Y)
	distorted := params.NormalizedToPixel(r2.Point{X: dx, Y: dy})

	recovered := model.UndistortPoint(distorted)
	test.That(t, recovered.X, test.ShouldAlmostEqual, ideal.X, 1e-3)
	test.That(t, recovered.Y, test.ShouldAlmostEqual, ideal.Y, 1e-3)
}

func TestNewPinholeCameraIntrinsicsFromJSONFile(t *testing.T) {
	dir := t.TempDir()
	goodPath := filepath.Join(dir, "intrinsics.json")
	b, err := json.Marshal(testIntrinsics())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, os.WriteFile(goodPath, b, 0o600), test.ShouldBeNil)

	params, err := NewPinholeCameraIntrinsicsFromJSONFile(goodPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params, test.ShouldResemble, testIntrinsics())

	_, err = NewPinholeCameraIntrinsicsFromJSONFile(filepath.Join(dir, "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)

	badPath := filepath.Join(dir, "bad.json")
	test.That(t, os.WriteFile(badPath, []byte(`{"fx": 0}`), 0o600), test.ShouldBeNil)
	_, err = NewPinholeCameraIntrinsicsFromJSONFile(badPath)
	test.That(t, err, test.ShouldNotBeNil)
}
