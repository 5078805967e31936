package transform

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	utils "go.viam.com/utils"
	"gonum.org/v1/gonum/mat"
)

// ErrNoIntrinsics is returned when a camera does not have usable intrinsic
// parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// PinholeCameraIntrinsics holds the intrinsic parameters of a pinhole
// camera: focal lengths, principal point, and image size in pixels.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid
// inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return errors.Wrap(ErrNoIntrinsics, "intrinsics do not exist")
	}
	if params.Fx <= 0 || params.Fy <= 0 {
		return errors.Wrapf(ErrNoIntrinsics, "focal length invalid: (%v, %v)", params.Fx, params.Fy)
	}
	if !isFinite(params.Fx) || !isFinite(params.Fy) || !isFinite(params.Ppx) || !isFinite(params.Ppy) {
		return errors.Wrap(ErrNoIntrinsics, "intrinsics contain non-finite values")
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Matrix returns the camera matrix K as a gonum dense matrix.
func (params *PinholeCameraIntrinsics) Matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		params.Fx, 0, params.Ppx,
		0, params.Fy, params.Ppy,
		0, 0, 1,
	})
}

// PixelToNormalized converts a pixel coordinate into the normalized image
// plane (unit focal length).
func (params *PinholeCameraIntrinsics) PixelToNormalized(pt r2.Point) r2.Point {
	return r2.Point{
		X: (pt.X - params.Ppx) / params.Fx,
		Y: (pt.Y - params.Ppy) / params.Fy,
	}
}

// NormalizedToPixel converts a normalized image plane coordinate into a
// pixel coordinate.
func (params *PinholeCameraIntrinsics) NormalizedToPixel(pt r2.Point) r2.Point {
	return r2.Point{
		X: pt.X*params.Fx + params.Ppx,
		Y: pt.Y*params.Fy + params.Ppy,
	}
}

// PinholeCameraModel is the model of a pinhole camera: intrinsics plus an
// optional lens distortion model.
type PinholeCameraModel struct {
	*PinholeCameraIntrinsics `json:"intrinsic_parameters"`
	Distortion               Distorter `json:"distortion"`
}

// UndistortPoint maps a distorted pixel coordinate to the pixel coordinate
// an ideal pinhole camera would have produced. With no distortion model
// the point is returned unchanged.
func (model *PinholeCameraModel) UndistortPoint(pt r2.Point) r2.Point {
	if model.Distortion == nil {
		return pt
	}
	norm := model.PixelToNormalized(pt)
	ux, uy := model.Distortion.Undistort(norm.X, norm.Y)
	return model.NormalizedToPixel(r2.Point{X: ux, Y: uy})
}

// NewPinholeCameraIntrinsicsFromJSONFile takes in a file path to a JSON
// and turns it into PinholeCameraIntrinsics.
func NewPinholeCameraIntrinsicsFromJSONFile(jsonPath string) (*PinholeCameraIntrinsics, error) {
	intrinsics := &PinholeCameraIntrinsics{}
	jsonFile, err := os.Open(filepath.Clean(jsonPath))
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	defer utils.UncheckedErrorFunc(jsonFile.Close)
	if err := json.NewDecoder(jsonFile).Decode(intrinsics); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	return intrinsics, nil
}
