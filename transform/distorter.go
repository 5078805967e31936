package transform

import "github.com/pkg/errors"

// DistortionType is the name of the distortion model.
type DistortionType string

// BrownConradyDistortionType is for simple lenses of narrow field easily
// modeled as a pinhole camera.
const BrownConradyDistortionType = DistortionType("brown_conrady")

// Distorter defines a lens distortion model over normalized image plane
// coordinates.
type Distorter interface {
	ModelType() DistortionType
	CheckValid() error
	Parameters() []float64
	// Transform applies the forward distortion model to an undistorted
	// normalized coordinate.
	Transform(x, y float64) (float64, float64)
	// Undistort inverts the model, mapping a distorted normalized
	// coordinate back to the ideal pinhole coordinate.
	Undistort(x, y float64) (float64, float64)
}

// InvalidDistortionError is used when the distortion_parameters are invalid.
func InvalidDistortionError(msg string) error {
	return errors.Wrapf(errors.New("invalid distortion_parameters"), msg)
}

// NewDistorter returns a Distorter given a valid DistortionType and its parameters.
func NewDistorter(distortionType DistortionType, parameters []float64) (Distorter, error) {
	switch distortionType {
	case BrownConradyDistortionType:
		return NewBrownConrady(parameters)
	default:
		return nil, errors.Errorf("do not know how to parse %q distortion model", distortionType)
	}
}
