package timage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// ProjectFunc maps a coordinate in the output (canonical) image to a
// coordinate in the source image.
type ProjectFunc func(x, y float64) (float64, float64)

// Rectify resamples src into a width x height canonical image. For every
// output pixel the project function gives the source location, which is
// sampled bilinearly. Pixel centers are at half-integer coordinates.
func Rectify(src *image.Gray, width, height int, project ProjectFunc) (*image.Gray, error) {
	if src == nil {
		return nil, errors.New("source image is nil")
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid rectified size %dx%d", width, height)
	}
	out := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sx, sy := project(float64(x)+0.5, float64(y)+0.5)
			v := BilinearGray(src, sx-0.5, sy-0.5)
			out.SetGray(x, y, color.Gray{uint8(v + 0.5)})
		}
	}
	return out, nil
}

// Rotate90Gray rotates img counter-clockwise by quarterTurns quarter
// turns. The image must be square.
func Rotate90Gray(img *image.Gray, quarterTurns int) (*image.Gray, error) {
	w, h := img.Bounds().Max.X, img.Bounds().Max.Y
	if w != h {
		return nil, errors.Errorf("image must be square to rotate in place, got %dx%d", w, h)
	}
	quarterTurns = ((quarterTurns % 4) + 4) % 4
	if quarterTurns == 0 {
		return img, nil
	}
	out := image.NewGray(img.Bounds())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sx, sy int
			switch quarterTurns {
			case 1:
				sx, sy = w-1-y, x
			case 2:
				sx, sy = w-1-x, h-1-y
			case 3:
				sx, sy = y, h-1-x
			}
			out.SetGray(x, y, img.GrayAt(sx, sy))
		}
	}
	return out, nil
}
