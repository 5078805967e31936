package timage

import (
	"image"
	"math"
)

// Vec2D represents the gradient of an image at a point.
// The gradient has both a magnitude and direction.
// Magnitude has values (0, infinity) and direction is [0, 2pi).
type Vec2D struct {
	magnitude float64
	direction float64
}

// Magnitude returns the magnitude of the gradient vector.
func (g Vec2D) Magnitude() float64 {
	return g.magnitude
}

// Direction returns the direction of the gradient vector.
func (g Vec2D) Direction() float64 {
	return g.direction
}

// VectorField2D stores all the gradient vectors of the image
// allowing one to retrieve the gradient for any given (x,y) point.
type VectorField2D struct {
	width  int
	height int

	data         []Vec2D
	maxMagnitude float64
}

func (vf *VectorField2D) kxy(x, y int) int {
	return (y * vf.width) + x
}

// Width returns the width of the field.
func (vf *VectorField2D) Width() int {
	return vf.width
}

// Height returns the height of the field.
func (vf *VectorField2D) Height() int {
	return vf.height
}

// GetVec2D returns the gradient at (x, y).
func (vf *VectorField2D) GetVec2D(x, y int) Vec2D {
	return vf.data[vf.kxy(x, y)]
}

// MaxMagnitude returns the largest gradient magnitude in the field.
func (vf *VectorField2D) MaxMagnitude() float64 {
	return vf.maxMagnitude
}

// SobelGradient computes the gradient vector field of a grayscale image
// with the 3x3 Sobel kernels.
func SobelGradient(img *image.Gray) (*VectorField2D, error) {
	anchor := image.Point{1, 1}
	gx, err := ConvolveGraySigned(img, GetSobelX(), anchor)
	if err != nil {
		return nil, err
	}
	gy, err := ConvolveGraySigned(img, GetSobelY(), anchor)
	if err != nil {
		return nil, err
	}
	w, h := img.Bounds().Max.X, img.Bounds().Max.Y
	vf := VectorField2D{
		width:  w,
		height: h,
		data:   make([]Vec2D, w*h),
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := gx[y][x], gy[y][x]
			mag := math.Hypot(dx, dy)
			dir := math.Atan2(dy, dx)
			if dir < 0 {
				dir += 2 * math.Pi
			}
			vf.data[vf.kxy(x, y)] = Vec2D{mag, dir}
			vf.maxMagnitude = math.Max(mag, vf.maxMagnitude)
		}
	}
	return &vf, nil
}

// ConvolveGraySigned convolves img with kernel without clamping, returning
// the raw signed responses row by row.
func ConvolveGraySigned(img *image.Gray, kernel *Kernel, anchor image.Point) ([][]float64, error) {
	kernelSize := kernel.Size()
	padded, err := PaddingGray(img, kernelSize, anchor, BorderReplicate)
	if err != nil {
		return nil, err
	}
	originalSize := img.Bounds().Size()
	result := make([][]float64, originalSize.Y)
	for y := 0; y < originalSize.Y; y++ {
		result[y] = make([]float64, originalSize.X)
		for x := 0; x < originalSize.X; x++ {
			sum := float64(0)
			for ky := 0; ky < kernelSize.Y; ky++ {
				for kx := 0; kx < kernelSize.X; kx++ {
					sum += float64(padded.GrayAt(x+kx, y+ky).Y) * kernel.At(kx, ky)
				}
			}
			result[y][x] = sum
		}
	}
	return result, nil
}
