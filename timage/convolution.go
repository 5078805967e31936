package timage

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
)

// Kernel is a 2 dimensional convolution kernel.
type Kernel struct {
	Content [][]float64
	Width   int
	Height  int
}

// At returns the kernel value at (x, y).
func (k *Kernel) At(x, y int) float64 {
	return k.Content[y][x]
}

// Size returns the size of the kernel as an image.Point.
func (k *Kernel) Size() image.Point {
	return image.Point{k.Width, k.Height}
}

// Normalize returns a new kernel whose coefficients sum to 1.
func (k *Kernel) Normalize() *Kernel {
	sum := 0.
	for y := 0; y < k.Height; y++ {
		for x := 0; x < k.Width; x++ {
			sum += k.Content[y][x]
		}
	}
	if sum == 0 {
		sum = 1
	}
	out := make([][]float64, k.Height)
	for y := 0; y < k.Height; y++ {
		out[y] = make([]float64, k.Width)
		for x := 0; x < k.Width; x++ {
			out[y][x] = k.Content[y][x] / sum
		}
	}
	return &Kernel{out, k.Width, k.Height}
}

// GetSobelX returns the Kernel corresponding to the Sobel kernel in the x direction.
func GetSobelX() *Kernel {
	return &Kernel{[][]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}, 3, 3}
}

// GetSobelY returns the Kernel corresponding to the Sobel kernel in the y direction.
func GetSobelY() *Kernel {
	return &Kernel{[][]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}, 3, 3}
}

// GetGaussian5 returns a 5x5 integer Gaussian kernel.
func GetGaussian5() *Kernel {
	return &Kernel{[][]float64{
		{1, 4, 6, 4, 1},
		{4, 16, 24, 16, 4},
		{6, 24, 36, 24, 6},
		{4, 16, 24, 16, 4},
		{1, 4, 6, 4, 1},
	}, 5, 5}
}

// ConvolveGray applies a convolution matrix (Kernel) to a grayscale image.
// The anchor represents a point inside the area of the kernel; after every
// step of the convolution the position specified by the anchor point gets
// updated on the result image.
func ConvolveGray(img *image.Gray, kernel *Kernel, anchor image.Point, border BorderPad) (*image.Gray, error) {
	kernelSize := kernel.Size()
	padded, err := PaddingGray(img, kernelSize, anchor, border)
	if err != nil {
		return nil, err
	}
	originalSize := img.Bounds().Size()
	resultImage := image.NewGray(img.Bounds())
	for y := 0; y < originalSize.Y; y++ {
		for x := 0; x < originalSize.X; x++ {
			sum := float64(0)
			for ky := 0; ky < kernelSize.Y; ky++ {
				for kx := 0; kx < kernelSize.X; kx++ {
					pixel := padded.GrayAt(x+kx, y+ky)
					sum += float64(pixel.Y) * kernel.At(kx, ky)
				}
			}
			sum = math.Max(0, math.Min(255, sum))
			resultImage.SetGray(x, y, color.Gray{uint8(sum)})
		}
	}
	return resultImage, nil
}

// BlurGray applies a normalized 5x5 Gaussian blur to img.
func BlurGray(img *image.Gray) (*image.Gray, error) {
	normalized := GetGaussian5().Normalize()
	blurred, err := ConvolveGray(img, normalized, image.Point{2, 2}, BorderReplicate)
	if err != nil {
		return nil, errors.Wrap(err, "cannot blur image")
	}
	return blurred, nil
}
