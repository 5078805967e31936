// Package timage contains the grayscale image helpers used by the tag
// detection pipeline: conversion, padding, convolution, gradients and
// perspective rectification.
package timage

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/pkg/errors"
)

// MakeGray converts any image.Image into an image.Gray.
func MakeGray(pic image.Image) *image.Gray {
	if g, ok := pic.(*image.Gray); ok {
		return g
	}
	result := image.NewGray(pic.Bounds())
	draw.Draw(result, result.Bounds(), pic, pic.Bounds().Min, draw.Src)
	return result
}

// SameImgSize compares two images to see if they are the same size.
func SameImgSize(g1, g2 image.Image) bool {
	if (g1.Bounds().Max.X != g2.Bounds().Max.X) || (g1.Bounds().Max.Y != g2.Bounds().Max.Y) {
		return false
	}
	return true
}

// BorderPad is the padding scheme applied to image borders before a
// convolution.
type BorderPad int

const (
	// BorderConstant pads with a constant 0 value.
	BorderConstant BorderPad = iota
	// BorderReplicate pads with the closest edge pixel value.
	BorderReplicate
)

// PaddingGray pads img by kernelSize around the anchor point with the
// selected border scheme.
func PaddingGray(img *image.Gray, kernelSize, anchor image.Point, border BorderPad) (*image.Gray, error) {
	originalSize := img.Bounds().Size()
	top := anchor.Y
	bottom := kernelSize.Y - anchor.Y - 1
	left := anchor.X
	right := kernelSize.X - anchor.X - 1
	if top < 0 || bottom < 0 || left < 0 || right < 0 {
		return nil, errors.Errorf("anchor %v out of kernel bounds %v", anchor, kernelSize)
	}
	padded := image.NewGray(image.Rect(0, 0, originalSize.X+left+right, originalSize.Y+top+bottom))
	for y := 0; y < padded.Bounds().Max.Y; y++ {
		for x := 0; x < padded.Bounds().Max.X; x++ {
			sx, sy := x-left, y-top
			switch border {
			case BorderConstant:
				if sx < 0 || sy < 0 || sx >= originalSize.X || sy >= originalSize.Y {
					padded.SetGray(x, y, color.Gray{0})
					continue
				}
			case BorderReplicate:
				sx = clampInt(sx, 0, originalSize.X-1)
				sy = clampInt(sy, 0, originalSize.Y-1)
			}
			padded.SetGray(x, y, img.GrayAt(sx, sy))
		}
	}
	return padded, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BilinearGray samples img at the floating point coordinate (x, y) with
// bilinear interpolation. Samples outside the image bounds are clamped to
// the nearest edge pixel.
func BilinearGray(img *image.Gray, x, y float64) float64 {
	w, h := img.Bounds().Max.X, img.Bounds().Max.Y
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	dx := x - float64(x0)
	dy := y - float64(y0)
	v00 := float64(img.GrayAt(clampInt(x0, 0, w-1), clampInt(y0, 0, h-1)).Y)
	v10 := float64(img.GrayAt(clampInt(x0+1, 0, w-1), clampInt(y0, 0, h-1)).Y)
	v01 := float64(img.GrayAt(clampInt(x0, 0, w-1), clampInt(y0+1, 0, h-1)).Y)
	v11 := float64(img.GrayAt(clampInt(x0+1, 0, w-1), clampInt(y0+1, 0, h-1)).Y)
	return v00*(1-dx)*(1-dy) + v10*dx*(1-dy) + v01*(1-dx)*dy + v11*dx*dy
}

// MeanGrayInDisk returns the mean intensity of img in a disk of the given
// radius around center (cx, cy).
func MeanGrayInDisk(img *image.Gray, cx, cy, radius float64) float64 {
	sum, n := 0.0, 0
	for y := int(math.Floor(cy - radius)); y <= int(math.Ceil(cy+radius)); y++ {
		for x := int(math.Floor(cx - radius)); x <= int(math.Ceil(cx+radius)); x++ {
			fx, fy := float64(x)-cx, float64(y)-cy
			if fx*fx+fy*fy > radius*radius {
				continue
			}
			sum += float64(img.GrayAt(clampInt(x, 0, img.Bounds().Max.X-1), clampInt(y, 0, img.Bounds().Max.Y-1)).Y)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
