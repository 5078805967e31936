// Package marker renders tag images from payloads. It is the encoder
// collaborator of the decode pipeline: the rendered pattern follows the
// same layout revision the decoder reads, and the blank template it
// produces is the reference pattern the keypoint stage matches against.
package marker

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"

	"github.com/S-SB/gp-tag/tagdata"
)

const (
	blackLevel = 0
	whiteLevel = 255
)

// annulusShade returns the pixel shade inside the annulus region, given
// the offset (dx, dy) from the tag center in cell units. The orientation
// ring has a single black quadrant facing up at canonical orientation.
func annulusShade(dx, dy float64) uint8 {
	r := math.Hypot(dx, dy)
	switch {
	case r < tagdata.AnnulusCoreRadius:
		return blackLevel
	case r < tagdata.AnnulusInnerRadius:
		return whiteLevel
	case r < tagdata.AnnulusOrientRadius:
		// up quadrant is black
		if dy < 0 && math.Abs(dx) <= -dy {
			return blackLevel
		}
		return whiteLevel
	default:
		return whiteLevel
	}
}

// cellShade returns the flat shade of a structural cell, or ok=false for
// cells whose shade depends on the payload (data cells) or on the pixel
// position (annulus cells).
func cellShade(kind tagdata.CellKind) (uint8, bool) {
	switch kind {
	case tagdata.CellBorder, tagdata.CellEyeBlack, tagdata.CellCalibBlack:
		return blackLevel, true
	case tagdata.CellQuiet, tagdata.CellEyeCenter, tagdata.CellEyeMargin, tagdata.CellCalibWhite:
		return whiteLevel, true
	case tagdata.CellAnnulus, tagdata.CellData:
		return 0, false
	default:
		return 0, false
	}
}

// render paints the tag grid at cellPx pixels per cell. dataBit gives the
// shade of the i-th data cell.
func render(cellPx int, dataBit func(i int) uint8) *image.Gray {
	side := tagdata.GridSize * cellPx
	img := image.NewGray(image.Rect(0, 0, side, side))
	// index of each data cell position
	dataIdx := make(map[[2]int]int, len(tagdata.DataCells()))
	for i, c := range tagdata.DataCells() {
		dataIdx[c] = i
	}
	center := float64(side) / 2
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			row, col := y/cellPx, x/cellPx
			kind := tagdata.KindOf(row, col)
			var shade uint8
			if flat, ok := cellShade(kind); ok {
				shade = flat
			} else if kind == tagdata.CellAnnulus {
				dx := (float64(x) + 0.5 - center) / float64(cellPx)
				dy := (float64(y) + 0.5 - center) / float64(cellPx)
				shade = annulusShade(dx, dy)
			} else {
				shade = dataBit(dataIdx[[2]int{row, col}])
			}
			img.SetGray(x, y, color.Gray{shade})
		}
	}
	return img
}

// Render produces the full tag image for a payload at cellPx pixels per
// cell: structure, annuli, protected codeword bits and salt texture.
func Render(td *tagdata.TagData, cellPx int) (*image.Gray, error) {
	if cellPx < 1 {
		return nil, errors.Errorf("cell size must be >= 1 px, got %d", cellPx)
	}
	codeword, err := tagdata.EncodeCodeword(td)
	if err != nil {
		return nil, err
	}
	return render(cellPx, func(i int) uint8 {
		if i >= tagdata.CodewordBits {
			if tagdata.SaltBit(i) {
				return blackLevel
			}
			return whiteLevel
		}
		if codeword[i/8]&(1<<uint(7-i%8)) != 0 {
			return blackLevel
		}
		return whiteLevel
	}), nil
}

// RenderTemplate produces the blank reference tag: structure, annuli and
// salt texture with the codeword cells left white. The keypoint stage
// matches camera images against this pattern.
func RenderTemplate(cellPx int) (*image.Gray, error) {
	if cellPx < 1 {
		return nil, errors.Errorf("cell size must be >= 1 px, got %d", cellPx)
	}
	return render(cellPx, func(i int) uint8 {
		if i >= tagdata.CodewordBits && tagdata.SaltBit(i) {
			return blackLevel
		}
		return whiteLevel
	}), nil
}

// RenderOnCanvas paints the rendered tag onto a white canvas of the given
// size with its top-left corner at (offsetX, offsetY). Useful for
// building synthetic scenes.
func RenderOnCanvas(td *tagdata.TagData, cellPx, canvasW, canvasH, offsetX, offsetY int) (*image.Gray, error) {
	tag, err := Render(td, cellPx)
	if err != nil {
		return nil, err
	}
	side := tag.Bounds().Max.X
	if offsetX < 0 || offsetY < 0 || offsetX+side > canvasW || offsetY+side > canvasH {
		return nil, errors.Errorf("tag of side %d at (%d,%d) does not fit canvas %dx%d",
			side, offsetX, offsetY, canvasW, canvasH)
	}
	canvas := image.NewGray(image.Rect(0, 0, canvasW, canvasH))
	for y := 0; y < canvasH; y++ {
		for x := 0; x < canvasW; x++ {
			canvas.SetGray(x, y, color.Gray{whiteLevel})
		}
	}
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			canvas.SetGray(offsetX+x, offsetY+y, tag.GrayAt(x, y))
		}
	}
	return canvas, nil
}
