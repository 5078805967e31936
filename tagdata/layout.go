// Package tagdata implements the versioned binary layout of the tag: the
// mapping of grid cells to codeword bits, the fixed-point packing of the
// payload fields, and the Reed-Solomon protected decode and encode.
//
// The layout is a constant contract shared bit-exactly between the marker
// renderer and the decoder; it is never derived at runtime.
package tagdata

import (
	"math"
	"math/rand"
)

// Layout revision 3 constants.
const (
	// LayoutVersion is the layout revision implemented here.
	LayoutVersion = 3

	// GridSize is the number of cells along one side of the tag.
	GridSize = 36

	// CanonicalCellPx is the cell size of the canonical rectified image.
	CanonicalCellPx = 10
	// CanonicalSizePx is the side of the canonical rectified image.
	CanonicalSizePx = GridSize * CanonicalCellPx

	// DataBytes is the number of payload bytes before error correction.
	DataBytes = 25
	// ECBytes is the number of Reed-Solomon parity bytes.
	ECBytes = 14
	// CodewordBytes is the total codeword length in bytes.
	CodewordBytes = DataBytes + ECBytes
	// CodewordBits is the number of data cells carrying codeword bits.
	CodewordBits = CodewordBytes * 8

	// MaxCorrectableErrors is the symbol error correction capacity t.
	MaxCorrectableErrors = ECBytes / 2

	// annulusClearRadius reserves the central disk for the orientation
	// annuli, in cell units from the tag center.
	annulusClearRadius = 5.5
)

// Annuli radii in cell units, measured from the tag center.
const (
	AnnulusCoreRadius   = 2.0 // black core disk
	AnnulusInnerRadius  = 3.0 // white separator ring outer edge
	AnnulusOrientRadius = 4.0 // orientation ring outer edge
	AnnulusGuardRadius  = 5.0 // white guard ring outer edge
)

// CellKind classifies a grid cell.
type CellKind int

// The cell kinds of layout revision 3.
const (
	CellBorder CellKind = iota
	CellQuiet
	CellEyeBlack
	CellEyeCenter
	CellEyeMargin
	CellAnnulus
	CellCalibBlack
	CellCalibWhite
	CellData
)

var (
	calibBlackCells = [][2]int{{7, 3}, {7, 32}, {28, 3}, {28, 32}}
	calibWhiteCells = [][2]int{{8, 3}, {8, 32}, {27, 3}, {27, 32}}
)

// CalibrationCells returns the fixed black and white reference cells as
// (row, col) pairs.
func CalibrationCells() (black, white [][2]int) {
	return calibBlackCells, calibWhiteCells
}

func inEyeBlock(row, col int) bool {
	inBand := func(v int) bool { return (v >= 3 && v <= 5) || (v >= 30 && v <= 32) }
	return inBand(row) && inBand(col)
}

func isEyeCenter(row, col int) bool {
	center := func(v int) bool { return v == 4 || v == 31 }
	return center(row) && center(col)
}

func inEyeMargin(row, col int) bool {
	inExt := func(v int) bool { return (v >= 3 && v <= 6) || (v >= 29 && v <= 32) }
	return inExt(row) && inExt(col) && !inEyeBlock(row, col)
}

// CellCenterDistance returns the distance of the cell center from the tag
// center, in cell units.
func CellCenterDistance(row, col int) float64 {
	dx := float64(col) + 0.5 - float64(GridSize)/2
	dy := float64(row) + 0.5 - float64(GridSize)/2
	return math.Hypot(dx, dy)
}

// KindOf classifies the cell at (row, col) under layout revision 3.
func KindOf(row, col int) CellKind {
	if row < 2 || row > 33 || col < 2 || col > 33 {
		return CellBorder
	}
	if row == 2 || row == 33 || col == 2 || col == 33 {
		return CellQuiet
	}
	if inEyeBlock(row, col) {
		if isEyeCenter(row, col) {
			return CellEyeCenter
		}
		return CellEyeBlack
	}
	if inEyeMargin(row, col) {
		return CellEyeMargin
	}
	if CellCenterDistance(row, col) < annulusClearRadius {
		return CellAnnulus
	}
	for _, c := range calibBlackCells {
		if c[0] == row && c[1] == col {
			return CellCalibBlack
		}
	}
	for _, c := range calibWhiteCells {
		if c[0] == row && c[1] == col {
			return CellCalibWhite
		}
	}
	return CellData
}

// dataCells is the row-major enumeration of data cells, computed once.
var dataCells = func() [][2]int {
	cells := make([][2]int, 0, GridSize*GridSize)
	for row := 0; row < GridSize; row++ {
		for col := 0; col < GridSize; col++ {
			if KindOf(row, col) == CellData {
				cells = append(cells, [2]int{row, col})
			}
		}
	}
	return cells
}()

// DataCells returns the (row, col) positions of all data cells in layout
// order. The first CodewordBits cells carry the codeword, MSB first; the
// rest carry the salt texture.
func DataCells() [][2]int {
	return dataCells
}

// saltBits is a fixed pseudo-random texture for the data cells beyond the
// codeword; it gives the keypoint detector stable features to match.
var saltBits = func() []bool {
	//nolint:gosec
	rnd := rand.New(rand.NewSource(1117))
	bits := make([]bool, len(dataCells))
	for i := range bits {
		bits[i] = rnd.Intn(2) == 1
	}
	return bits
}()

// SaltBit reports whether the i-th data cell of the salt region is black.
func SaltBit(i int) bool {
	return saltBits[i]
}
