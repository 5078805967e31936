package tagdata

import (
	"image"

	"github.com/pkg/errors"

	"github.com/S-SB/gp-tag/timage"
)

// MinCellContrast is the minimum spread between the black and white
// reference levels for cell thresholding to be trusted.
const MinCellContrast = 30.0

// cellSampleRadius is the sampling disk radius around a cell center, as a
// fraction of the cell size. Kept well inside the cell so neighboring
// cells do not bleed in.
const cellSampleRadius = 0.3

// sampleCell returns the mean intensity of the rectified image in a small
// disk at the center of grid cell (row, col).
func sampleCell(rectified *image.Gray, row, col int) float64 {
	cellPx := float64(rectified.Bounds().Max.X) / float64(GridSize)
	cx := (float64(col) + 0.5) * cellPx
	cy := (float64(row) + 0.5) * cellPx
	return timage.MeanGrayInDisk(rectified, cx, cy, cellSampleRadius*cellPx)
}

// EstimateReferences samples the fixed calibration cells of the rectified
// tag image and returns the black and white reference levels.
func EstimateReferences(rectified *image.Gray) (black, white float64, err error) {
	if rectified == nil {
		return 0, 0, errors.New("rectified image is nil")
	}
	if rectified.Bounds().Max.X != rectified.Bounds().Max.Y {
		return 0, 0, errors.Errorf("rectified image must be square, got %dx%d",
			rectified.Bounds().Max.X, rectified.Bounds().Max.Y)
	}
	blackCells, whiteCells := CalibrationCells()
	for _, c := range blackCells {
		black += sampleCell(rectified, c[0], c[1])
	}
	black /= float64(len(blackCells))
	for _, c := range whiteCells {
		white += sampleCell(rectified, c[0], c[1])
	}
	white /= float64(len(whiteCells))
	if white-black < MinCellContrast {
		return black, white, errors.Errorf("insufficient cell contrast: black %.1f white %.1f", black, white)
	}
	return black, white, nil
}

// ReadCodeword samples the data cells of a rectified, de-rotated tag
// image into the protected codeword bytes. Bits are 1 for black cells.
func ReadCodeword(rectified *image.Gray) ([]byte, error) {
	black, white, err := EstimateReferences(rectified)
	if err != nil {
		return nil, err
	}
	threshold := (black + white) / 2
	cells := DataCells()
	if len(cells) < CodewordBits {
		return nil, errors.Errorf("layout has %d data cells, need %d", len(cells), CodewordBits)
	}
	codeword := make([]byte, CodewordBytes)
	for i := 0; i < CodewordBits; i++ {
		v := sampleCell(rectified, cells[i][0], cells[i][1])
		if v < threshold {
			codeword[i/8] |= 1 << uint(7-i%8)
		}
	}
	return codeword, nil
}

// DecodeImage reads and error-corrects the payload from a rectified,
// de-rotated tag image. See DecodeCodeword for the error contract.
func DecodeImage(rectified *image.Gray) (*TagData, int, error) {
	codeword, err := ReadCodeword(rectified)
	if err != nil {
		return nil, 0, errors.Wrap(ErrDecodeFailed, err.Error())
	}
	return DecodeCodeword(codeword)
}
