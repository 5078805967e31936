package marker

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/S-SB/gp-tag/tagdata"
)

func sampleTagData() *tagdata.TagData {
	return &tagdata.TagData{
		TagID:     123,
		VersionID: 3,
		Latitude:  63.8203894,
		Longitude: 20.3058847,
		Altitude:  45.16,
		Quat:      [4]float64{0, 0, 0, 1},
		Scale:     0.36,
		Accuracy:  2,
	}
}

func TestRenderDimensions(t *testing.T) {
	img, err := Render(sampleTagData(), tagdata.CanonicalCellPx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, tagdata.CanonicalSizePx)
	test.That(t, img.Bounds().Dy(), test.ShouldEqual, tagdata.CanonicalSizePx)

	_, err = Render(sampleTagData(), 0)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRenderStructure(t *testing.T) {
	img, err := Render(sampleTagData(), tagdata.CanonicalCellPx)
	test.That(t, err, test.ShouldBeNil)

	cellCenter := func(row, col int) (int, int) {
		return col*tagdata.CanonicalCellPx + tagdata.CanonicalCellPx/2,
			row*tagdata.CanonicalCellPx + tagdata.CanonicalCellPx/2
	}
	// border black, quiet ring white, eye black with white center
	for _, tc := range []struct {
		row, col int
		shade    uint8
	}{
		{0, 0, 0}, {1, 17, 0}, {35, 35, 0},
		{2, 17, 255}, {17, 2, 255},
		{3, 3, 0}, {4, 4, 255}, {31, 31, 255}, {30, 32, 0},
		{7, 3, 0}, {8, 3, 255},
	} {
		x, y := cellCenter(tc.row, tc.col)
		test.That(t, img.GrayAt(x, y).Y, test.ShouldEqual, tc.shade)
	}

	// annulus core black, separator white, up quadrant of the ring black,
	// remaining quadrants white
	cx, cy := tagdata.CanonicalSizePx/2, tagdata.CanonicalSizePx/2
	ringPx := int(3.5 * float64(tagdata.CanonicalCellPx))
	test.That(t, img.GrayAt(cx, cy).Y, test.ShouldEqual, 0)
	test.That(t, img.GrayAt(cx+25, cy).Y, test.ShouldEqual, 255)
	test.That(t, img.GrayAt(cx, cy-ringPx).Y, test.ShouldEqual, 0)
	test.That(t, img.GrayAt(cx+ringPx, cy).Y, test.ShouldEqual, 255)
	test.That(t, img.GrayAt(cx, cy+ringPx).Y, test.ShouldEqual, 255)
	test.That(t, img.GrayAt(cx-ringPx, cy).Y, test.ShouldEqual, 255)
}

func TestRenderTemplateLeavesCodewordWhite(t *testing.T) {
	tmpl, err := RenderTemplate(tagdata.CanonicalCellPx)
	test.That(t, err, test.ShouldBeNil)

	cells := tagdata.DataCells()
	for i := 0; i < tagdata.CodewordBits; i++ {
		row, col := cells[i][0], cells[i][1]
		x := col*tagdata.CanonicalCellPx + tagdata.CanonicalCellPx/2
		y := row*tagdata.CanonicalCellPx + tagdata.CanonicalCellPx/2
		test.That(t, tmpl.GrayAt(x, y).Y, test.ShouldEqual, 255)
	}
}

func TestRenderDecodeRoundTrip(t *testing.T) {
	td := sampleTagData()
	img, err := Render(td, tagdata.CanonicalCellPx)
	test.That(t, err, test.ShouldBeNil)

	out, corrected, err := tagdata.DecodeImage(img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, corrected, test.ShouldEqual, 0)
	test.That(t, out.TagID, test.ShouldEqual, td.TagID)
	test.That(t, out.VersionID, test.ShouldEqual, td.VersionID)
	test.That(t, out.Latitude, test.ShouldAlmostEqual, td.Latitude, 1e-7)
	test.That(t, out.Longitude, test.ShouldAlmostEqual, td.Longitude, 1e-7)
	test.That(t, out.Altitude, test.ShouldAlmostEqual, td.Altitude, 0.01)
	test.That(t, out.Scale, test.ShouldAlmostEqual, td.Scale, 1e-6)
	test.That(t, out.Accuracy, test.ShouldEqual, td.Accuracy)
}

func TestDecodeSurvivesCellDamage(t *testing.T) {
	td := sampleTagData()
	img, err := Render(td, tagdata.CanonicalCellPx)
	test.That(t, err, test.ShouldBeNil)

	// flip a handful of codeword cells; the damage stays within one
	// correctable symbol span
	cells := tagdata.DataCells()
	for _, i := range []int{0, 1, 2, 3} {
		row, col := cells[i][0], cells[i][1]
		for dy := 0; dy < tagdata.CanonicalCellPx; dy++ {
			for dx := 0; dx < tagdata.CanonicalCellPx; dx++ {
				x := col*tagdata.CanonicalCellPx + dx
				y := row*tagdata.CanonicalCellPx + dy
				img.SetGray(x, y, color.Gray{255 - img.GrayAt(x, y).Y})
			}
		}
	}

	out, corrected, err := tagdata.DecodeImage(img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, corrected, test.ShouldBeGreaterThan, 0)
	test.That(t, out.TagID, test.ShouldEqual, td.TagID)
}

func TestDecodeFailsOnHeavyDamage(t *testing.T) {
	td := sampleTagData()
	img, err := Render(td, tagdata.CanonicalCellPx)
	test.That(t, err, test.ShouldBeNil)

	// flip far more cells than the correction capacity covers
	r := rand.New(rand.NewSource(29))
	cells := tagdata.DataCells()
	for _, i := range r.Perm(tagdata.CodewordBits)[:120] {
		row, col := cells[i][0], cells[i][1]
		for dy := 0; dy < tagdata.CanonicalCellPx; dy++ {
			for dx := 0; dx < tagdata.CanonicalCellPx; dx++ {
				x := col*tagdata.CanonicalCellPx + dx
				y := row*tagdata.CanonicalCellPx + dy
				img.SetGray(x, y, color.Gray{255 - img.GrayAt(x, y).Y})
			}
		}
	}

	_, _, err = tagdata.DecodeImage(img)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, tagdata.ErrDecodeFailed), test.ShouldBeTrue)
}

func TestRenderOnCanvas(t *testing.T) {
	td := sampleTagData()
	canvas, err := RenderOnCanvas(td, tagdata.CanonicalCellPx, 400, 400, 20, 20)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, canvas.Bounds().Dx(), test.ShouldEqual, 400)
	// canvas is white outside the tag, tag border black inside
	test.That(t, canvas.GrayAt(5, 5).Y, test.ShouldEqual, 255)
	test.That(t, canvas.GrayAt(25, 25).Y, test.ShouldEqual, 0)

	_, err = RenderOnCanvas(td, tagdata.CanonicalCellPx, 100, 100, 0, 0)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestTemplateHasImageType(t *testing.T) {
	tmpl, err := RenderTemplate(5)
	test.That(t, err, test.ShouldBeNil)
	var _ image.Image = tmpl
	test.That(t, tmpl.Bounds().Dx(), test.ShouldEqual, 5*tagdata.GridSize)
}
