package gptag

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
)

// PlotOutcome draws the detection geometry over the source image and
// saves it as a PNG: the refined tag border, the corner order, and the
// decoded tag id when the decode succeeded.
func PlotOutcome(img image.Image, outcome *Outcome, outName string) error {
	if img == nil || outcome == nil {
		return errors.New("image and outcome must not be nil")
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	dc := gg.NewContext(w, h)
	dc.DrawImage(img, 0, 0)

	if outcome.Failure == NotDetected {
		return dc.SavePNG(outName)
	}

	// tag border
	dc.SetRGBA(0, 1, 0, 0.9)
	dc.SetLineWidth(2)
	for i := 0; i < 4; i++ {
		a := outcome.Corners[i]
		b := outcome.Corners[(i+1)%4]
		dc.DrawLine(a[0], a[1], b[0], b[1])
	}
	dc.Stroke()

	// corner order
	dc.SetRGBA(1, 0, 0, 0.9)
	for i, c := range outcome.Corners {
		dc.DrawCircle(c[0], c[1], 4.0)
		dc.Fill()
		dc.DrawString(fmt.Sprintf("%d", i), c[0]+6, c[1]-6)
	}

	if outcome.Tag != nil {
		cx := (outcome.Corners[0][0] + outcome.Corners[2][0]) / 2
		cy := (outcome.Corners[0][1] + outcome.Corners[2][1]) / 2
		dc.SetRGBA(1, 1, 0, 0.9)
		dc.DrawStringAnchored(fmt.Sprintf("id %d", outcome.Tag.TagID), cx, cy, 0.5, 0.5)
	}
	return dc.SavePNG(outName)
}
