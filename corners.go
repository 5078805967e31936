package gptag

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/S-SB/gp-tag/tagdata"
	"github.com/S-SB/gp-tag/timage"
	"github.com/S-SB/gp-tag/transform"
)

const (
	// edgeSamplesPerSide is the number of probe points along each tag
	// side used for the edge line fit.
	edgeSamplesPerSide = 24
	// minEdgeResponse is the minimum intensity step across the border
	// for a probe to count as an edge observation.
	minEdgeResponse = 20.0
	// edgeProbeStep is the sampling step along the edge normal, in
	// image pixels.
	edgeProbeStep = 0.25
	// edgeAlignMin gates probe hits on the Sobel gradient direction:
	// |cos| between the gradient and the probe normal must exceed this,
	// rejecting responses from structure running across the border.
	edgeAlignMin = 0.7
)

// edgeLine is a 2D line through point p with unit direction d.
type edgeLine struct {
	p r2.Point
	d r2.Point
}

func intersectLines(a, b edgeLine) (r2.Point, error) {
	// solve a.p + s*a.d = b.p + t*b.d
	det := a.d.X*(-b.d.Y) - (-b.d.X)*a.d.Y
	if math.Abs(det) < 1e-12 {
		return r2.Point{}, errors.New("tag side lines are parallel")
	}
	rx := b.p.X - a.p.X
	ry := b.p.Y - a.p.Y
	s := (rx*(-b.d.Y) + b.d.X*ry) / det
	return r2.Point{X: a.p.X + s*a.d.X, Y: a.p.Y + s*a.d.Y}, nil
}

// refineCorners locates the outer border of the tag to sub-pixel
// precision. Each side is probed along its normal for the strongest
// intensity step, a line is fit to the probe hits, and the corners are
// recovered as line intersections. It returns the refined image corners
// clockwise from the template's top-left together with the exact
// four-point homography from template pixels to the refined corners.
func (d *Detector) refineCorners(gray *image.Gray, h *transform.Homography) ([4]r2.Point, *transform.Homography, error) {
	tpl := templateCorners()
	searchRadius := float64(d.cfg.CornerSearchRadius) * projectedCellSize(h)
	if searchRadius < 2 {
		searchRadius = 2
	}
	grad, err := timage.SobelGradient(gray)
	if err != nil {
		return [4]r2.Point{}, nil, err
	}

	lines := [4]edgeLine{}
	for side := 0; side < 4; side++ {
		a := tpl[side]
		b := tpl[(side+1)%4]
		line, err := fitSideEdge(gray, grad, h, a, b, searchRadius)
		if err != nil {
			return [4]r2.Point{}, nil, errors.Wrapf(err, "side %d", side)
		}
		lines[side] = line
	}

	var corners [4]r2.Point
	for i := 0; i < 4; i++ {
		// corner i joins the side ending there and the side starting there
		pt, err := intersectLines(lines[(i+3)%4], lines[i])
		if err != nil {
			return [4]r2.Point{}, nil, err
		}
		initial := h.Apply(tpl[i])
		if pt.Sub(initial).Norm() > d.cfg.MaxCornerShift*projectedCellSize(h) {
			return [4]r2.Point{}, nil, errors.Errorf("corner %d moved too far during refinement", i)
		}
		corners[i] = pt
	}

	refined, err := transform.EstimateHomography(tpl[:], corners[:])
	if err != nil {
		return [4]r2.Point{}, nil, err
	}
	return corners, refined, nil
}

// fitSideEdge probes the image along the outward normal of one template
// side and fits a total-least-squares line to the strongest edge
// responses. Probes near the corners are skipped so neighboring sides do
// not contaminate the fit.
func fitSideEdge(
	gray *image.Gray,
	grad *timage.VectorField2D,
	h *transform.Homography,
	a, b r2.Point,
	searchRadius float64,
) (edgeLine, error) {
	hits := make([]r2.Point, 0, edgeSamplesPerSide)
	for i := 0; i < edgeSamplesPerSide; i++ {
		frac := 0.15 + 0.7*float64(i)/float64(edgeSamplesPerSide-1)
		tplPt := r2.Point{X: a.X + frac*(b.X-a.X), Y: a.Y + frac*(b.Y-a.Y)}
		p := h.Apply(tplPt)

		// image-space tangent of the side at this probe
		eps := 1.0
		ahead := h.Apply(r2.Point{
			X: tplPt.X + eps*(b.X-a.X)/sideLength(a, b),
			Y: tplPt.Y + eps*(b.Y-a.Y)/sideLength(a, b),
		})
		tangent := ahead.Sub(p)
		n := tangent.Norm()
		if n < 1e-9 {
			continue
		}
		normal := r2.Point{X: -tangent.Y / n, Y: tangent.X / n}

		if hit, ok := strongestEdge(gray, grad, p, normal, searchRadius); ok {
			hits = append(hits, hit)
		}
	}
	if len(hits) < edgeSamplesPerSide/2 {
		return edgeLine{}, errors.Errorf("only %d/%d edge probes found a border transition", len(hits), edgeSamplesPerSide)
	}
	return fitLineTLS(hits)
}

func sideLength(a, b r2.Point) float64 {
	return b.Sub(a).Norm()
}

// strongestEdge walks the normal through p and returns the sub-pixel
// location of the border transition. The tag outline has a second strong
// step two cells inside it where the border meets the quiet ring, so
// among all comparably strong local maxima the one closest to the
// predicted position wins, then its location is sharpened by a parabolic
// fit over the discrete maximum and its neighbors. Maxima whose Sobel
// gradient is not aligned with the probe normal are skipped.
func strongestEdge(gray *image.Gray, grad *timage.VectorField2D, p, normal r2.Point, radius float64) (r2.Point, bool) {
	n := int(math.Ceil(2 * radius / edgeProbeStep))
	if n < 3 {
		return r2.Point{}, false
	}
	responses := make([]float64, n+1)
	maxVal := 0.0
	for i := 0; i <= n; i++ {
		t := -radius + float64(i)*edgeProbeStep
		inner := timage.BilinearGray(gray, p.X+(t-0.5)*normal.X, p.Y+(t-0.5)*normal.Y)
		outer := timage.BilinearGray(gray, p.X+(t+0.5)*normal.X, p.Y+(t+0.5)*normal.Y)
		responses[i] = math.Abs(outer - inner)
		if responses[i] > maxVal {
			maxVal = responses[i]
		}
	}
	if maxVal < minEdgeResponse {
		return r2.Point{}, false
	}
	floor := minEdgeResponse
	if 0.5*maxVal > floor {
		floor = 0.5 * maxVal
	}
	normalAngle := math.Atan2(normal.Y, normal.X)
	aligned := func(t float64) bool {
		x := int(math.Round(p.X + t*normal.X))
		y := int(math.Round(p.Y + t*normal.Y))
		if x < 0 || y < 0 || x >= grad.Width() || y >= grad.Height() {
			return false
		}
		v := grad.GetVec2D(x, y)
		if v.Magnitude() < 1e-3 {
			return false
		}
		return math.Abs(math.Cos(v.Direction()-normalAngle)) > edgeAlignMin
	}
	bestIdx := -1
	for i := 1; i < n; i++ {
		if responses[i] < floor || responses[i] < responses[i-1] || responses[i] < responses[i+1] {
			continue
		}
		if !aligned(-radius + float64(i)*edgeProbeStep) {
			continue
		}
		if bestIdx < 0 || math.Abs(float64(i)-float64(n)/2) < math.Abs(float64(bestIdx)-float64(n)/2) {
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return r2.Point{}, false
	}
	t := -radius + float64(bestIdx)*edgeProbeStep
	if bestIdx > 0 && bestIdx < n {
		y0, y1, y2 := responses[bestIdx-1], responses[bestIdx], responses[bestIdx+1]
		denom := y0 - 2*y1 + y2
		if math.Abs(denom) > 1e-9 {
			t += edgeProbeStep * 0.5 * (y0 - y2) / denom
		}
	}
	return r2.Point{X: p.X + t*normal.X, Y: p.Y + t*normal.Y}, true
}

// fitLineTLS fits a line minimizing perpendicular distance, via the
// principal direction of the centered points.
func fitLineTLS(pts []r2.Point) (edgeLine, error) {
	cx, cy := 0.0, 0.0
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))

	sxx, sxy, syy := 0.0, 0.0, 0.0
	for _, p := range pts {
		dx, dy := p.X-cx, p.Y-cy
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	// principal eigenvector of the 2x2 scatter matrix
	tr := sxx + syy
	det := sxx*syy - sxy*sxy
	lambda := tr/2 + math.Sqrt(tr*tr/4-det)
	var dir r2.Point
	if math.Abs(sxy) > 1e-12 {
		dir = r2.Point{X: lambda - syy, Y: sxy}
	} else if sxx >= syy {
		dir = r2.Point{X: 1, Y: 0}
	} else {
		dir = r2.Point{X: 0, Y: 1}
	}
	n := dir.Norm()
	if n < 1e-12 {
		return edgeLine{}, errors.New("degenerate edge point set")
	}
	return edgeLine{p: r2.Point{X: cx, Y: cy}, d: r2.Point{X: dir.X / n, Y: dir.Y / n}}, nil
}

// resolveOrientation rectifies the tag into the canonical frame, reads
// the orientation annuli, and de-rotates the rectified image so the
// black quadrant faces up. It returns the de-rotated image, the number
// of quarter turns applied, and the vote confidence in [0, 1].
func (d *Detector) resolveOrientation(gray *image.Gray, h *transform.Homography) (*image.Gray, int, float64, error) {
	size := tagdata.CanonicalSizePx
	rectified, err := timage.Rectify(gray, size, size, func(x, y float64) (float64, float64) {
		p := h.Apply(r2.Point{X: x, Y: y})
		return p.X, p.Y
	})
	if err != nil {
		return nil, 0, 0, err
	}

	rotation, confidence, err := readAnnuli(rectified)
	if err != nil {
		return nil, 0, 0, err
	}
	if confidence < d.cfg.MinOrientationConfidence {
		d.logger.Debugw("low orientation confidence", "confidence", confidence, "rotation", rotation)
	}
	rotated, err := timage.Rotate90Gray(rectified, rotation)
	if err != nil {
		return nil, 0, 0, err
	}
	return rotated, rotation, confidence, nil
}

// readAnnuli samples the orientation ring of the rectified tag in the
// four quadrant directions and picks the darkest as the tag's up
// direction. Quadrants are ordered up, right, down, left, so the index
// is the number of counter-clockwise quarter turns needed to restore the
// canonical orientation. Confidence is the normalized margin between the
// darkest and second-darkest quadrant.
func readAnnuli(rectified *image.Gray) (int, float64, error) {
	cellPx := float64(tagdata.CanonicalCellPx)
	cx := float64(tagdata.CanonicalSizePx) / 2.0
	cy := cx

	black := timage.MeanGrayInDisk(rectified, cx, cy, 1.5*cellPx)
	white := ringMean(rectified, cx, cy, 2.2*cellPx, 2.8*cellPx)
	if white-black < tagdata.MinCellContrast {
		return 0, 0, errors.New("orientation annuli have insufficient contrast")
	}

	// quadrant center angles: up, right, down, left
	angles := [4]float64{-math.Pi / 2, 0, math.Pi / 2, math.Pi}
	var means [4]float64
	for q, center := range angles {
		sum, n := 0.0, 0
		for da := -35.0; da <= 35.0; da += 5.0 {
			theta := center + da*math.Pi/180.0
			for _, r := range [3]float64{3.25 * cellPx, 3.5 * cellPx, 3.75 * cellPx} {
				sum += timage.BilinearGray(rectified, cx+r*math.Cos(theta), cy+r*math.Sin(theta))
				n++
			}
		}
		means[q] = sum / float64(n)
	}

	best, second := 0, -1
	for q := 1; q < 4; q++ {
		if means[q] < means[best] {
			second = best
			best = q
		} else if second < 0 || means[q] < means[second] {
			second = q
		}
	}
	confidence := (means[second] - means[best]) / (white - black)
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}
	return best, confidence, nil
}

// ringMean averages the image over an annular band around (cx, cy).
func ringMean(img *image.Gray, cx, cy, rInner, rOuter float64) float64 {
	sum, n := 0.0, 0
	for theta := 0.0; theta < 2*math.Pi; theta += math.Pi / 18 {
		for r := rInner; r <= rOuter; r += 0.5 {
			sum += timage.BilinearGray(img, cx+r*math.Cos(theta), cy+r*math.Sin(theta))
			n++
		}
	}
	return sum / float64(n)
}
