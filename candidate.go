package gptag

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/S-SB/gp-tag/keypoints"
	"github.com/S-SB/gp-tag/tagdata"
	"github.com/S-SB/gp-tag/timage"
	"github.com/S-SB/gp-tag/transform"
)

// candidate is a tag hypothesis that survived finder validation. Its
// homography maps template pixels to image pixels.
type candidate struct {
	homography *transform.Homography
	inliers    int
}

// eyeCenters returns the centers of the four finder eyes in template
// pixels, clockwise from top-left.
func eyeCenters() [4]r2.Point {
	lo := 4.5 * float64(tagdata.CanonicalCellPx)
	hi := 31.5 * float64(tagdata.CanonicalCellPx)
	return [4]r2.Point{{X: lo, Y: lo}, {X: hi, Y: lo}, {X: hi, Y: hi}, {X: lo, Y: hi}}
}

// findCandidate matches the image against the reference pattern and runs
// the RANSAC homography loop. Each homography hypothesis is checked
// against the finder eyes; on rejection its inliers are discarded and the
// next-best region is tried, up to MaxCandidates attempts.
func (d *Detector) findCandidate(gray *image.Gray, diag *Diagnostics) (*candidate, error) {
	descs, kps, err := keypoints.ComputeORBKeypoints(gray, d.samplePairs, d.cfg.ORB)
	if err != nil {
		return nil, err
	}
	matches := keypoints.MatchDescriptors(d.templateDescs, descs, d.cfg.Matching, d.logger)
	if diag != nil {
		diag.NumKeypoints = len(kps)
		diag.NumMatches = len(matches)
	}
	if len(matches) < d.cfg.MinMatches {
		return nil, errors.Errorf("only %d descriptor matches, need at least %d", len(matches), d.cfg.MinMatches)
	}

	src := make([]r2.Point, len(matches))
	dst := make([]r2.Point, len(matches))
	for i, m := range matches {
		p1 := d.templateKps[m.Idx1]
		p2 := kps[m.Idx2]
		src[i] = r2.Point{X: float64(p1.X), Y: float64(p1.Y)}
		dst[i] = r2.Point{X: float64(p2.X), Y: float64(p2.Y)}
	}

	for attempt := 0; attempt < d.cfg.MaxCandidates; attempt++ {
		if diag != nil {
			diag.CandidatesTried = attempt + 1
		}
		h, inliers, err := transform.EstimateHomographyRANSAC(src, dst, d.cfg.Ransac)
		if err != nil {
			return nil, err
		}
		if diag != nil && attempt == 0 {
			diag.NumInliers = len(inliers)
		}
		refined, ok := d.validateFinders(gray, h, src, dst, inliers)
		if ok {
			return &candidate{homography: refined, inliers: len(inliers)}, nil
		}
		d.logger.Debugw("candidate rejected by finder validation", "attempt", attempt, "inliers", len(inliers))

		// drop this region's correspondences and retry on the remainder
		keep := make(map[int]bool, len(inliers))
		for _, idx := range inliers {
			keep[idx] = true
		}
		nextSrc := src[:0]
		nextDst := dst[:0]
		for i := range src {
			if !keep[i] {
				nextSrc = append(nextSrc, src[i])
				nextDst = append(nextDst, dst[i])
			}
		}
		src, dst = nextSrc, nextDst
		if len(src) < d.cfg.MinMatches {
			break
		}
	}
	return nil, errors.New("no candidate region passed finder validation")
}

// eyeRingOffsets are the eight black ring cells of a finder eye relative
// to its white center cell, in cell units.
var eyeRingOffsets = [8][2]float64{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// eyeWhiteOffsets are white reference probes two cells out from the eye
// center; at that distance every probe lands on the quiet ring or the
// eye margin, never on a data cell.
var eyeWhiteOffsets = [4][2]float64{{-2, 0}, {2, 0}, {0, -2}, {0, 2}}

// validateFinders checks the four eye signatures under the homography:
// the black ring of each eye must be darker than its white surround by
// MinEyeContrast. On success the homography is refit with the
// intensity-refined eye centers added to the inlier correspondences.
func (d *Detector) validateFinders(
	gray *image.Gray,
	h *transform.Homography,
	src, dst []r2.Point,
	inliers []int,
) (*transform.Homography, bool) {
	cellPx := projectedCellSize(h)
	if cellPx < 1.0 || math.IsNaN(cellPx) {
		return nil, false
	}
	tplCell := float64(tagdata.CanonicalCellPx)
	probe := func(eye r2.Point, off [2]float64) float64 {
		p := h.Apply(r2.Point{X: eye.X + off[0]*tplCell, Y: eye.Y + off[1]*tplCell})
		return timage.MeanGrayInDisk(gray, p.X, p.Y, 0.3*cellPx)
	}
	templateEyes := eyeCenters()
	refinedEyes := make([]r2.Point, 4)
	for i, eye := range templateEyes {
		black := 0.0
		for _, off := range eyeRingOffsets {
			black += probe(eye, off)
		}
		black /= float64(len(eyeRingOffsets))
		white := 0.0
		for _, off := range eyeWhiteOffsets {
			white += probe(eye, off)
		}
		white /= float64(len(eyeWhiteOffsets))
		if white-black < d.cfg.MinEyeContrast {
			return nil, false
		}
		refinedEyes[i] = refineEyeCenter(gray, h.Apply(eye), 1.8*cellPx, white)
	}

	// refit with eye centers anchoring the geometry
	refitSrc := make([]r2.Point, 0, len(inliers)+4)
	refitDst := make([]r2.Point, 0, len(inliers)+4)
	for _, idx := range inliers {
		refitSrc = append(refitSrc, src[idx])
		refitDst = append(refitDst, dst[idx])
	}
	for i := range templateEyes {
		refitSrc = append(refitSrc, templateEyes[i])
		refitDst = append(refitDst, refinedEyes[i])
	}
	refined, err := transform.EstimateHomography(refitSrc, refitDst)
	if err != nil {
		return nil, false
	}
	return refined, true
}

// projectedCellSize estimates the size of one tag cell in image pixels at
// the tag center under the homography.
func projectedCellSize(h *transform.Homography) float64 {
	mid := float64(tagdata.CanonicalSizePx) / 2.0
	step := float64(tagdata.CanonicalCellPx)
	c := h.Apply(r2.Point{X: mid, Y: mid})
	cx := h.Apply(r2.Point{X: mid + step, Y: mid})
	cy := h.Apply(r2.Point{X: mid, Y: mid + step})
	return (c.Sub(cx).Norm() + c.Sub(cy).Norm()) / 2.0
}

// refineEyeCenter computes the darkness-weighted centroid of the eye in a
// window around the projected center. Weights are the intensity drop
// below the local white reference; the black ring carries the weight and
// is symmetric about the eye center, so the centroid recovers the center
// even though the center cell itself is white.
func refineEyeCenter(gray *image.Gray, center r2.Point, radius, white float64) r2.Point {
	sumW, sumX, sumY := 0.0, 0.0, 0.0
	r := int(math.Ceil(radius))
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if float64(dx*dx+dy*dy) > radius*radius {
				continue
			}
			x := center.X + float64(dx)
			y := center.Y + float64(dy)
			w := white - timage.BilinearGray(gray, x, y)
			if w <= 0 {
				continue
			}
			sumW += w
			sumX += w * x
			sumY += w * y
		}
	}
	if sumW == 0 {
		return center
	}
	return r2.Point{X: sumX / sumW, Y: sumY / sumW}
}
