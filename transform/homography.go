// Package transform implements the planar projective geometry used by the
// tag pipeline: homographies, robust homography estimation, and the
// pinhole camera model with lens distortion.
package transform

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Homography is a 3x3 matrix (represented as a 2D array) used to transform
// a plane from the perspective of a 2D camera to the perspective of
// another 2D camera. Indices are [row][column].
type Homography [3][3]float64

// NewHomography creates a Homography from a slice of floats, row major.
func NewHomography(vals []float64) (*Homography, error) {
	if len(vals) != 9 {
		return nil, errors.Errorf("input to NewHomography must have length of 9. Has length of %d", len(vals))
	}
	var h Homography
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			h[i][j] = vals[i*3+j]
		}
	}
	return &h, nil
}

// At returns the value of the homography at the given row and column.
func (h *Homography) At(row, col int) float64 {
	return h[row][col]
}

// Apply applies the homography to the given point.
func (h *Homography) Apply(pt r2.Point) r2.Point {
	x := h.At(0, 0)*pt.X + h.At(0, 1)*pt.Y + h.At(0, 2)
	y := h.At(1, 0)*pt.X + h.At(1, 1)*pt.Y + h.At(1, 2)
	z := h.At(2, 0)*pt.X + h.At(2, 1)*pt.Y + h.At(2, 2)
	return r2.Point{X: x / z, Y: y / z}
}

// Inverse returns the inverse homography.
func (h *Homography) Inverse() (*Homography, error) {
	m := mat.NewDense(3, 3, []float64{
		h[0][0], h[0][1], h[0][2],
		h[1][0], h[1][1], h[1][2],
		h[2][0], h[2][1], h[2][2],
	})
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, errors.Wrap(err, "homography is not invertible")
	}
	return NewHomography(inv.RawMatrix().Data)
}

// Mat returns the homography as a gonum dense matrix.
func (h *Homography) Mat() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		h[0][0], h[0][1], h[0][2],
		h[1][0], h[1][1], h[1][2],
		h[2][0], h[2][1], h[2][2],
	})
}

// EstimateHomography computes the homography mapping src points to dst
// points with the normalized direct linear transform. At least 4 point
// correspondences are required.
func EstimateHomography(src, dst []r2.Point) (*Homography, error) {
	if len(src) != len(dst) {
		return nil, errors.Errorf("src and dst must have the same length, got %d and %d", len(src), len(dst))
	}
	if len(src) < 4 {
		return nil, errors.Errorf("need at least 4 point correspondences, got %d", len(src))
	}
	srcNorm, tSrc := normalizePoints(src)
	dstNorm, tDst := normalizePoints(dst)

	n := len(src)
	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		sx, sy := srcNorm[i].X, srcNorm[i].Y
		dx, dy := dstNorm[i].X, dstNorm[i].Y
		a.SetRow(2*i, []float64{-sx, -sy, -1, 0, 0, 0, dx * sx, dx * sy, dx})
		a.SetRow(2*i+1, []float64{0, 0, 0, -sx, -sy, -1, dy * sx, dy * sy, dy})
	}
	// the solution is the null-space vector of A; a thin SVD of the 8x9
	// minimal system has only 8 right singular vectors and misses it
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, errors.New("failed to factorize DLT system")
	}
	var v mat.Dense
	svd.VTo(&v)
	_, c := v.Dims()
	hNorm := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			hNorm.Set(i, j, v.At(i*3+j, c-1))
		}
	}
	// denormalize: H = tDst^-1 * hNorm * tSrc
	var tDstInv mat.Dense
	if err := tDstInv.Inverse(tDst); err != nil {
		return nil, errors.Wrap(err, "cannot invert normalization transform")
	}
	var hFull mat.Dense
	hFull.Mul(hNorm, tSrc)
	hFull.Mul(&tDstInv, &hFull)
	scale := hFull.At(2, 2)
	if math.Abs(scale) < 1e-12 {
		return nil, errors.New("degenerate homography")
	}
	hFull.Scale(1./scale, &hFull)
	return NewHomography(hFull.RawMatrix().Data)
}

// normalizePoints translates and scales points so their centroid is the
// origin and mean distance from it is sqrt(2); returns the normalized
// points and the similarity transform applied.
func normalizePoints(pts []r2.Point) ([]r2.Point, *mat.Dense) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(pts))
	cx /= n
	cy /= n
	var meanDist float64
	for _, p := range pts {
		meanDist += math.Hypot(p.X-cx, p.Y-cy)
	}
	meanDist /= n
	s := 1.0
	if meanDist > 1e-12 {
		s = math.Sqrt2 / meanDist
	}
	out := make([]r2.Point, len(pts))
	for i, p := range pts {
		out[i] = r2.Point{X: s * (p.X - cx), Y: s * (p.Y - cy)}
	}
	t := mat.NewDense(3, 3, []float64{
		s, 0, -s * cx,
		0, s, -s * cy,
		0, 0, 1,
	})
	return out, t
}

// RansacConfig bundles the parameters of the robust homography fit.
type RansacConfig struct {
	MaxIterations   int     `json:"max_iterations"`
	InlierThreshold float64 `json:"inlier_threshold"` // px
	MinInliers      int     `json:"min_inliers"`
	Seed            int64   `json:"seed"`
}

// DefaultRansacConfig returns the parameters used by the detection
// pipeline; the fixed seed keeps detection deterministic per frame.
func DefaultRansacConfig() *RansacConfig {
	return &RansacConfig{
		MaxIterations:   500,
		InlierThreshold: 3.0,
		MinInliers:      8,
		Seed:            42,
	}
}

// EstimateHomographyRANSAC robustly fits a homography mapping src to dst,
// tolerating outlier correspondences. It returns the homography estimated
// from all inliers of the best minimal model, and the inlier indices.
func EstimateHomographyRANSAC(src, dst []r2.Point, cfg *RansacConfig) (*Homography, []int, error) {
	if cfg == nil {
		cfg = DefaultRansacConfig()
	}
	if len(src) != len(dst) {
		return nil, nil, errors.Errorf("src and dst must have the same length, got %d and %d", len(src), len(dst))
	}
	if len(src) < 4 {
		return nil, nil, errors.Errorf("need at least 4 point correspondences, got %d", len(src))
	}
	//nolint:gosec
	rnd := rand.New(rand.NewSource(cfg.Seed))
	bestInliers := []int{}
	n := len(src)
	for iter := 0; iter < cfg.MaxIterations; iter++ {
		sample := rnd.Perm(n)[:4]
		s4 := make([]r2.Point, 4)
		d4 := make([]r2.Point, 4)
		for i, idx := range sample {
			s4[i] = src[idx]
			d4[i] = dst[idx]
		}
		h, err := EstimateHomography(s4, d4)
		if err != nil {
			continue
		}
		inliers := make([]int, 0, n)
		for i := 0; i < n; i++ {
			proj := h.Apply(src[i])
			if math.Hypot(proj.X-dst[i].X, proj.Y-dst[i].Y) <= cfg.InlierThreshold {
				inliers = append(inliers, i)
			}
		}
		if len(inliers) > len(bestInliers) {
			bestInliers = inliers
		}
	}
	if len(bestInliers) < cfg.MinInliers {
		return nil, nil, errors.Errorf("not enough inliers for a robust fit: %d < %d", len(bestInliers), cfg.MinInliers)
	}
	sIn := make([]r2.Point, len(bestInliers))
	dIn := make([]r2.Point, len(bestInliers))
	for i, idx := range bestInliers {
		sIn[i] = src[idx]
		dIn[i] = dst[idx]
	}
	h, err := EstimateHomography(sIn, dIn)
	if err != nil {
		return nil, nil, err
	}
	return h, bestInliers, nil
}
