package keypoints

import (
	"encoding/json"
	"errors"
	"image"
	"os"
	"path/filepath"

	utils "go.viam.com/utils"
)

// FASTConfig holds the parameters necessary to compute FAST keypoints.
type FASTConfig struct {
	NMatchesCircle int     `json:"n_matches"`
	NMSWinSize     int     `json:"nms_win_size_px"`
	Threshold      float64 `json:"threshold"`
}

// DefaultFASTConfig returns the FAST parameters used by the tag pipeline.
func DefaultFASTConfig() *FASTConfig {
	return &FASTConfig{
		NMatchesCircle: 9,
		NMSWinSize:     7,
		Threshold:      0.15,
	}
}

// LoadFASTConfiguration loads a FASTConfig from a json file.
func LoadFASTConfiguration(file string) *FASTConfig {
	var config FASTConfig
	filePath := filepath.Clean(file)
	configFile, err := os.Open(filePath)
	defer utils.UncheckedErrorFunc(configFile.Close)
	if err != nil {
		return nil
	}
	jsonParser := json.NewDecoder(configFile)
	if err = jsonParser.Decode(&config); err != nil {
		return nil
	}
	return &config
}

// Validate ensures all parts of the FASTConfig are valid.
func (config *FASTConfig) Validate(path string) error {
	if config.NMatchesCircle < 9 || config.NMatchesCircle > 16 {
		return utils.NewConfigValidationError(path, errors.New("n_matches must be in [9, 16]"))
	}
	if config.Threshold <= 0 || config.Threshold >= 1 {
		return utils.NewConfigValidationError(path, errors.New("threshold must be in (0, 1)"))
	}
	return nil
}

// CircleIdx contains the 16 offsets of the Bresenham circle of radius 3
// around a candidate corner, in clockwise order.
var CircleIdx = []image.Point{
	{0, -3}, {1, -3}, {2, -2}, {3, -1},
	{3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1},
	{-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

// CrossIdx contains the 4 axis offsets at radius 3 used for the fast
// rejection test.
var CrossIdx = []image.Point{{0, -3}, {3, 0}, {0, 3}, {-3, 0}}

// GetPointValuesInNeighborhood returns the image values at the offsets in
// neighborhood around point p.
func GetPointValuesInNeighborhood(img *image.Gray, p image.Point, neighborhood []image.Point) []float64 {
	vals := make([]float64, len(neighborhood))
	for i, off := range neighborhood {
		vals[i] = float64(img.GrayAt(p.X+off.X, p.Y+off.Y).Y)
	}
	return vals
}

// FASTKeypoints stores keypoint locations and their orientations.
type FASTKeypoints struct {
	Points       KeyPoints
	Orientations []float64
}

// NewFASTKeypointsFromImage computes the location of FAST keypoints in
// img, with non-maximum suppression, and their orientations.
func NewFASTKeypointsFromImage(img *image.Gray, cfg *FASTConfig) (*FASTKeypoints, error) {
	if cfg == nil {
		cfg = DefaultFASTConfig()
	}
	kps := computeFAST(img, cfg)
	orientations, err := computeKeypointsOrientations(img, kps)
	if err != nil {
		return nil, err
	}
	return &FASTKeypoints{kps, orientations}, nil
}

// fastScore is the sum of absolute differences between the center pixel
// and the circle pixels; used to rank keypoints for suppression.
func fastScore(centerValue float64, circleValues []float64) float64 {
	score := 0.
	for _, v := range circleValues {
		d := v - centerValue
		if d < 0 {
			d = -d
		}
		score += d
	}
	return score
}

func isContiguousSegment(brighter []bool, n int) bool {
	// circular scan for n contiguous true values
	count := 0
	for i := 0; i < 2*len(brighter); i++ {
		if brighter[i%len(brighter)] {
			count++
			if count >= n {
				return true
			}
		} else {
			count = 0
		}
	}
	return false
}

func computeFAST(img *image.Gray, cfg *FASTConfig) KeyPoints {
	bounds := img.Bounds()
	w, h := bounds.Max.X, bounds.Max.Y
	threshold := cfg.Threshold * 255.
	type scored struct {
		p     image.Point
		score float64
	}
	candidates := []scored{}
	for y := 3; y < h-3; y++ {
		for x := 3; x < w-3; x++ {
			p := image.Point{x, y}
			center := float64(img.GrayAt(x, y).Y)
			// cross rejection test, sound only for segments of 12+:
			// shorter segments can exclude all but two axis pixels
			if cfg.NMatchesCircle >= 12 {
				crossVals := GetPointValuesInNeighborhood(img, p, CrossIdx)
				nDiff := 0
				for _, v := range crossVals {
					if v > center+threshold || v < center-threshold {
						nDiff++
					}
				}
				if nDiff < 3 {
					continue
				}
			}
			circleVals := GetPointValuesInNeighborhood(img, p, CircleIdx)
			brighter := make([]bool, len(circleVals))
			darker := make([]bool, len(circleVals))
			for i, v := range circleVals {
				brighter[i] = v > center+threshold
				darker[i] = v < center-threshold
			}
			if isContiguousSegment(brighter, cfg.NMatchesCircle) || isContiguousSegment(darker, cfg.NMatchesCircle) {
				candidates = append(candidates, scored{p, fastScore(center, circleVals)})
			}
		}
	}
	// non-maximum suppression over NMSWinSize windows
	half := cfg.NMSWinSize / 2
	kps := make(KeyPoints, 0, len(candidates))
	scoreAt := make(map[image.Point]float64, len(candidates))
	for _, c := range candidates {
		scoreAt[c.p] = c.score
	}
	for _, c := range candidates {
		isMax := true
		for dy := -half; dy <= half && isMax; dy++ {
			for dx := -half; dx <= half; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				if s, ok := scoreAt[image.Point{c.p.X + dx, c.p.Y + dy}]; ok && s > c.score {
					isMax = false
					break
				}
			}
		}
		if isMax {
			kps = append(kps, c.p)
		}
	}
	return kps
}
