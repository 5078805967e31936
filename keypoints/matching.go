package keypoints

import (
	"math/bits"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
)

// MatchingConfig contains the parameters for matching descriptors.
type MatchingConfig struct {
	DoCrossCheck bool `json:"do_cross_check"`
	MaxDist      int  `json:"max_dist"`
}

// DefaultMatchingConfig returns the matching parameters used by the tag
// pipeline.
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		DoCrossCheck: true,
		MaxDist:      80,
	}
}

// DescriptorMatch contains the index of a match in the first and second
// set of descriptors, and their Hamming distance.
type DescriptorMatch struct {
	Idx1 int
	Idx2 int
	Dist int
}

// HammingDistance computes the Hamming distance between two binary
// descriptors of the same length.
func HammingDistance(d1, d2 Descriptor) (int, error) {
	if len(d1) != len(d2) {
		return 0, errors.Errorf("descriptor lengths differ: %d != %d", len(d1), len(d2))
	}
	dist := 0
	for i := range d1 {
		dist += bits.OnesCount64(d1[i] ^ d2[i])
	}
	return dist, nil
}

// MatchDescriptors takes 2 sets of descriptors and performs
// nearest-neighbor matching, with optional cross-check and maximum
// distance gating. Matches are returned sorted by ascending distance.
func MatchDescriptors(desc1, desc2 Descriptors, cfg *MatchingConfig, logger golog.Logger) []DescriptorMatch {
	if cfg == nil {
		cfg = DefaultMatchingConfig()
	}
	if len(desc1) == 0 || len(desc2) == 0 {
		return nil
	}
	best2For1 := make([]int, len(desc1))
	bestDist := make([]int, len(desc1))
	for i, d1 := range desc1 {
		best2For1[i] = -1
		bestDist[i] = 1 << 30
		for j, d2 := range desc2 {
			d, err := HammingDistance(d1, d2)
			if err != nil {
				logger.Debugw("skipping descriptor pair", "error", err)
				continue
			}
			if d < bestDist[i] {
				bestDist[i] = d
				best2For1[i] = j
			}
		}
	}
	var best1For2 []int
	if cfg.DoCrossCheck {
		best1For2 = make([]int, len(desc2))
		for j, d2 := range desc2 {
			best1For2[j] = -1
			best := 1 << 30
			for i, d1 := range desc1 {
				d, err := HammingDistance(d1, d2)
				if err != nil {
					continue
				}
				if d < best {
					best = d
					best1For2[j] = i
				}
			}
		}
	}
	matches := make([]DescriptorMatch, 0, len(desc1))
	for i := range desc1 {
		j := best2For1[i]
		if j < 0 {
			continue
		}
		if cfg.MaxDist > 0 && bestDist[i] >= cfg.MaxDist {
			continue
		}
		if cfg.DoCrossCheck && best1For2[j] != i {
			continue
		}
		matches = append(matches, DescriptorMatch{Idx1: i, Idx2: j, Dist: bestDist[i]})
	}
	// sort by ascending distance
	for i := 1; i < len(matches); i++ {
		for k := i; k > 0 && matches[k].Dist < matches[k-1].Dist; k-- {
			matches[k], matches[k-1] = matches[k-1], matches[k]
		}
	}
	return matches
}

// GetMatchingKeyPoints takes the matches and the keypoints and returns
// the corresponding keypoints that are matched.
func GetMatchingKeyPoints(matches []DescriptorMatch, kps1, kps2 KeyPoints) (KeyPoints, KeyPoints, error) {
	matchedKps1 := make(KeyPoints, 0, len(matches))
	matchedKps2 := make(KeyPoints, 0, len(matches))
	for _, match := range matches {
		if match.Idx1 >= len(kps1) {
			return nil, nil, errors.New("there are more matches than keypoints in first set")
		}
		if match.Idx2 >= len(kps2) {
			return nil, nil, errors.New("there are more matches than keypoints in second set")
		}
		matchedKps1 = append(matchedKps1, kps1[match.Idx1])
		matchedKps2 = append(matchedKps2, kps2[match.Idx2])
	}
	return matchedKps1, matchedKps2, nil
}
