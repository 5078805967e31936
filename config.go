package gptag

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	utils "go.viam.com/utils"

	"github.com/S-SB/gp-tag/keypoints"
	"github.com/S-SB/gp-tag/transform"
)

// DetectorConfig is the configuration surface of the detection pipeline.
type DetectorConfig struct {
	ORB      *keypoints.ORBConfig      `json:"orb"`
	Matching *keypoints.MatchingConfig `json:"matching"`
	Ransac   *transform.RansacConfig   `json:"ransac"`

	// MinMatches is the minimum number of descriptor matches required
	// before a candidate region is considered at all.
	MinMatches int `json:"min_matches"`
	// MaxCandidates bounds how many candidate regions are evaluated
	// per frame before giving up.
	MaxCandidates int `json:"max_candidates"`

	// MinEyeContrast is the minimum black-to-white spread of a finder
	// eye signature, in intensity levels.
	MinEyeContrast float64 `json:"min_eye_contrast"`
	// CornerSearchRadius is the half-width of the border search window
	// used by sub-pixel corner refinement, in tag cells.
	CornerSearchRadius int `json:"corner_search_radius"`
	// MaxCornerShift rejects a refinement that moves a corner further
	// than this many tag cells from its initial estimate.
	MaxCornerShift float64 `json:"max_corner_shift"`
	// MinOrientationConfidence is the annuli decision margin below
	// which the orientation is flagged low-confidence.
	MinOrientationConfidence float64 `json:"min_orientation_confidence"`

	// KeepImages retains intermediate images in the diagnostics.
	KeepImages bool `json:"keep_images"`
	// Diagnostics enables per-stage timings and counters in the
	// outcome.
	Diagnostics bool `json:"diagnostics"`
}

// DefaultDetectorConfig returns the configuration the pipeline was tuned
// with.
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		ORB:                      keypoints.DefaultORBConfig(),
		Matching:                 keypoints.DefaultMatchingConfig(),
		Ransac:                   transform.DefaultRansacConfig(),
		MinMatches:               8,
		MaxCandidates:            3,
		MinEyeContrast:           40,
		CornerSearchRadius:       3,
		MaxCornerShift:           5,
		MinOrientationConfidence: 0.2,
		Diagnostics:              true,
	}
}

// Validate ensures all parts of the DetectorConfig are valid.
func (config *DetectorConfig) Validate(path string) error {
	if config.ORB == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "orb")
	}
	if err := config.ORB.Validate(path); err != nil {
		return err
	}
	if config.MinMatches < 4 {
		return utils.NewConfigValidationError(path, errors.New("min_matches must be >= 4"))
	}
	if config.MaxCandidates < 1 {
		return utils.NewConfigValidationError(path, errors.New("max_candidates must be >= 1"))
	}
	if config.CornerSearchRadius < 1 {
		return utils.NewConfigValidationError(path, errors.New("corner_search_radius must be >= 1"))
	}
	if config.MinOrientationConfidence < 0 || config.MinOrientationConfidence > 1 {
		return utils.NewConfigValidationError(path, errors.New("min_orientation_confidence must be in [0, 1]"))
	}
	return nil
}

// LoadDetectorConfiguration loads a DetectorConfig from a json file.
func LoadDetectorConfiguration(file string) (*DetectorConfig, error) {
	var config DetectorConfig
	filePath := filepath.Clean(file)
	configFile, err := os.Open(filePath)
	defer utils.UncheckedErrorFunc(configFile.Close)
	if err != nil {
		return nil, err
	}
	if err := json.NewDecoder(configFile).Decode(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(file); err != nil {
		return nil, err
	}
	return &config, nil
}
