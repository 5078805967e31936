package keypoints

import (
	"encoding/json"
	"image"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	utils "go.viam.com/utils"

	"github.com/S-SB/gp-tag/timage"
)

// SamplingType stores 0 if a sampling of image points for BRIEF is
// uniform, 1 if gaussian, 2 if fixed.
type SamplingType int

const (
	uniform SamplingType = iota
	normal
	fixed
)

// SamplePairs are N pairs of points used to create the BRIEF Descriptors of a patch.
type SamplePairs struct {
	P0 []image.Point
	P1 []image.Point
	N  int
}

// GenerateSamplePairs generates n sample pairs for a patch size with the
// chosen SamplingType. The generator is seeded deterministically so two
// descriptor sets computed on different images remain comparable.
func GenerateSamplePairs(dist SamplingType, n, patchSize int) *SamplePairs {
	//nolint:gosec
	rnd := rand.New(rand.NewSource(983))
	vMin := math.Round(-(float64(patchSize) - 2) / 2.)
	vMax := math.Round(float64(patchSize) / 2.)
	sample := func() int {
		switch dist {
		case normal:
			v := rnd.NormFloat64() * float64(patchSize) / 5.
			return int(math.Max(vMin, math.Min(vMax, math.Round(v))))
		case uniform, fixed:
			fallthrough
		default:
			return int(vMin) + rnd.Intn(int(vMax-vMin)+1)
		}
	}
	p0 := make([]image.Point, 0, n)
	p1 := make([]image.Point, 0, n)
	for i := 0; i < n; i++ {
		p0 = append(p0, image.Point{X: sample(), Y: sample()})
		p1 = append(p1, image.Point{X: sample(), Y: sample()})
	}
	return &SamplePairs{P0: p0, P1: p1, N: n}
}

// BRIEFConfig stores the parameters of BRIEF descriptor computation.
type BRIEFConfig struct {
	N              int          `json:"n"` // number of samples taken
	Sampling       SamplingType `json:"sampling"`
	UseOrientation bool         `json:"use_orientation"`
	PatchSize      int          `json:"patch_size"`
}

// DefaultBRIEFConfig returns the BRIEF parameters used by the tag pipeline.
func DefaultBRIEFConfig() *BRIEFConfig {
	return &BRIEFConfig{
		N:              256,
		Sampling:       uniform,
		UseOrientation: true,
		PatchSize:      31,
	}
}

// LoadBRIEFConfiguration loads a BRIEFConfig from a json file.
func LoadBRIEFConfiguration(file string) *BRIEFConfig {
	var config BRIEFConfig
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

// ComputeBRIEFDescriptors computes BRIEF descriptors on image img at
// keypoints kps with the sample pairs sp.
func ComputeBRIEFDescriptors(img *image.Gray, sp *SamplePairs, kps *FASTKeypoints, cfg *BRIEFConfig) (Descriptors, error) {
	// blur image
	blurred, err := timage.BlurGray(img)
	if err != nil {
		return nil, err
	}
	// compute descriptors
	descs := make(Descriptors, len(kps.Points))
	bnd := blurred.Bounds()
	halfSize := cfg.PatchSize / 2
	for k, kp := range kps.Points {
		p1 := image.Point{kp.X + halfSize, kp.Y + halfSize}
		p2 := image.Point{kp.X + halfSize, kp.Y - halfSize}
		p3 := image.Point{kp.X - halfSize, kp.Y + halfSize}
		p4 := image.Point{kp.X - halfSize, kp.Y - halfSize}
		// Divide by 64 since we store a descriptor as a uint64 array.
		descriptor := make(Descriptor, sp.N/64)
		if !p1.In(bnd) || !p2.In(bnd) || !p3.In(bnd) || !p4.In(bnd) {
			descs[k] = descriptor
			continue
		}
		cosTheta := 1.0
		sinTheta := 0.0
		// if use orientation and keypoints are oriented, compute rotation matrix
		if cfg.UseOrientation && kps.Orientations != nil {
			angle := kps.Orientations[k]
			cosTheta = math.Cos(angle)
			sinTheta = math.Sin(angle)
		}
		for i := 0; i < sp.N; i++ {
			x0, y0 := float64(sp.P0[i].X), float64(sp.P0[i].Y)
			x1, y1 := float64(sp.P1[i].X), float64(sp.P1[i].Y)
			// compute rotated sampled coordinates (identity matrix if no orientation)
			outx0 := int(math.Round(cosTheta*x0 - sinTheta*y0))
			outy0 := int(math.Round(sinTheta*x0 + cosTheta*y0))
			outx1 := int(math.Round(cosTheta*x1 - sinTheta*y1))
			outy1 := int(math.Round(sinTheta*x1 + cosTheta*y1))
			// fill BRIEF descriptor
			p0Val := blurred.GrayAt(kp.X+outx0, kp.Y+outy0).Y
			p1Val := blurred.GrayAt(kp.X+outx1, kp.Y+outy1).Y
			if p0Val > p1Val {
				descriptorIndex := i / 64
				numPos := i % 64
				descriptor[descriptorIndex] |= 1 << numPos
			}
		}
		descs[k] = descriptor
	}
	return descs, nil
}
