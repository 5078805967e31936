package keypoints

import (
	"encoding/json"
	"errors"
	"image"
	"os"
	"path/filepath"

	utils "go.viam.com/utils"
)

// ORBConfig contains the parameters / configs needed to compute ORB features.
type ORBConfig struct {
	Layers          int          `json:"n_layers"`
	DownscaleFactor int          `json:"downscale_factor"`
	FastConf        *FASTConfig  `json:"fast"`
	BRIEFConf       *BRIEFConfig `json:"brief"`
}

// DefaultORBConfig returns the ORB parameters used by the tag pipeline.
func DefaultORBConfig() *ORBConfig {
	return &ORBConfig{
		Layers:          3,
		DownscaleFactor: 2,
		FastConf:        DefaultFASTConfig(),
		BRIEFConf:       DefaultBRIEFConfig(),
	}
}

// LoadORBConfiguration loads a ORBConfig from a json file.
func LoadORBConfiguration(file string) (*ORBConfig, error) {
	var config ORBConfig
	filePath := filepath.Clean(file)
	configFile, err := os.Open(filePath)
	defer utils.UncheckedErrorFunc(configFile.Close)
	if err != nil {
		return nil, err
	}
	jsonParser := json.NewDecoder(configFile)
	err = jsonParser.Decode(&config)
	if err != nil {
		return nil, err
	}
	err = config.Validate(file)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate ensures all parts of the ORBConfig are valid.
func (config *ORBConfig) Validate(path string) error {
	if config.Layers < 1 {
		return utils.NewConfigValidationError(path, errors.New("n_layers should be >= 1"))
	}
	if config.DownscaleFactor <= 1 {
		return utils.NewConfigValidationError(path, errors.New("downscale_factor should be greater than 1"))
	}
	if config.FastConf == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "fast")
	}
	if config.BRIEFConf == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "brief")
	}
	return nil
}

// ImagePyramid contains a successively downscaled stack of an image and
// the scale of each layer relative to the original.
type ImagePyramid struct {
	Images []*image.Gray
	Scales []int
}

// GetImagePyramid computes the pyramid of an image with the given
// downscale factor per layer.
func GetImagePyramid(img *image.Gray, factor int) (*ImagePyramid, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	if factor < 2 {
		return nil, errors.New("downscale factor should be >= 2")
	}
	images := []*image.Gray{img}
	scales := []int{1}
	current := img
	for current.Bounds().Max.X >= 32*factor && current.Bounds().Max.Y >= 32*factor {
		downscaled := downscaleGray(current, factor)
		images = append(images, downscaled)
		scales = append(scales, scales[len(scales)-1]*factor)
		current = downscaled
	}
	return &ImagePyramid{Images: images, Scales: scales}, nil
}

// downscaleGray reduces an image by averaging factor x factor blocks.
func downscaleGray(img *image.Gray, factor int) *image.Gray {
	w, h := img.Bounds().Max.X/factor, img.Bounds().Max.Y/factor
	area := factor * factor
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0
			for by := 0; by < factor; by++ {
				for bx := 0; bx < factor; bx++ {
					sum += int(img.GrayAt(factor*x+bx, factor*y+by).Y)
				}
			}
			out.Pix[y*out.Stride+x] = uint8((sum + area/2) / area)
		}
	}
	return out
}

// ComputeORBKeypoints computes ORB keypoints on a gray image. The same
// SamplePairs must be used for every descriptor set that will be matched
// against the result.
func ComputeORBKeypoints(im *image.Gray, sp *SamplePairs, cfg *ORBConfig) (Descriptors, KeyPoints, error) {
	if cfg.Layers <= 0 {
		return nil, nil, errors.New("number of layers should be > 0")
	}
	pyramid, err := GetImagePyramid(im, cfg.DownscaleFactor)
	if err != nil {
		return nil, nil, err
	}
	layers := cfg.Layers
	if len(pyramid.Scales) < layers {
		layers = len(pyramid.Scales)
	}
	orbDescriptors := make(Descriptors, 0)
	orbPoints := make(KeyPoints, 0)
	for i := 0; i < layers; i++ {
		currentImage := pyramid.Images[i]
		currentScale := pyramid.Scales[i]
		fastKps, err := NewFASTKeypointsFromImage(currentImage, cfg.FastConf)
		if err != nil {
			return nil, nil, err
		}
		descs, err := ComputeBRIEFDescriptors(currentImage, sp, fastKps, cfg.BRIEFConf)
		if err != nil {
			return nil, nil, err
		}
		rescaledKps := RescaleKeypoints(fastKps.Points, currentScale)
		orbPoints = append(orbPoints, rescaledKps...)
		orbDescriptors = append(orbDescriptors, descs...)
	}
	return orbDescriptors, orbPoints, nil
}
