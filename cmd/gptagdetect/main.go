// Package main detects a tag in a single image and prints the decoded
// payload, the relative camera pose, and the derived observer position.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	gptag "github.com/S-SB/gp-tag"
	"github.com/S-SB/gp-tag/transform"
)

var logger = golog.NewDebugLogger("gptagdetect")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	flags := flag.NewFlagSet(args[0], flag.ContinueOnError)
	imagePath := flags.String("image", "", "path to the input image (png or jpeg)")
	intrinsicsPath := flags.String("intrinsics", "", "path to the camera intrinsics JSON")
	configPath := flags.String("config", "", "optional detector configuration JSON")
	overlayPath := flags.String("overlay", "", "optional path to save a detection overlay PNG")
	focal := flags.Float64("focal", 0, "focal length in pixels, used with the principal point at the image center when no intrinsics file is given")
	if err := flags.Parse(args[1:]); err != nil {
		return err
	}
	if *imagePath == "" {
		return errors.New("an -image path is required")
	}

	f, err := os.Open(*imagePath)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	img, _, err := image.Decode(f)
	if err != nil {
		return errors.Wrapf(err, "cannot decode %q", *imagePath)
	}

	var intrinsics *transform.PinholeCameraIntrinsics
	switch {
	case *intrinsicsPath != "":
		intrinsics, err = transform.NewPinholeCameraIntrinsicsFromJSONFile(*intrinsicsPath)
		if err != nil {
			return err
		}
	case *focal > 0:
		intrinsics = &transform.PinholeCameraIntrinsics{
			Width:  img.Bounds().Dx(),
			Height: img.Bounds().Dy(),
			Fx:     *focal,
			Fy:     *focal,
			Ppx:    float64(img.Bounds().Dx()) / 2,
			Ppy:    float64(img.Bounds().Dy()) / 2,
		}
	default:
		return errors.New("either -intrinsics or -focal is required")
	}

	cfg := gptag.DefaultDetectorConfig()
	if *configPath != "" {
		cfg, err = gptag.LoadDetectorConfiguration(*configPath)
		if err != nil {
			return err
		}
	}

	detector, err := gptag.NewDetector(cfg, logger)
	if err != nil {
		return err
	}
	outcome, err := detector.Detect(img, intrinsics, nil)
	if err != nil {
		return err
	}
	fmt.Print(outcome.Summary())

	if *overlayPath != "" {
		if err := gptag.PlotOutcome(img, outcome, *overlayPath); err != nil {
			return err
		}
		logger.Infow("overlay saved", "path", *overlayPath)
	}
	if !outcome.Detected() {
		return errors.Errorf("detection failed: %s", outcome.Failure)
	}
	return nil
}
