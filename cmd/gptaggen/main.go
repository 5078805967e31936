// Package main renders a printable tag image for a given identity,
// global position, orientation and physical size.
package main

import (
	"context"
	"flag"
	"image/png"
	"os"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/S-SB/gp-tag/marker"
	"github.com/S-SB/gp-tag/pose"
	"github.com/S-SB/gp-tag/tagdata"
)

var logger = golog.NewDebugLogger("gptaggen")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	flags := flag.NewFlagSet(args[0], flag.ContinueOnError)
	outPath := flags.String("out", "tag.png", "output PNG path")
	tagID := flags.Int("id", 0, "tag identifier (0-4095)")
	version := flags.Int("version", tagdata.LayoutVersion, "layout version (0-15)")
	lat := flags.Float64("lat", 0, "tag latitude in degrees")
	lon := flags.Float64("lon", 0, "tag longitude in degrees")
	alt := flags.Float64("alt", 0, "tag altitude in meters")
	roll := flags.Float64("roll", 0, "tag roll in degrees")
	pitch := flags.Float64("pitch", 0, "tag pitch in degrees")
	yaw := flags.Float64("yaw", 0, "tag yaw in degrees")
	sizeMM := flags.Float64("size", 100, "printed tag side length in millimeters")
	accuracy := flags.Int("accuracy", 0, "position accuracy class (0-3)")
	cellPx := flags.Int("cell", 10, "rendered cell size in pixels")
	if err := flags.Parse(args[1:]); err != nil {
		return err
	}
	if *sizeMM <= 0 {
		return errors.New("tag size must be positive")
	}

	td := &tagdata.TagData{
		TagID:     *tagID,
		VersionID: *version,
		Latitude:  *lat,
		Longitude: *lon,
		Altitude:  *alt,
		Quat:      pose.EulerToQuaternionNED([3]float64{*roll, *pitch, *yaw}),
		Scale:     float64(tagdata.GridSize) / *sizeMM,
		Accuracy:  *accuracy,
	}
	img, err := marker.Render(td, *cellPx)
	if err != nil {
		return err
	}

	f, err := os.Create(*outPath)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	if err := png.Encode(f, img); err != nil {
		return err
	}
	logger.Infow("tag rendered", "path", *outPath, "id", td.TagID, "size_mm", *sizeMM)
	return nil
}
