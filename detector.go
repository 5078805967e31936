// Package gptag implements the tag detection pipeline: a printable
// fiducial marker encoding absolute position, orientation, scale and
// identity behind error-correcting redundancy, decoded from a single
// camera image together with the 6-DoF camera pose relative to the tag.
package gptag

import (
	"image"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/S-SB/gp-tag/keypoints"
	"github.com/S-SB/gp-tag/marker"
	"github.com/S-SB/gp-tag/pose"
	"github.com/S-SB/gp-tag/tagdata"
	"github.com/S-SB/gp-tag/timage"
	"github.com/S-SB/gp-tag/transform"
)

// ErrInvalidInput indicates a malformed detection call: nil or empty
// image, or unusable camera intrinsics. This is a caller error, surfaced
// immediately without attempting detection.
var ErrInvalidInput = errors.New("invalid detection input")

// Detector runs the detection pipeline. It holds only read-only
// reference state (the rendered template and its descriptors) and is safe
// for concurrent use; every Detect call is stateless and idempotent.
type Detector struct {
	cfg    *DetectorConfig
	logger golog.Logger

	template      *image.Gray
	templateKps   keypoints.KeyPoints
	templateDescs keypoints.Descriptors
	samplePairs   *keypoints.SamplePairs
}

// NewDetector renders the reference pattern, computes its descriptors
// once, and returns a ready Detector. A nil cfg selects the defaults.
func NewDetector(cfg *DetectorConfig, logger golog.Logger) (*Detector, error) {
	if cfg == nil {
		cfg = DefaultDetectorConfig()
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	template, err := marker.RenderTemplate(tagdata.CanonicalCellPx)
	if err != nil {
		return nil, errors.Wrap(err, "cannot render reference pattern")
	}
	sp := keypoints.GenerateSamplePairs(cfg.ORB.BRIEFConf.Sampling, cfg.ORB.BRIEFConf.N, cfg.ORB.BRIEFConf.PatchSize)
	descs, kps, err := keypoints.ComputeORBKeypoints(template, sp, cfg.ORB)
	if err != nil {
		return nil, errors.Wrap(err, "cannot compute reference descriptors")
	}
	if len(kps) < cfg.MinMatches {
		return nil, errors.Errorf("reference pattern yields only %d keypoints", len(kps))
	}
	return &Detector{
		cfg:           cfg,
		logger:        logger,
		template:      template,
		templateKps:   kps,
		templateDescs: descs,
		samplePairs:   sp,
	}, nil
}

// templateCorners returns the canonical tag corners in template pixels,
// clockwise from top-left.
func templateCorners() [4]r2.Point {
	s := float64(tagdata.CanonicalSizePx)
	return [4]r2.Point{{X: 0, Y: 0}, {X: s, Y: 0}, {X: s, Y: s}, {X: 0, Y: s}}
}

// Detect runs the full pipeline on one image. Camera distortion may be
// nil for an ideal pinhole camera. All per-frame failures are reported in
// the Outcome; only malformed input returns a non-nil error.
func (d *Detector) Detect(img image.Image, intrinsics *transform.PinholeCameraIntrinsics, distortion transform.Distorter) (*Outcome, error) {
	if img == nil || img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		return nil, errors.Wrap(ErrInvalidInput, "image is nil or empty")
	}
	if err := intrinsics.CheckValid(); err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}
	if intrinsics.Width > 0 && intrinsics.Height > 0 &&
		(intrinsics.Width != img.Bounds().Dx() || intrinsics.Height != img.Bounds().Dy()) {
		return nil, errors.Wrapf(ErrInvalidInput, "intrinsics are for %dx%d but image is %dx%d",
			intrinsics.Width, intrinsics.Height, img.Bounds().Dx(), img.Bounds().Dy())
	}

	outcome := &Outcome{}
	var diag *Diagnostics
	if d.cfg.Diagnostics {
		diag = &Diagnostics{}
		outcome.Diagnostics = diag
	}
	timeStage := func(name string, start time.Time) {
		if diag != nil {
			diag.Timings = append(diag.Timings, StageTiming{Stage: name, Duration: time.Since(start)})
		}
	}

	gray := timage.MakeGray(img)

	// stage 1: keypoints, matching, candidate homography
	start := time.Now()
	cand, err := d.findCandidate(gray, diag)
	timeStage("keypoints", start)
	if err != nil {
		d.logger.Debugw("no candidate region", "error", err)
		outcome.Failure = NotDetected
		return outcome, nil
	}

	// stage 2: sub-pixel corner refinement
	start = time.Now()
	corners, refined, err := d.refineCorners(gray, cand.homography)
	timeStage("corners", start)
	if err != nil {
		d.logger.Debugw("corner refinement failed", "error", err)
		outcome.Failure = GeometryRefinementFailed
		return outcome, nil
	}
	for i, c := range corners {
		outcome.Corners[i] = [2]float64{c.X, c.Y}
	}

	// stage 3: rectification and annuli orientation
	start = time.Now()
	rectified, rotation, confidence, err := d.resolveOrientation(gray, refined)
	timeStage("annuli", start)
	if err != nil {
		d.logger.Debugw("annuli refinement failed", "error", err)
		outcome.Failure = GeometryRefinementFailed
		return outcome, nil
	}
	outcome.RotationOffset = rotation
	outcome.OrientationConfidence = confidence
	if diag != nil {
		diag.OrientationLowConfidence = confidence < d.cfg.MinOrientationConfidence
		if d.cfg.KeepImages {
			diag.Rectified = rectified
		}
	}

	// stage 4: data decode
	start = time.Now()
	td, corrected, err := tagdata.DecodeImage(rectified)
	timeStage("decode", start)
	if err != nil {
		d.logger.Debugw("data decode failed", "error", err)
		outcome.Failure = DataDecodeFailed
		return outcome, nil
	}
	if diag != nil {
		diag.CorrectedErrors = corrected
	}
	if err := td.Validate(); err != nil {
		d.logger.Debugw("payload invariant violated", "error", err)
		outcome.Failure = PayloadInvalid
		return outcome, nil
	}
	outcome.Tag = td

	// stage 5: pose estimation from the refined geometry
	start = time.Now()
	result, err := d.estimatePose(td, corners, rotation, intrinsics, distortion)
	timeStage("pose", start)
	if err != nil {
		d.logger.Debugw("pose estimation failed", "error", err)
		outcome.Failure = GeometryRefinementFailed
		return outcome, nil
	}
	outcome.Pose = result
	outcome.ObserverLat, outcome.ObserverLon, outcome.ObserverAlt =
		pose.ObserverPosition(result.Position, td.Latitude, td.Longitude, td.Altitude)
	outcome.Failure = FailureNone
	return outcome, nil
}

// estimatePose maps the refined corners to metric tag-plane coordinates
// using the decoded physical scale and the resolved rotation, and solves
// the planar pose. Corner order in the rectified frame is rotated by the
// annuli decision so the metric frame is always canonical (x = North,
// y = East).
func (d *Detector) estimatePose(
	td *tagdata.TagData,
	corners [4]r2.Point,
	rotation int,
	intrinsics *transform.PinholeCameraIntrinsics,
	distortion transform.Distorter,
) (*pose.Result, error) {
	halfSide := td.SizeMM() / 1000.0 / 2.0
	metric := []r2.Point{
		{X: -halfSide, Y: -halfSide},
		{X: halfSide, Y: -halfSide},
		{X: halfSide, Y: halfSide},
		{X: -halfSide, Y: halfSide},
	}
	model := &transform.PinholeCameraModel{PinholeCameraIntrinsics: intrinsics, Distortion: distortion}
	imagePts := make([]r2.Point, 4)
	for i := 0; i < 4; i++ {
		imagePts[i] = model.UndistortPoint(corners[(i+rotation)%4])
	}
	h, err := transform.EstimateHomography(metric, imagePts)
	if err != nil {
		return nil, err
	}
	cp, err := pose.SolvePlanar(h, intrinsics)
	if err != nil {
		return nil, err
	}
	return pose.FromCamPose(cp), nil
}
