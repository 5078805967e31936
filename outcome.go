package gptag

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/S-SB/gp-tag/pose"
	"github.com/S-SB/gp-tag/tagdata"
)

// FailureKind classifies why a detection call produced no payload. All
// kinds are expected, per-frame conditions returned as values; only
// malformed input is surfaced as a Go error from Detect.
type FailureKind int

const (
	// FailureNone means the detection succeeded.
	FailureNone FailureKind = iota
	// NotDetected means no candidate met the keypoint or finder
	// validation thresholds. Expected on frames without a visible tag.
	NotDetected
	// GeometryRefinementFailed means corner or annuli refinement could
	// not converge within tolerance.
	GeometryRefinementFailed
	// DataDecodeFailed means the error-correction capacity was
	// exceeded; the payload is unrecoverable.
	DataDecodeFailed
	// PayloadInvalid means the decode succeeded but a field-level
	// invariant failed, indicating a layout or version mismatch.
	PayloadInvalid
)

// String implements fmt.Stringer.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "Success"
	case NotDetected:
		return "NotDetected"
	case GeometryRefinementFailed:
		return "GeometryRefinementFailed"
	case DataDecodeFailed:
		return "DataDecodeFailed"
	case PayloadInvalid:
		return "PayloadInvalid"
	default:
		return "Unknown"
	}
}

// StageTiming records how long one pipeline stage took.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// Diagnostics carries optional per-stage information about a detection.
type Diagnostics struct {
	Timings []StageTiming `json:"timings,omitempty"`
	// NumKeypoints is the number of keypoints found in the image.
	NumKeypoints int `json:"num_keypoints"`
	// NumMatches is the number of descriptor matches against the
	// reference pattern.
	NumMatches int `json:"num_matches"`
	// NumInliers is the number of RANSAC inliers of the accepted
	// candidate.
	NumInliers int `json:"num_inliers"`
	// CandidatesTried is how many candidate regions were evaluated.
	CandidatesTried int `json:"candidates_tried"`
	// OrientationLowConfidence is set when the annuli ring reading was
	// ambiguous and the best-guess rotation was used.
	OrientationLowConfidence bool `json:"orientation_low_confidence"`
	// CorrectedErrors is the number of codeword symbols repaired by the
	// error correction.
	CorrectedErrors int `json:"corrected_errors"`
	// Rectified is the de-rotated canonical tag image, retained only
	// when DetectorConfig.KeepImages is set.
	Rectified *image.Gray `json:"-"`
}

// Outcome is the single result of one detection call. It is all-or-
// nothing per frame: either Failure is FailureNone and Tag/Pose are set,
// or Failure names the stage that gave up.
type Outcome struct {
	Failure FailureKind `json:"failure"`

	// Tag is the decoded payload, set on success.
	Tag *tagdata.TagData `json:"tag,omitempty"`
	// Pose is the camera pose relative to the tag in NED, set on
	// success.
	Pose *pose.Result `json:"pose,omitempty"`
	// ObserverLat, ObserverLon, ObserverAlt is the observer's global
	// position composed from Tag and Pose, set on success.
	ObserverLat float64 `json:"observer_latitude,omitempty"`
	ObserverLon float64 `json:"observer_longitude,omitempty"`
	ObserverAlt float64 `json:"observer_altitude,omitempty"`

	// Corners are the refined tag corner pixel coordinates, clockwise
	// from the rectified frame's top-left, set from the geometry stage
	// onward.
	Corners [4][2]float64 `json:"corners,omitempty"`
	// RotationOffset is the resolved in-plane rotation in quarter
	// turns.
	RotationOffset int `json:"rotation_offset"`
	// OrientationConfidence is the margin of the annuli ring decision,
	// in [0, 1].
	OrientationConfidence float64 `json:"orientation_confidence"`

	Diagnostics *Diagnostics `json:"diagnostics,omitempty"`
}

// Detected reports whether the outcome carries a decoded payload.
func (o *Outcome) Detected() bool {
	return o.Failure == FailureNone
}

// Summary renders the outcome as a human-readable multi-line report.
func (o *Outcome) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "result: %s\n", o.Failure)
	if o.Tag != nil {
		fmt.Fprintf(&b, "tag id: %d (version %d, accuracy %d)\n", o.Tag.TagID, o.Tag.VersionID, o.Tag.Accuracy)
		fmt.Fprintf(&b, "tag position: lat %.7f, lon %.7f, alt %.2f m\n", o.Tag.Latitude, o.Tag.Longitude, o.Tag.Altitude)
		fmt.Fprintf(&b, "tag size: %.1f mm (%.6f cells/mm)\n", o.Tag.SizeMM(), o.Tag.Scale)
	}
	if o.Pose != nil {
		p := o.Pose.Position
		fmt.Fprintf(&b, "relative position (NED): north %.3f m, east %.3f m, down %.3f m\n", p[0], p[1], p[2])
		e := pose.QuaternionToEulerNED(o.Pose.Rotation)
		fmt.Fprintf(&b, "relative orientation: roll %.1f, pitch %.1f, yaw %.1f deg\n", e[0], e[1], e[2])
		fmt.Fprintf(&b, "observer position: lat %.7f, lon %.7f, alt %.2f m\n", o.ObserverLat, o.ObserverLon, o.ObserverAlt)
	}
	if o.Failure != NotDetected {
		fmt.Fprintf(&b, "rotation offset: %d quarter turns (confidence %.2f)\n", o.RotationOffset, o.OrientationConfidence)
	}
	if d := o.Diagnostics; d != nil {
		fmt.Fprintf(&b, "keypoints %d, matches %d, inliers %d, candidates %d, corrected symbols %d\n",
			d.NumKeypoints, d.NumMatches, d.NumInliers, d.CandidatesTried, d.CorrectedErrors)
		for _, t := range d.Timings {
			fmt.Fprintf(&b, "  %-10s %s\n", t.Stage, t.Duration.Round(time.Microsecond))
		}
	}
	return b.String()
}
