package tagdata

import (
	"math"

	"github.com/pkg/errors"
)

// Field quantization constants for layout revision 3.
const (
	degreesScale   = 1e7   // latitude/longitude fixed point, degrees
	altitudeOffset = 10000 // meters added before quantization
	altitudeScale  = 100   // centimeter resolution
	quatScale      = 32767 // int16 quaternion components
	cellScaleScale = 1e6   // cells-per-mm fixed point

	// MaxTagID is the largest encodable tag identifier.
	MaxTagID = 1<<12 - 1
	// MaxVersionID is the largest encodable version identifier.
	MaxVersionID = 1<<4 - 1
	// MaxAccuracy is the largest encodable accuracy class.
	MaxAccuracy = 3

	// MinTagSizeMM and MaxTagSizeMM bound the physical tag side length.
	MinTagSizeMM = 10
	MaxTagSizeMM = 10000
	// MinScale and MaxScale are the cells-per-mm bounds implied by the
	// size range; they keep the scale inside its 24-bit field.
	MinScale = float64(GridSize) / MaxTagSizeMM
	MaxScale = float64(GridSize) / MinTagSizeMM
)

// TagData is the structured payload of a decoded tag. The quaternion is
// in NED convention, [x, y, z, w] order, unit norm.
type TagData struct {
	TagID     int        `json:"tag_id"`
	VersionID int        `json:"version_id"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Altitude  float64    `json:"altitude"`
	Quat      [4]float64 `json:"quaternion"`
	Scale     float64    `json:"scale"` // cells per millimeter
	Accuracy  int        `json:"accuracy"`
}

// SizeMM returns the physical side length of the tag in millimeters.
func (td *TagData) SizeMM() float64 {
	return float64(GridSize) / td.Scale
}

// Validate checks the field-level invariants of a payload. A failure
// indicates a layout or version mismatch rather than transient noise.
func (td *TagData) Validate() error {
	if td.TagID < 0 || td.TagID > MaxTagID {
		return errors.Errorf("tag id %d out of range [0, %d]", td.TagID, MaxTagID)
	}
	if td.VersionID < 0 || td.VersionID > MaxVersionID {
		return errors.Errorf("version id %d out of range [0, %d]", td.VersionID, MaxVersionID)
	}
	if td.Latitude < -90 || td.Latitude > 90 {
		return errors.Errorf("latitude %f out of range [-90, 90]", td.Latitude)
	}
	if td.Longitude < -180 || td.Longitude > 180 {
		return errors.Errorf("longitude %f out of range [-180, 180]", td.Longitude)
	}
	if td.Altitude < -altitudeOffset || td.Altitude > altitudeOffset {
		return errors.Errorf("altitude %f out of range [-%d, %d]", td.Altitude, altitudeOffset, altitudeOffset)
	}
	if td.Scale < MinScale || td.Scale > MaxScale {
		return errors.Errorf("scale %f out of range [%f, %f]", td.Scale, MinScale, MaxScale)
	}
	norm := math.Sqrt(td.Quat[0]*td.Quat[0] + td.Quat[1]*td.Quat[1] + td.Quat[2]*td.Quat[2] + td.Quat[3]*td.Quat[3])
	if math.Abs(norm-1.0) > 0.05 {
		return errors.Errorf("quaternion norm %f is not near unit", norm)
	}
	if td.Accuracy < 0 || td.Accuracy > MaxAccuracy {
		return errors.Errorf("accuracy %d out of range [0, %d]", td.Accuracy, MaxAccuracy)
	}
	return nil
}

// bitWriter packs MSB-first bit fields into bytes.
type bitWriter struct {
	bytes []byte
	nBits int
}

func newBitWriter(nBytes int) *bitWriter {
	return &bitWriter{bytes: make([]byte, nBytes)}
}

func (w *bitWriter) write(value uint64, nBits int) {
	for i := nBits - 1; i >= 0; i-- {
		if value&(1<<uint(i)) != 0 {
			w.bytes[w.nBits/8] |= 1 << uint(7-w.nBits%8)
		}
		w.nBits++
	}
}

// bitReader reads MSB-first bit fields from bytes.
type bitReader struct {
	bytes []byte
	nBits int
}

func (r *bitReader) read(nBits int) uint64 {
	var value uint64
	for i := 0; i < nBits; i++ {
		value <<= 1
		if r.bytes[r.nBits/8]&(1<<uint(7-r.nBits%8)) != 0 {
			value |= 1
		}
		r.nBits++
	}
	return value
}

func (r *bitReader) readSigned(nBits int) int64 {
	v := r.read(nBits)
	// sign extend
	if v&(1<<uint(nBits-1)) != 0 {
		v |= ^uint64(0) << uint(nBits)
	}
	return int64(v)
}

func clampF(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Pack quantizes the payload fields into the DataBytes-long byte block of
// layout revision 3.
func (td *TagData) Pack() []byte {
	w := newBitWriter(DataBytes)
	w.write(uint64(td.VersionID), 4)
	w.write(uint64(td.TagID), 12)
	lat := int32(math.Round(clampF(td.Latitude, -90, 90) * degreesScale))
	lon := int32(math.Round(clampF(td.Longitude, -180, 180) * degreesScale))
	w.write(uint64(uint32(lat)), 32)
	w.write(uint64(uint32(lon)), 32)
	alt := uint64(math.Round((clampF(td.Altitude, -altitudeOffset, altitudeOffset) + altitudeOffset) * altitudeScale))
	w.write(alt, 24)
	for _, q := range td.Quat {
		qi := int16(math.Round(clampF(q, -1, 1) * quatScale))
		w.write(uint64(uint16(qi)), 16)
	}
	w.write(uint64(math.Round(clampF(td.Scale, MinScale, MaxScale)*cellScaleScale)), 24)
	w.write(uint64(td.Accuracy), 2)
	return w.bytes
}

// Unpack reconstructs a payload from a corrected DataBytes-long byte
// block. Field-level invariants are not checked here; see Validate.
func Unpack(data []byte) (*TagData, error) {
	if len(data) != DataBytes {
		return nil, errors.Errorf("payload block must be %d bytes, got %d", DataBytes, len(data))
	}
	r := &bitReader{bytes: data}
	td := &TagData{}
	td.VersionID = int(r.read(4))
	td.TagID = int(r.read(12))
	td.Latitude = float64(r.readSigned(32)) / degreesScale
	td.Longitude = float64(r.readSigned(32)) / degreesScale
	td.Altitude = float64(r.read(24))/altitudeScale - altitudeOffset
	for i := 0; i < 4; i++ {
		td.Quat[i] = float64(r.readSigned(16)) / quatScale
	}
	td.Scale = float64(r.read(24)) / cellScaleScale
	td.Accuracy = int(r.read(2))
	return td, nil
}
