package tagdata

import (
	"testing"

	"go.viam.com/test"
)

// sampleTagData is a realistic survey-grade fixture used across the
// package tests.
func sampleTagData() *TagData {
	return &TagData{
		TagID:     123,
		VersionID: 3,
		Latitude:  63.8203894,
		Longitude: 20.3058847,
		Altitude:  45.16,
		Quat:      [4]float64{0, 0, 0, 1},
		Scale:     0.36,
		Accuracy:  2,
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	td := sampleTagData()
	packed := td.Pack()
	test.That(t, packed, test.ShouldHaveLength, DataBytes)

	out, err := Unpack(packed)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.TagID, test.ShouldEqual, td.TagID)
	test.That(t, out.VersionID, test.ShouldEqual, td.VersionID)
	test.That(t, out.Accuracy, test.ShouldEqual, td.Accuracy)

	// quantization bounds: 1e-7 deg, 1 cm, 1e-6 cells/mm
	test.That(t, out.Latitude, test.ShouldAlmostEqual, td.Latitude, 1e-7)
	test.That(t, out.Longitude, test.ShouldAlmostEqual, td.Longitude, 1e-7)
	test.That(t, out.Altitude, test.ShouldAlmostEqual, td.Altitude, 0.01)
	test.That(t, out.Scale, test.ShouldAlmostEqual, td.Scale, 1e-6)
	for i := 0; i < 4; i++ {
		test.That(t, out.Quat[i], test.ShouldAlmostEqual, td.Quat[i], 1.0/32767)
	}
}

func TestPackUnpackExtremes(t *testing.T) {
	td := &TagData{
		TagID:     MaxTagID,
		VersionID: MaxVersionID,
		Latitude:  -89.9999999,
		Longitude: 179.9999999,
		Altitude:  -9999.99,
		Quat:      [4]float64{0.5, -0.5, 0.5, -0.5},
		Accuracy:  MaxAccuracy,
		Scale:     MaxScale, // 10 mm tag
	}
	out, err := Unpack(td.Pack())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.TagID, test.ShouldEqual, MaxTagID)
	test.That(t, out.VersionID, test.ShouldEqual, MaxVersionID)
	test.That(t, out.Accuracy, test.ShouldEqual, MaxAccuracy)
	test.That(t, out.Latitude, test.ShouldAlmostEqual, td.Latitude, 1e-7)
	test.That(t, out.Longitude, test.ShouldAlmostEqual, td.Longitude, 1e-7)
	test.That(t, out.Altitude, test.ShouldAlmostEqual, td.Altitude, 0.01)
	test.That(t, out.Scale, test.ShouldAlmostEqual, td.Scale, 1e-6)
	for i := 0; i < 4; i++ {
		test.That(t, out.Quat[i], test.ShouldAlmostEqual, td.Quat[i], 1.0/32767)
	}
}

func TestPackClampsScale(t *testing.T) {
	// a scale past its bound must clamp rather than truncate into the
	// 24-bit field
	td := sampleTagData()
	td.Scale = MaxScale * 5
	out, err := Unpack(td.Pack())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Scale, test.ShouldAlmostEqual, MaxScale, 1e-6)

	td.Scale = MinScale / 10
	out, err = Unpack(td.Pack())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Scale, test.ShouldAlmostEqual, MinScale, 1e-6)
}

func TestUnpackRejectsShortBuffer(t *testing.T) {
	_, err := Unpack(make([]byte, DataBytes-1))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSizeMM(t *testing.T) {
	td := sampleTagData()
	// 0.36 cells/mm over a 36-cell grid is a 100 mm tag
	test.That(t, td.SizeMM(), test.ShouldAlmostEqual, 100.0, 1e-9)
}

func TestValidate(t *testing.T) {
	test.That(t, sampleTagData().Validate(), test.ShouldBeNil)

	for _, tc := range []struct {
		name   string
		mutate func(*TagData)
	}{
		{"tag id too large", func(td *TagData) { td.TagID = MaxTagID + 1 }},
		{"negative tag id", func(td *TagData) { td.TagID = -1 }},
		{"latitude out of range", func(td *TagData) { td.Latitude = 91 }},
		{"longitude out of range", func(td *TagData) { td.Longitude = -181 }},
		{"altitude below range", func(td *TagData) { td.Altitude = -10001 }},
		{"zero scale", func(td *TagData) { td.Scale = 0 }},
		{"scale below range", func(td *TagData) { td.Scale = MinScale / 2 }},
		{"scale above range", func(td *TagData) { td.Scale = MaxScale * 2 }},
		{"unnormalized quaternion", func(td *TagData) { td.Quat = [4]float64{0.5, 0.5, 0.5, 1} }},
		{"accuracy out of range", func(td *TagData) { td.Accuracy = MaxAccuracy + 1 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			td := sampleTagData()
			tc.mutate(td)
			test.That(t, td.Validate(), test.ShouldNotBeNil)
		})
	}
}
