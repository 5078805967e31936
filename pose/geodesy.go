package pose

import "math"

// EarthRadius is the WGS84 equatorial radius in meters, used in the
// locally flat Earth approximation (valid for stand-off distances well
// under 10 km).
const EarthRadius = 6378137.0

// ObserverPosition computes the observer's global position from the tag's
// global position and the observer->tag [north, east, down] vector in
// meters. Returns latitude and longitude in degrees, altitude in meters.
func ObserverPosition(position [3]float64, tagLat, tagLon, tagAlt float64) (lat, lon, alt float64) {
	n, e, d := position[0], position[1], position[2]

	latChange := radToDeg(n / EarthRadius)
	lonChange := radToDeg(e / (EarthRadius * math.Cos(degToRad(tagLat))))

	// the position vector points from the observer to the tag
	lat = tagLat - latChange
	lon = tagLon - lonChange
	alt = tagAlt + d
	return lat, lon, alt
}

func radToDeg(r float64) float64 { return r * 180 / math.Pi }

func degToRad(d float64) float64 { return d * math.Pi / 180 }
