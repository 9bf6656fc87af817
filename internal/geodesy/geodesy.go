// Package geodesy provides great-circle distance and bearing on a spherical
// earth plus the unit conversions used by flight planning.
package geodesy

import (
	"math"
)

const (
	// MetersPerNM is exact by definition.
	MetersPerNM = 1852.0
	// MetersPerFoot is exact by definition (international foot).
	MetersPerFoot = 0.3048
	// FeetPerNM follows from the two exact definitions above.
	FeetPerNM = MetersPerNM / MetersPerFoot
	// MetersPerStatuteMile is exact by definition.
	MetersPerStatuteMile = 1609.344

	// EarthRadiusMeters is the IUGG mean earth radius.
	EarthRadiusMeters = 6371008.8
)

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewCoordinate is shorthand for Coordinate{Lat: lat, Lon: lon}.
func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{Lat: lat, Lon: lon}
}

// Valid reports whether c is finite and within the latitude/longitude ranges.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

func toRad(d float64) float64 { return d * math.Pi / 180 }
func toDeg(r float64) float64 { return r * 180 / math.Pi }

// centralAngle returns the haversine central angle between a and b in radians.
func centralAngle(a, b Coordinate) float64 {
	lat1, lat2 := toRad(a.Lat), toRad(b.Lat)
	dLat := lat2 - lat1
	dLon := toRad(b.Lon - a.Lon)

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)
	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	if h > 1 {
		h = 1
	}
	return 2 * math.Asin(math.Sqrt(h))
}

// DistanceMeters returns the great-circle distance between a and b.
func DistanceMeters(a, b Coordinate) float64 {
	return centralAngle(a, b) * EarthRadiusMeters
}

// DistanceNM returns the great-circle distance between a and b in nautical miles.
func DistanceNM(a, b Coordinate) float64 {
	return MetersToNM(DistanceMeters(a, b))
}

// BearingDeg returns the initial great-circle bearing from -> to in degrees
// true, normalized to [0, 360). Identical points return 0.
func BearingDeg(from, to Coordinate) float64 {
	if from == to {
		return 0
	}
	lat1, lat2 := toRad(from.Lat), toRad(to.Lat)
	dLon := toRad(to.Lon - from.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	if x == 0 && y == 0 {
		return 0
	}
	return NormalizeBearing(toDeg(math.Atan2(y, x)))
}

// NormalizeBearing maps any angle in degrees to [0, 360).
func NormalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// Destination returns the point reached by travelling distNM from start along
// the great circle with the given initial bearing.
func Destination(start Coordinate, bearingDeg, distNM float64) Coordinate {
	delta := NMToMeters(distNM) / EarthRadiusMeters
	theta := toRad(bearingDeg)
	lat1 := toRad(start.Lat)
	lon1 := toRad(start.Lon)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lon2 := lon1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2),
	)

	lon := math.Mod(toDeg(lon2)+540, 360) - 180
	return Coordinate{Lat: toDeg(lat2), Lon: lon}
}

// NMToMeters converts nautical miles to meters.
func NMToMeters(nm float64) float64 { return nm * MetersPerNM }

// MetersToNM converts meters to nautical miles.
func MetersToNM(m float64) float64 { return m / MetersPerNM }

// FeetToMeters converts feet to meters.
func FeetToMeters(ft float64) float64 { return ft * MetersPerFoot }

// MetersToFeet converts meters to feet.
func MetersToFeet(m float64) float64 { return m / MetersPerFoot }

// NMToFeet converts nautical miles to feet.
func NMToFeet(nm float64) float64 { return nm * FeetPerNM }

// FeetToNM converts feet to nautical miles.
func FeetToNM(ft float64) float64 { return ft / FeetPerNM }

// NMToStatuteMiles converts nautical miles to statute miles.
func NMToStatuteMiles(nm float64) float64 {
	return nm * MetersPerNM / MetersPerStatuteMile
}
