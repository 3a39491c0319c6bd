package geo

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6371000.0

// effectiveDriveSpeedKmh approximates road travel from straight-line
// distance. Roads are never straight, so this intentionally undershoots
// highway speed.
const effectiveDriveSpeedKmh = 70.0

// HaversineMeters returns the great-circle distance between two coordinates.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// DriveTime formats an approximate ground-travel duration for a straight-line
// distance, e.g. "~1 h 40 min drive". Durations under an hour show minutes
// only; minutes round to the nearest 5.
func DriveTime(distanceMeters float64) string {
	minutes := distanceMeters / 1000 / effectiveDriveSpeedKmh * 60
	rounded := int(math.Round(minutes/5) * 5)
	if rounded < 5 {
		rounded = 5
	}

	h := rounded / 60
	m := rounded % 60

	if h == 0 {
		return fmt.Sprintf("~%d min drive", m)
	}
	if m == 0 {
		return fmt.Sprintf("~%d h drive", h)
	}
	return fmt.Sprintf("~%d h %d min drive", h, m)
}
