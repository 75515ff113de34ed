// Package geo computes great-circle distances between coordinates.
package geo

import (
	"errors"
	"math"

	"github.com/sha1n/dupefinder/internal/domain"
)

// EarthRadiusMeters is the mean Earth radius used by Haversine.
const EarthRadiusMeters = 6371000.0

// ErrMissingCoordinates is returned when a distance is requested for a
// point that has no coordinates.
var ErrMissingCoordinates = errors.New("missing coordinates")

// Haversine returns the great-circle distance in meters between two points
// given in decimal degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	latFrom := lat1 * math.Pi / 180
	latTo := lat2 * math.Pi / 180
	latDelta := latTo - latFrom
	lonDelta := (lon2 - lon1) * math.Pi / 180

	h := math.Pow(math.Sin(latDelta/2), 2) +
		math.Cos(latFrom)*math.Cos(latTo)*math.Pow(math.Sin(lonDelta/2), 2)

	// Rounding can push h marginally above 1 for antipodal points.
	angle := 2 * math.Asin(math.Sqrt(math.Min(h, 1)))
	return angle * EarthRadiusMeters
}

// Distance returns the distance in meters between a and b.
func Distance(a, b *domain.Coordinates) (float64, error) {
	if a == nil || b == nil {
		return 0, ErrMissingCoordinates
	}
	return Haversine(a.Latitude, a.Longitude, b.Latitude, b.Longitude), nil
}
