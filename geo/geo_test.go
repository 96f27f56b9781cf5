package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm(t *testing.T) {
	// One degree of latitude is ~111.19 km on a 6371 km sphere.
	assert.InDelta(t, 111.19, DistanceKm(0, 0, 1, 0), 0.01)

	// Same point, including values prone to acos domain noise.
	assert.Equal(t, 0.0, DistanceKm(12.97, 77.59, 12.97, 77.59))

	// Symmetric.
	assert.InDelta(t,
		DistanceKm(12.97, 77.59, 13.00, 77.62),
		DistanceKm(13.00, 77.62, 12.97, 77.59), 1e-9)
}

func TestBoundingRectEnclosesRadius(t *testing.T) {
	const (
		lat    = 12.97
		lon    = 77.59
		radius = 5.0
	)
	rect := BoundingRect(lat, lon, radius)

	assert.False(t, rect.FullLon)
	assert.Less(t, rect.LatMin, lat)
	assert.Greater(t, rect.LatMax, lat)
	assert.Less(t, rect.LonMin, lon)
	assert.Greater(t, rect.LonMax, lon)

	// Sample points on the radius circle; all must fall inside the rect.
	for deg := 0; deg < 360; deg += 15 {
		bearing := float64(deg) * math.Pi / 180
		dLat := (radius / EarthRadiusKm) * math.Cos(bearing) * 180 / math.Pi
		dLon := (radius / EarthRadiusKm) * math.Sin(bearing) * 180 / math.Pi /
			math.Cos(lat*math.Pi/180)
		pLat, pLon := lat+dLat, lon+dLon

		if d := DistanceKm(lat, lon, pLat, pLon); d > radius+0.1 {
			// Not a circle point after the planar approximation; skip.
			continue
		}
		assert.GreaterOrEqual(t, pLat, rect.LatMin, "bearing %d", deg)
		assert.LessOrEqual(t, pLat, rect.LatMax, "bearing %d", deg)
		assert.GreaterOrEqual(t, pLon, rect.LonMin, "bearing %d", deg)
		assert.LessOrEqual(t, pLon, rect.LonMax, "bearing %d", deg)
	}
}

func TestBoundingRectNearPole(t *testing.T) {
	rect := BoundingRect(89.9, 0, 50)
	// A cap around the pole wraps all longitudes.
	assert.True(t, rect.FullLon)
}
