package geo

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// EarthRadiusKm matches the radius the nearby SQL uses.
const EarthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance in kilometers between two
// lat/lon points. Same spherical formula as the SQL expression in
// GetNearbyReports, so Go-side and DB-side distances agree.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	arg := math.Cos(rlat1)*math.Cos(rlat2)*math.Cos(dlon) +
		math.Sin(rlat1)*math.Sin(rlat2)
	// Floating point noise can push the argument just outside [-1, 1].
	if arg > 1 {
		arg = 1
	} else if arg < -1 {
		arg = -1
	}
	return EarthRadiusKm * math.Acos(arg)
}

// Rect is a lat/lon bounding box in degrees. FullLon marks a box that
// wraps the antimeridian or covers a pole, in which case longitude
// bounds are meaningless and callers must not filter on them.
type Rect struct {
	LatMin  float64
	LatMax  float64
	LonMin  float64
	LonMax  float64
	FullLon bool
}

// BoundingRect returns a rectangle enclosing the spherical cap of the
// given radius around the center. Used as a cheap index-friendly
// prefilter before the exact distance check.
func BoundingRect(lat, lon, radiusKm float64) Rect {
	center := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
	c := s2.CapFromCenterAngle(center, s1.Angle(radiusKm/EarthRadiusKm))
	rb := c.RectBound()

	r := Rect{
		LatMin: s1.Angle(rb.Lat.Lo).Degrees(),
		LatMax: s1.Angle(rb.Lat.Hi).Degrees(),
		LonMin: rb.Lng.Lo * 180 / math.Pi,
		LonMax: rb.Lng.Hi * 180 / math.Pi,
	}
	if rb.Lng.IsFull() || rb.Lng.Lo > rb.Lng.Hi {
		r.FullLon = true
	}
	return r
}
