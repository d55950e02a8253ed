// Package geo provides great-circle distance and the bounding box used to
// bucket memories into nearby properties.
package geo

import (
	"math"

	"github.com/starford/homehistory/internal/models"
)

// EarthRadiusMiles is the mean Earth radius used by Distance.
const EarthRadiusMiles = 3959.0

// ProximityDelta is the half-width, in degrees, of the box that decides
// whether a submission belongs to an existing property (roughly 100m).
const ProximityDelta = 0.001

// Box is an axis-aligned latitude/longitude rectangle, bounds inclusive.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoxAround returns the box extending delta degrees on every side of c.
func BoxAround(c models.Coordinates, delta float64) Box {
	return Box{
		MinLat: c.Lat - delta,
		MaxLat: c.Lat + delta,
		MinLng: c.Lng - delta,
		MaxLng: c.Lng + delta,
	}
}

// Contains reports whether c lies inside b.
func (b Box) Contains(c models.Coordinates) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat && c.Lng >= b.MinLng && c.Lng <= b.MaxLng
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Distance returns the haversine distance in miles between a and b.
func Distance(a, b models.Coordinates) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMiles * c
}
