package geo

import (
	"math"

	"github.com/example/ride-dispatch/internal/models"
)

// KmPerDegree converts a planar degree distance into kilometres.
const KmPerDegree = 111.0

// Planar is the flat-plane distance in degrees: sqrt(dLat^2 + dLng^2).
// Good enough for ranking drivers around a pickup; not a routing distance.
func Planar(a, b models.Location) float64 {
	dLat := a.Lat - b.Lat
	dLng := a.Lng - b.Lng
	return math.Sqrt(dLat*dLat + dLng*dLng)
}

// PlanarKm is Planar scaled to kilometres.
func PlanarKm(a, b models.Location) float64 {
	return Planar(a, b) * KmPerDegree
}
