package eta

import (
	"math"

	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/models"
)

// DefaultSpeedKmh is a rough city average used when no speed is configured.
const DefaultSpeedKmh = 25.0

// Naive ETA: planar distance / speed. In prod use a routing engine.
func EstimateSeconds(from, to models.Location, speedKmh float64) float64 {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	return geo.PlanarKm(from, to) / speedKmh * 3600
}

// EstimateMinutes rounds the estimate up to whole minutes, with a floor of one.
func EstimateMinutes(from, to models.Location, speedKmh float64) int {
	m := int(math.Ceil(EstimateSeconds(from, to, speedKmh) / 60))
	if m < 1 {
		m = 1
	}
	return m
}
