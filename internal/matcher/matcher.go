package matcher

import (
	"fmt"
	"strings"

	apperrors "github.com/example/ride-dispatch/internal/errors"
	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/models"
)

// Policy picks one driver for a pickup. Implementations must ignore candidates
// whose vehicle class differs from class, even if the caller already filtered.
// Ties go to the first candidate in slice order.
type Policy interface {
	Name() string
	Select(candidates []models.Driver, pickup models.Location, class models.VehicleClass) (models.Driver, bool)
}

const (
	NameNearest   = "nearest"
	NameBestRated = "best_rated"
)

// Nearest minimises planar distance between driver and pickup.
type Nearest struct{}

func (Nearest) Name() string { return NameNearest }

func (Nearest) Select(candidates []models.Driver, pickup models.Location, class models.VehicleClass) (models.Driver, bool) {
	var (
		best    models.Driver
		bestD   float64
		matched bool
	)
	for _, d := range candidates {
		if d.Vehicle.Class != class {
			continue
		}
		dist := geo.Planar(d.Location, pickup)
		if !matched || dist < bestD {
			best, bestD, matched = d, dist, true
		}
	}
	return best, matched
}

// BestRated maximises driver rating.
type BestRated struct{}

func (BestRated) Name() string { return NameBestRated }

func (BestRated) Select(candidates []models.Driver, _ models.Location, class models.VehicleClass) (models.Driver, bool) {
	var (
		best    models.Driver
		matched bool
	)
	for _, d := range candidates {
		if d.Vehicle.Class != class {
			continue
		}
		if !matched || d.Rating > best.Rating {
			best, matched = d, true
		}
	}
	return best, matched
}

// FilterByClass keeps candidates whose vehicle class equals class, preserving order.
func FilterByClass(candidates []models.Driver, class models.VehicleClass) []models.Driver {
	out := make([]models.Driver, 0, len(candidates))
	for _, d := range candidates {
		if d.Vehicle.Class == class {
			out = append(out, d)
		}
	}
	return out
}

// ByName resolves a configured policy name.
func ByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameNearest, "":
		return Nearest{}, nil
	case NameBestRated, "best-rated", "rating":
		return BestRated{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown matching policy %q", apperrors.ErrValidation, name)
	}
}
