package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/example/ride-dispatch/internal/eta"
	apperrors "github.com/example/ride-dispatch/internal/errors"
	"github.com/example/ride-dispatch/internal/matcher"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/notify"
	"github.com/example/ride-dispatch/internal/observability"
)

// RequestRide creates a ride and tries to assign a driver. A ride that ends
// up without a driver is still a successful request: callers inspect the ride
// to tell the two apart.
func (e *Engine) RequestRide(ctx context.Context, riderID string, pickup, dropoff models.Location, mode models.RideMode, class models.VehicleClass) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.store.Rider(riderID); !ok {
		return "", fmt.Errorf("%w: rider %s", apperrors.ErrNotFound, riderID)
	}
	if pickup.SameCoordinates(dropoff) {
		return "", fmt.Errorf("%w: pickup and dropoff are the same point", apperrors.ErrValidation)
	}
	if !mode.Valid() {
		return "", fmt.Errorf("%w: unknown ride mode %q", apperrors.ErrValidation, mode)
	}
	if !class.Valid() {
		return "", fmt.Errorf("%w: unknown vehicle class %q", apperrors.ErrValidation, class)
	}

	e.rideSeq++
	ride := &models.Ride{
		ID:           fmt.Sprintf("RIDE_%d", e.rideSeq),
		RiderID:      riderID,
		Pickup:       pickup,
		Dropoff:      dropoff,
		Mode:         mode,
		VehicleClass: class,
		Status:       models.StatusRequested,
		RequestedAt:  e.now(),
	}
	e.store.SaveRide(ride)
	observability.RidesRequested.WithLabelValues(string(mode), string(class)).Inc()
	e.hub.Publish(ctx, notify.EventRideRequested,
		fmt.Sprintf("Ride %s requested: %s %s from %s to %s", ride.ID, class.Name(), mode, label(pickup), label(dropoff)))

	pool := e.candidatePool(mode)
	if len(pool) == 0 {
		observability.NoDriverTotal.WithLabelValues("no_pool").Inc()
		e.hub.Publish(ctx, notify.EventNoDriverAvailable, fmt.Sprintf("No driver available for ride %s", ride.ID))
		return ride.ID, nil
	}

	start := time.Now()
	e.assign(ctx, ride, pool)
	observability.MatchLatency.Observe(time.Since(start).Seconds())
	return ride.ID, nil
}

// candidatePool snapshots drivers eligible for mode, in registration order.
// Carpool drivers may already be on a trip as long as their group has room.
func (e *Engine) candidatePool(mode models.RideMode) []models.Driver {
	var pool []models.Driver
	for _, d := range e.store.Drivers() {
		switch mode {
		case models.ModeCarpool:
			if (d.Status == models.DriverAvailable || d.Status == models.DriverOnTrip) &&
				e.store.CarpoolSize(d.ID) < d.Vehicle.Capacity {
				pool = append(pool, *d)
			}
		default:
			if d.Status == models.DriverAvailable {
				pool = append(pool, *d)
			}
		}
	}
	return pool
}

func (e *Engine) assign(ctx context.Context, ride *models.Ride, pool []models.Driver) {
	reason := "exhausted"
	for round := 0; round < MaxAssignRounds; round++ {
		if len(pool) == 0 {
			break
		}
		cand, ok := e.policy.Select(matcher.FilterByClass(pool, ride.VehicleClass), ride.Pickup, ride.VehicleClass)
		if !ok {
			reason = "no_class_match"
			break
		}
		driver, ok := e.store.Driver(cand.ID)
		if !ok {
			reason = "no_class_match"
			break
		}

		p := AcceptanceProbability(round)
		draw := e.rand.Float64()
		e.logger.DebugContext(ctx, "matching round", "ride_id", ride.ID, "round", round, "driver_id", driver.ID, "p_accept", p, "draw", draw)
		if draw < p {
			e.accept(ctx, ride, driver)
			return
		}

		observability.DriverRejections.Inc()
		e.hub.Publish(ctx, notify.EventDriverRejected, fmt.Sprintf("Driver %s declined ride %s", driver.Name, ride.ID))
		pool = without(pool, driver.ID)
	}

	observability.NoDriverTotal.WithLabelValues(reason).Inc()
	e.logger.InfoContext(ctx, "ride left unassigned", "ride_id", ride.ID, "reason", reason)
	e.hub.Publish(ctx, notify.EventNoDriverAssigned, fmt.Sprintf("Could not assign a driver to ride %s", ride.ID))
}

func (e *Engine) accept(ctx context.Context, ride *models.Ride, driver *models.Driver) {
	ride.DriverID = driver.ID
	ride.Status = models.StatusDriverAssigned

	if ride.Mode == models.ModeCarpool {
		e.store.JoinCarpool(driver.ID, ride.ID)
		if driver.Status == models.DriverAvailable {
			driver.Status = models.DriverOnTrip
		}
	} else {
		driver.Status = models.DriverOnTrip
	}
	e.refreshDriverGauge()
	observability.MatchesTotal.Inc()

	mins := eta.EstimateMinutes(driver.Location, ride.Pickup, e.speedKmh)
	e.logger.InfoContext(ctx, "driver assigned", "ride_id", ride.ID, "driver_id", driver.ID, "mode", ride.Mode, "eta_min", mins)
	e.hub.Publish(ctx, notify.EventDriverAssigned,
		fmt.Sprintf("Driver %s assigned to ride %s, arriving in ~%d min", driver.Name, ride.ID, mins))
}

func without(pool []models.Driver, driverID string) []models.Driver {
	out := make([]models.Driver, 0, len(pool))
	for _, d := range pool {
		if d.ID != driverID {
			out = append(out, d)
		}
	}
	return out
}

func label(l models.Location) string {
	if l.Address != "" {
		return l.Address
	}
	return fmt.Sprintf("(%.4f, %.4f)", l.Lat, l.Lng)
}
