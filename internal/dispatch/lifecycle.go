package dispatch

import (
	"context"
	"fmt"

	apperrors "github.com/example/ride-dispatch/internal/errors"
	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/notify"
	"github.com/example/ride-dispatch/internal/observability"
)

var statusMessages = map[models.RideStatus]string{
	models.StatusRequested:      "Ride has been requested",
	models.StatusDriverAssigned: "Driver has been assigned to the ride",
	models.StatusDriverEnroute:  "Driver is on the way to pickup location",
	models.StatusInProgress:     "Ride has started",
	models.StatusCompleted:      "Ride completed successfully",
	models.StatusCancelled:      "Ride has been cancelled",
}

// UpdateRideStatus moves a ride to status and runs its side effects:
// IN_PROGRESS stamps the start, COMPLETED stamps the end and settles the fare,
// CANCELLED frees the driver.
func (e *Engine) UpdateRideStatus(ctx context.Context, rideID string, status models.RideStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown ride status %q", apperrors.ErrValidation, status)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ride, ok := e.store.Ride(rideID)
	if !ok {
		return fmt.Errorf("%w: ride %s", apperrors.ErrNotFound, rideID)
	}
	if e.strict && !models.CanTransition(ride.Status, status) {
		return fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, ride.Status, status)
	}

	prev := ride.Status
	ride.Status = status
	switch status {
	case models.StatusInProgress:
		ride.StartedAt = e.now()
	case models.StatusCompleted:
		// fare and distance are settled once; a repeated COMPLETED only re-announces
		if ride.EndedAt.IsZero() {
			ride.EndedAt = e.now()
			// a cancelled ride already gave its driver back
			e.settle(ctx, rideID, prev != models.StatusCancelled)
		}
	case models.StatusCancelled:
		if ride.HasDriver() && !prev.Terminal() {
			e.releaseDriver(ride)
		}
	}

	e.hub.Publish(ctx, notify.EventRideStatusUpdate, fmt.Sprintf("Ride %s: %s", ride.ID, statusMessages[status]))
	return nil
}

func (e *Engine) settle(ctx context.Context, rideID string, release bool) {
	ride, ok := e.store.Ride(rideID)
	if !ok {
		return
	}

	ride.Distance = geo.PlanarKm(ride.Pickup, ride.Dropoff)
	fare, err := e.calc.Calculate(ride.Distance, ride.VehicleClass)
	if err != nil {
		e.logger.ErrorContext(ctx, "fare calculation failed", "ride_id", ride.ID, "error", err)
		if release && ride.HasDriver() {
			e.releaseDriver(ride)
		}
		return
	}
	if ride.Mode == models.ModeCarpool {
		fare *= carpoolFareFactor
	}
	ride.Fare = fare

	if release && ride.HasDriver() {
		e.releaseDriver(ride)
	}

	observability.RidesCompleted.WithLabelValues(string(ride.Mode)).Inc()
	observability.FareAmount.Observe(fare)
	e.logger.InfoContext(ctx, "ride settled", "ride_id", ride.ID, "distance_km", ride.Distance, "fare", fare)
	e.hub.Publish(ctx, notify.EventPaymentCompleted, fmt.Sprintf("Payment of Rs.%.2f completed for ride %s", fare, ride.ID))
}

// releaseDriver frees the ride's driver. A carpool driver stays ON_TRIP while
// other rides remain in the group.
func (e *Engine) releaseDriver(ride *models.Ride) {
	driver, ok := e.store.Driver(ride.DriverID)
	if !ok {
		return
	}
	if ride.Mode == models.ModeCarpool {
		if _, remaining := e.store.LeaveCarpool(driver.ID, ride.ID); remaining == 0 {
			driver.Status = models.DriverAvailable
		}
	} else {
		driver.Status = models.DriverAvailable
	}
	e.refreshDriverGauge()
}

func (e *Engine) GetRide(rideID string) (models.Ride, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.store.Ride(rideID)
	if !ok {
		return models.Ride{}, false
	}
	return *r, true
}

// ListRides returns ride snapshots in creation order.
func (e *Engine) ListRides() []models.Ride {
	e.mu.Lock()
	defer e.mu.Unlock()
	rides := e.store.Rides()
	out := make([]models.Ride, 0, len(rides))
	for _, r := range rides {
		out = append(out, *r)
	}
	return out
}

func (e *Engine) GetRider(riderID string) (models.Rider, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.store.Rider(riderID)
	if !ok {
		return models.Rider{}, false
	}
	return *r, true
}

func (e *Engine) GetDriver(driverID string) (models.Driver, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.store.Driver(driverID)
	if !ok {
		return models.Driver{}, false
	}
	return *d, true
}

// GetAvailableDrivers snapshots AVAILABLE drivers in registration order.
func (e *Engine) GetAvailableDrivers() []models.Driver {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []models.Driver
	for _, d := range e.store.Drivers() {
		if d.Status == models.DriverAvailable {
			out = append(out, *d)
		}
	}
	return out
}

// CarpoolCount is the number of active carpool rides on a driver.
func (e *Engine) CarpoolCount(driverID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.CarpoolSize(driverID)
}

type SystemStatus struct {
	TotalRiders      int                       `json:"total_riders"`
	TotalDrivers     int                       `json:"total_drivers"`
	AvailableDrivers int                       `json:"available_drivers"`
	OnTripDrivers    int                       `json:"on_trip_drivers"`
	OfflineDrivers   int                       `json:"offline_drivers"`
	TotalRides       int                       `json:"total_rides"`
	RidesByStatus    map[models.RideStatus]int `json:"rides_by_status"`
	CarpoolGroups    int                       `json:"active_carpool_groups"`
	MatchingPolicy   string                    `json:"matching_policy"`
}

func (e *Engine) GetSystemStatus() SystemStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := SystemStatus{
		TotalRiders:    e.store.RiderCount(),
		RidesByStatus:  make(map[models.RideStatus]int),
		CarpoolGroups:  e.store.CarpoolGroups(),
		MatchingPolicy: e.policy.Name(),
	}
	for _, d := range e.store.Drivers() {
		s.TotalDrivers++
		switch d.Status {
		case models.DriverAvailable:
			s.AvailableDrivers++
		case models.DriverOnTrip:
			s.OnTripDrivers++
		case models.DriverOffline:
			s.OfflineDrivers++
		}
	}
	for _, r := range e.store.Rides() {
		s.TotalRides++
		s.RidesByStatus[r.Status]++
	}
	return s
}

func recordDriverCounts(counts map[models.DriverStatus]int) {
	for _, st := range []models.DriverStatus{models.DriverAvailable, models.DriverOnTrip, models.DriverOffline} {
		observability.DriversByStatus.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
}
