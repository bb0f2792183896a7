package models

import (
	"strings"
	"time"
)

type Location struct {
	Lat     float64 `json:"lat" validate:"latitude"`
	Lng     float64 `json:"lng" validate:"longitude"`
	Address string  `json:"address,omitempty"`
}

// SameCoordinates reports whether two locations share latitude and longitude,
// ignoring the free-text address.
func (l Location) SameCoordinates(o Location) bool {
	return l.Lat == o.Lat && l.Lng == o.Lng
}

type VehicleClass string

const (
	VehicleBike         VehicleClass = "BIKE"
	VehicleSedan        VehicleClass = "SEDAN"
	VehicleSUV          VehicleClass = "SUV"
	VehicleAutoRickshaw VehicleClass = "AUTO_RICKSHAW"
)

var vehicleClassNames = map[VehicleClass]string{
	VehicleBike:         "Bike",
	VehicleSedan:        "Sedan",
	VehicleSUV:          "SUV",
	VehicleAutoRickshaw: "Auto-Rickshaw",
}

func (c VehicleClass) Valid() bool {
	_, ok := vehicleClassNames[c]
	return ok
}

// Name returns the human label shown to riders, e.g. "Auto-Rickshaw".
func (c VehicleClass) Name() string {
	if n, ok := vehicleClassNames[c]; ok {
		return n
	}
	return "Unknown"
}

// ParseVehicleClass accepts either the constant form ("AUTO_RICKSHAW") or the
// human label ("Auto-Rickshaw"), case-insensitively.
func ParseVehicleClass(s string) (VehicleClass, bool) {
	s = strings.TrimSpace(s)
	for c, name := range vehicleClassNames {
		if strings.EqualFold(s, string(c)) || strings.EqualFold(s, name) {
			return c, true
		}
	}
	return "", false
}

type Vehicle struct {
	ID       string       `json:"id"`
	Model    string       `json:"model"`
	Plate    string       `json:"plate"`
	Class    VehicleClass `json:"class"`
	Capacity int          `json:"capacity"`
}

type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

type Rider struct {
	User
	DefaultPickup Location `json:"default_pickup"`
	Rating        float64  `json:"rating"` // 0..5
}

func NewRider(id, name, contact string, defaultPickup Location) *Rider {
	return &Rider{
		User:          User{ID: id, Name: name, Contact: contact},
		DefaultPickup: defaultPickup,
		Rating:        5.0,
	}
}

type DriverStatus string

const (
	DriverAvailable DriverStatus = "AVAILABLE"
	DriverOnTrip    DriverStatus = "ON_TRIP"
	DriverOffline   DriverStatus = "OFFLINE"
)

func (s DriverStatus) Valid() bool {
	return s == DriverAvailable || s == DriverOnTrip || s == DriverOffline
}

type Driver struct {
	User
	Vehicle  Vehicle      `json:"vehicle"`
	Location Location     `json:"location"`
	Status   DriverStatus `json:"status"`
	Rating   float64      `json:"rating"` // 0..5
}

// NewDriver returns an AVAILABLE driver with a fresh 5.0 rating.
func NewDriver(id, name, contact string, vehicle Vehicle, loc Location) *Driver {
	return &Driver{
		User:     User{ID: id, Name: name, Contact: contact},
		Vehicle:  vehicle,
		Location: loc,
		Status:   DriverAvailable,
		Rating:   5.0,
	}
}

type RideMode string

const (
	ModeNormal  RideMode = "NORMAL"
	ModeCarpool RideMode = "CARPOOL"
)

func (m RideMode) Valid() bool { return m == ModeNormal || m == ModeCarpool }

type RideStatus string

const (
	StatusRequested      RideStatus = "REQUESTED"
	StatusDriverAssigned RideStatus = "DRIVER_ASSIGNED"
	StatusDriverEnroute  RideStatus = "DRIVER_ENROUTE"
	StatusInProgress     RideStatus = "IN_PROGRESS"
	StatusCompleted      RideStatus = "COMPLETED"
	StatusCancelled      RideStatus = "CANCELLED"
)

// rideTransitions is the lifecycle the engine enforces in strict mode.
var rideTransitions = map[RideStatus][]RideStatus{
	StatusRequested:      {StatusDriverAssigned, StatusCancelled},
	StatusDriverAssigned: {StatusDriverEnroute, StatusCancelled},
	StatusDriverEnroute:  {StatusInProgress, StatusCancelled},
	StatusInProgress:     {StatusCompleted, StatusCancelled},
	StatusCompleted:      {},
	StatusCancelled:      {},
}

func (s RideStatus) Valid() bool {
	_, ok := rideTransitions[s]
	return ok
}

func (s RideStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether from -> to follows the ride lifecycle.
func CanTransition(from, to RideStatus) bool {
	for _, next := range rideTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Ride references its rider and driver by id; the engine's store owns the live
// entities.
type Ride struct {
	ID           string       `json:"id"`
	RiderID      string       `json:"rider_id"`
	DriverID     string       `json:"driver_id,omitempty"`
	Pickup       Location     `json:"pickup"`
	Dropoff      Location     `json:"dropoff"`
	Mode         RideMode     `json:"mode"`
	VehicleClass VehicleClass `json:"vehicle_class"`
	Status       RideStatus   `json:"status"`
	Fare         float64      `json:"fare"`
	Distance     float64      `json:"distance_km"`
	RequestedAt  time.Time    `json:"requested_at"`
	StartedAt    time.Time    `json:"started_at,omitzero"`
	EndedAt      time.Time    `json:"ended_at,omitzero"`
}

func (r *Ride) HasDriver() bool { return r.DriverID != "" }
