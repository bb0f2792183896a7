package storage

import "github.com/example/ride-dispatch/internal/models"

// MemoryStore owns every live entity for the process lifetime. It does no
// locking of its own; the dispatch engine serialises access.
type MemoryStore struct {
	riders      map[string]*models.Rider
	drivers     map[string]*models.Driver
	driverOrder []string
	rides       map[string]*models.Ride
	rideOrder   []string
	// carpools maps driver id -> ids of active carpool rides, in join order.
	carpools map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		riders:   make(map[string]*models.Rider),
		drivers:  make(map[string]*models.Driver),
		rides:    make(map[string]*models.Ride),
		carpools: make(map[string][]string),
	}
}

// PutRider inserts or overwrites by id.
func (m *MemoryStore) PutRider(r *models.Rider) {
	m.riders[r.ID] = r
}

func (m *MemoryStore) Rider(id string) (*models.Rider, bool) {
	r, ok := m.riders[id]
	return r, ok
}

func (m *MemoryStore) RiderCount() int { return len(m.riders) }

// PutDriver inserts or overwrites by id. An overwritten driver keeps its
// original position in Drivers().
func (m *MemoryStore) PutDriver(d *models.Driver) {
	if _, exists := m.drivers[d.ID]; !exists {
		m.driverOrder = append(m.driverOrder, d.ID)
	}
	m.drivers[d.ID] = d
}

func (m *MemoryStore) Driver(id string) (*models.Driver, bool) {
	d, ok := m.drivers[id]
	return d, ok
}

// Drivers returns live drivers in registration order.
func (m *MemoryStore) Drivers() []*models.Driver {
	out := make([]*models.Driver, 0, len(m.driverOrder))
	for _, id := range m.driverOrder {
		out = append(out, m.drivers[id])
	}
	return out
}

func (m *MemoryStore) SaveRide(r *models.Ride) {
	if _, exists := m.rides[r.ID]; !exists {
		m.rideOrder = append(m.rideOrder, r.ID)
	}
	m.rides[r.ID] = r
}

func (m *MemoryStore) Ride(id string) (*models.Ride, bool) {
	r, ok := m.rides[id]
	return r, ok
}

// Rides returns live rides in creation order.
func (m *MemoryStore) Rides() []*models.Ride {
	out := make([]*models.Ride, 0, len(m.rideOrder))
	for _, id := range m.rideOrder {
		out = append(out, m.rides[id])
	}
	return out
}

func (m *MemoryStore) JoinCarpool(driverID, rideID string) {
	m.carpools[driverID] = append(m.carpools[driverID], rideID)
}

// LeaveCarpool removes rideID from the driver's group and reports whether it
// was present plus how many rides remain.
func (m *MemoryStore) LeaveCarpool(driverID, rideID string) (removed bool, remaining int) {
	group := m.carpools[driverID]
	for i, id := range group {
		if id == rideID {
			group = append(group[:i], group[i+1:]...)
			removed = true
			break
		}
	}
	if len(group) == 0 {
		delete(m.carpools, driverID)
		return removed, 0
	}
	m.carpools[driverID] = group
	return removed, len(group)
}

func (m *MemoryStore) CarpoolSize(driverID string) int { return len(m.carpools[driverID]) }

// CarpoolGroups counts drivers with at least one active carpool ride.
func (m *MemoryStore) CarpoolGroups() int { return len(m.carpools) }
