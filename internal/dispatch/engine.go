package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/eta"
	apperrors "github.com/example/ride-dispatch/internal/errors"
	"github.com/example/ride-dispatch/internal/matcher"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/notify"
	"github.com/example/ride-dispatch/internal/pricing"
	"github.com/example/ride-dispatch/internal/storage"
)

const (
	// MaxAssignRounds bounds how many drivers are offered a single request.
	MaxAssignRounds = 3

	baseAcceptance    = 0.85
	acceptanceStep    = 0.10
	carpoolFareFactor = 0.8
)

// Rand is the acceptance draw source; Float64 returns a value in [0, 1).
type Rand interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// AcceptanceProbability is the chance a driver takes the offer in round
// (0-based): 85%, 75%, 65%.
func AcceptanceProbability(round int) float64 {
	return baseAcceptance - acceptanceStep*float64(round)
}

type Option func(*Engine)

func WithPolicy(p matcher.Policy) Option { return func(e *Engine) { e.policy = p } }

func WithCalculator(c pricing.Calculator) Option { return func(e *Engine) { e.calc = c } }

func WithRand(r Rand) Option { return func(e *Engine) { e.rand = r } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithStrictTransitions rejects status updates that skip the ride lifecycle.
// The default is permissive: any status may follow any other.
func WithStrictTransitions(strict bool) Option { return func(e *Engine) { e.strict = strict } }

func WithSpeedKmh(v float64) Option { return func(e *Engine) { e.speedKmh = v } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// Engine is the dispatch core. Every public operation holds one mutex from
// start to finish, notification fan-out included, so operations never
// interleave. Observers must not call back into the engine.
type Engine struct {
	mu       sync.Mutex
	store    *storage.MemoryStore
	hub      *notify.Hub
	policy   matcher.Policy
	calc     pricing.Calculator
	rand     Rand
	rideSeq  int
	strict   bool
	speedKmh float64
	now      func() time.Time
	logger   *slog.Logger
}

func New(hub *notify.Hub, opts ...Option) *Engine {
	e := &Engine{
		store:    storage.NewMemoryStore(),
		policy:   matcher.Nearest{},
		calc:     pricing.Base{},
		rand:     globalRand{},
		speedKmh: eta.DefaultSpeedKmh,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	if hub == nil {
		hub = notify.NewHub(e.logger, notify.DefaultTimeout)
	}
	e.hub = hub
	return e
}

// Hub exposes the fan-out so callers can subscribe renderers.
func (e *Engine) Hub() *notify.Hub { return e.hub }

func (e *Engine) SetPolicy(p matcher.Policy) error {
	if p == nil {
		return fmt.Errorf("%w: nil matching policy", apperrors.ErrValidation)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = p
	return nil
}

func (e *Engine) PolicyName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy.Name()
}

func (e *Engine) SetCalculator(c pricing.Calculator) error {
	if c == nil {
		return fmt.Errorf("%w: nil fare calculator", apperrors.ErrValidation)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calc = c
	return nil
}

func (e *Engine) RegisterRider(ctx context.Context, r *models.Rider) error {
	if r == nil || strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: rider must have an id", apperrors.ErrValidation)
	}
	cp := *r
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.PutRider(&cp)
	e.hub.Publish(ctx, notify.EventUserRegistered, fmt.Sprintf("Rider %s (%s) registered", cp.Name, cp.ID))
	return nil
}

func (e *Engine) RegisterDriver(ctx context.Context, d *models.Driver) error {
	if d == nil || strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: driver must have an id", apperrors.ErrValidation)
	}
	if !d.Vehicle.Class.Valid() {
		return fmt.Errorf("%w: unknown vehicle class %q", apperrors.ErrValidation, d.Vehicle.Class)
	}
	if d.Vehicle.Capacity <= 0 {
		return fmt.Errorf("%w: vehicle capacity must be positive, got %d", apperrors.ErrValidation, d.Vehicle.Capacity)
	}
	cp := *d
	if cp.Status == "" {
		cp.Status = models.DriverAvailable
	}
	if !cp.Status.Valid() {
		return fmt.Errorf("%w: unknown driver status %q", apperrors.ErrValidation, cp.Status)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if n := e.store.CarpoolSize(cp.ID); n > cp.Vehicle.Capacity {
		return fmt.Errorf("%w: driver %s has %d active carpool rides, capacity %d is too small",
			apperrors.ErrValidation, cp.ID, n, cp.Vehicle.Capacity)
	}
	// identity fields are overwritten; a driver mid-trip keeps its live status
	if prev, ok := e.store.Driver(cp.ID); ok && e.hasActiveRide(cp.ID) {
		cp.Status = prev.Status
	}
	e.store.PutDriver(&cp)
	e.refreshDriverGauge()
	e.hub.Publish(ctx, notify.EventUserRegistered,
		fmt.Sprintf("Driver %s (%s) registered with %s %s", cp.Name, cp.ID, cp.Vehicle.Class.Name(), cp.Vehicle.Plate))
	return nil
}

func (e *Engine) hasActiveRide(driverID string) bool {
	if e.store.CarpoolSize(driverID) > 0 {
		return true
	}
	for _, r := range e.store.Rides() {
		if r.DriverID == driverID && !r.Status.Terminal() {
			return true
		}
	}
	return false
}

// UpdateDriverLocation moves a driver; used by location pings.
func (e *Engine) UpdateDriverLocation(ctx context.Context, driverID string, loc models.Location) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.store.Driver(driverID)
	if !ok {
		return fmt.Errorf("%w: driver %s", apperrors.ErrNotFound, driverID)
	}
	d.Location = loc
	return nil
}

// SetDriverStatus lets drivers go online/offline from outside the ride flow.
func (e *Engine) SetDriverStatus(ctx context.Context, driverID string, status models.DriverStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown driver status %q", apperrors.ErrValidation, status)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.store.Driver(driverID)
	if !ok {
		return fmt.Errorf("%w: driver %s", apperrors.ErrNotFound, driverID)
	}
	d.Status = status
	e.refreshDriverGauge()
	return nil
}

func (e *Engine) refreshDriverGauge() {
	counts := map[models.DriverStatus]int{}
	for _, d := range e.store.Drivers() {
		counts[d.Status]++
	}
	recordDriverCounts(counts)
}
