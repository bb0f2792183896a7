package pricing

import (
	"fmt"

	apperrors "github.com/example/ride-dispatch/internal/errors"
	"github.com/example/ride-dispatch/internal/models"
)

// Rate holds the flat base fare and per-km rate for a vehicle class.
type Rate struct {
	BaseFare  float64
	PerKmRate float64
}

var rates = map[models.VehicleClass]Rate{
	models.VehicleBike:         {BaseFare: 15, PerKmRate: 6},
	models.VehicleSedan:        {BaseFare: 40, PerKmRate: 10},
	models.VehicleSUV:          {BaseFare: 60, PerKmRate: 12},
	models.VehicleAutoRickshaw: {BaseFare: 25, PerKmRate: 8},
}

const (
	MaxSurge          = 5.0
	discountFloorPart = 0.5
)

// RateFor returns the rate card for class.
func RateFor(class models.VehicleClass) (Rate, error) {
	r, ok := rates[class]
	if !ok {
		return Rate{}, fmt.Errorf("%w: unknown vehicle class %q", apperrors.ErrValidation, class)
	}
	return r, nil
}

// Calculator turns a trip distance into a fare for a vehicle class.
type Calculator interface {
	Calculate(distanceKm float64, class models.VehicleClass) (float64, error)
}

// Base applies the rate card: baseFare + distance*perKm, never below baseFare.
type Base struct{}

func (Base) Calculate(distanceKm float64, class models.VehicleClass) (float64, error) {
	if distanceKm < 0 {
		return 0, fmt.Errorf("%w: negative distance %v", apperrors.ErrValidation, distanceKm)
	}
	r, err := RateFor(class)
	if err != nil {
		return 0, err
	}
	fare := r.BaseFare + distanceKm*r.PerKmRate
	if fare < r.BaseFare {
		fare = r.BaseFare
	}
	return fare, nil
}

// Surge multiplies the inner fare by a factor in (0, MaxSurge].
type Surge struct {
	inner  Calculator
	factor float64
}

func NewSurge(inner Calculator, factor float64) (*Surge, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: surge needs an inner calculator", apperrors.ErrValidation)
	}
	if factor <= 0 || factor > MaxSurge {
		return nil, fmt.Errorf("%w: surge factor %v outside (0, %v]", apperrors.ErrValidation, factor, MaxSurge)
	}
	return &Surge{inner: inner, factor: factor}, nil
}

func (s *Surge) Calculate(distanceKm float64, class models.VehicleClass) (float64, error) {
	fare, err := s.inner.Calculate(distanceKm, class)
	if err != nil {
		return 0, err
	}
	return fare * s.factor, nil
}

// Discount takes pct percent off the inner fare. The result never drops below
// half the class base fare.
type Discount struct {
	inner Calculator
	pct   float64
}

func NewDiscount(inner Calculator, pct float64) (*Discount, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: discount needs an inner calculator", apperrors.ErrValidation)
	}
	if pct < 0 || pct > 100 {
		return nil, fmt.Errorf("%w: discount %v%% outside [0, 100]", apperrors.ErrValidation, pct)
	}
	return &Discount{inner: inner, pct: pct}, nil
}

func (d *Discount) Calculate(distanceKm float64, class models.VehicleClass) (float64, error) {
	fare, err := d.inner.Calculate(distanceKm, class)
	if err != nil {
		return 0, err
	}
	r, err := RateFor(class)
	if err != nil {
		return 0, err
	}
	fare *= 1 - d.pct/100
	if floor := r.BaseFare * discountFloorPart; fare < floor {
		fare = floor
	}
	return fare, nil
}

// Toll adds a fixed surcharge.
type Toll struct {
	inner  Calculator
	amount float64
}

func NewToll(inner Calculator, amount float64) (*Toll, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: toll needs an inner calculator", apperrors.ErrValidation)
	}
	if amount < 0 {
		return nil, fmt.Errorf("%w: negative toll %v", apperrors.ErrValidation, amount)
	}
	return &Toll{inner: inner, amount: amount}, nil
}

func (t *Toll) Calculate(distanceKm float64, class models.VehicleClass) (float64, error) {
	fare, err := t.inner.Calculate(distanceKm, class)
	if err != nil {
		return 0, err
	}
	return fare + t.amount, nil
}

// Modifier wraps a calculator. Chain applies modifiers in order, so the last
// one sees the fare produced by all the others.
type Modifier func(Calculator) (Calculator, error)

func WithSurge(factor float64) Modifier {
	return func(c Calculator) (Calculator, error) { return NewSurge(c, factor) }
}

func WithDiscount(pct float64) Modifier {
	return func(c Calculator) (Calculator, error) { return NewDiscount(c, pct) }
}

func WithToll(amount float64) Modifier {
	return func(c Calculator) (Calculator, error) { return NewToll(c, amount) }
}

func Chain(base Calculator, mods ...Modifier) (Calculator, error) {
	c := base
	for _, m := range mods {
		next, err := m(c)
		if err != nil {
			return nil, err
		}
		c = next
	}
	return c, nil
}

// Configured stacks surge, discount and toll over the base rate card in that
// order. Neutral values (surge 0 or 1, zero discount, zero toll) are skipped.
func Configured(surge, discountPct, toll float64) (Calculator, error) {
	var mods []Modifier
	if surge != 0 && surge != 1 {
		mods = append(mods, WithSurge(surge))
	}
	if discountPct != 0 {
		mods = append(mods, WithDiscount(discountPct))
	}
	if toll != 0 {
		mods = append(mods, WithToll(toll))
	}
	return Chain(Base{}, mods...)
}
