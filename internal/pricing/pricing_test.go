package pricing

import (
	"errors"
	"math"
	"testing"

	apperrors "github.com/example/ride-dispatch/internal/errors"
	"github.com/example/ride-dispatch/internal/models"
)

const eps = 1e-9

func TestBaseCalculate(t *testing.T) {
	tests := []struct {
		name     string
		class    models.VehicleClass
		distance float64
		want     float64
	}{
		{"sedan zero distance", models.VehicleSedan, 0, 40},
		{"sedan 10km", models.VehicleSedan, 10, 140},
		{"bike 2km", models.VehicleBike, 2, 27},
		{"suv 5km", models.VehicleSUV, 5, 120},
		{"auto 3.5km", models.VehicleAutoRickshaw, 3.5, 53},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Base{}.Calculate(tt.distance, tt.class)
			if err != nil {
				t.Fatalf("Calculate() error = %v", err)
			}
			if math.Abs(got-tt.want) > eps {
				t.Errorf("Calculate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBaseRejectsBadInput(t *testing.T) {
	if _, err := (Base{}).Calculate(-0.1, models.VehicleSedan); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("negative distance err = %v, want ErrValidation", err)
	}
	if _, err := (Base{}).Calculate(1, models.VehicleClass("TRUCK")); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("unknown class err = %v, want ErrValidation", err)
	}
}

func TestBaseMonotonicAndFloored(t *testing.T) {
	for class, r := range rates {
		prev := 0.0
		for d := 0.0; d <= 50; d += 0.37 {
			got, err := Base{}.Calculate(d, class)
			if err != nil {
				t.Fatal(err)
			}
			if got < r.BaseFare {
				t.Fatalf("%s at %v = %v below base %v", class, d, got, r.BaseFare)
			}
			if got < prev {
				t.Fatalf("%s not monotonic at %v: %v < %v", class, d, got, prev)
			}
			prev = got
		}
	}
}

func TestSurgeThenDiscount(t *testing.T) {
	surge, err := NewSurge(Base{}, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := surge.Calculate(10, models.VehicleSedan)
	if math.Abs(got-280) > eps {
		t.Fatalf("surge fare = %v, want 280", got)
	}
	disc, err := NewDiscount(surge, 15)
	if err != nil {
		t.Fatal(err)
	}
	got, _ = disc.Calculate(10, models.VehicleSedan)
	if math.Abs(got-238) > 1e-6 {
		t.Fatalf("discounted fare = %v, want 238", got)
	}
}

func TestSurgeBounds(t *testing.T) {
	for _, f := range []float64{0, -1, 5.0001, 10} {
		if _, err := NewSurge(Base{}, f); !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("NewSurge(%v) err = %v, want ErrValidation", f, err)
		}
	}
	for _, f := range []float64{0.5, 1, 5} {
		if _, err := NewSurge(Base{}, f); err != nil {
			t.Errorf("NewSurge(%v) unexpected err = %v", f, err)
		}
	}
}

func TestDiscountBoundsAndFloor(t *testing.T) {
	for _, p := range []float64{-1, 100.5} {
		if _, err := NewDiscount(Base{}, p); !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("NewDiscount(%v) err = %v, want ErrValidation", p, err)
		}
	}
	for class, r := range rates {
		for _, p := range []float64{0, 30, 60, 90, 100} {
			d, err := NewDiscount(Base{}, p)
			if err != nil {
				t.Fatal(err)
			}
			got, _ := d.Calculate(0.5, class)
			if got < 0.5*r.BaseFare-eps {
				t.Fatalf("%s with %v%% = %v below floor", class, p, got)
			}
		}
	}
	full, _ := NewDiscount(Base{}, 100)
	got, _ := full.Calculate(10, models.VehicleSedan)
	if got != 20 {
		t.Fatalf("100%% discount fare = %v, want floor 20", got)
	}
}

func TestTollAndChain(t *testing.T) {
	if _, err := NewToll(Base{}, -5); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("negative toll err = %v", err)
	}
	c, err := Chain(Base{}, WithSurge(1.5), WithToll(20), WithDiscount(10))
	if err != nil {
		t.Fatal(err)
	}
	// ((40 + 10*10) * 1.5 + 20) * 0.9 = 207
	got, _ := c.Calculate(10, models.VehicleSedan)
	if math.Abs(got-207) > 1e-6 {
		t.Fatalf("chained fare = %v, want 207", got)
	}
	if _, err := Chain(Base{}, WithSurge(9)); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("Chain with bad surge err = %v", err)
	}
}

func TestModifierPropagatesInnerError(t *testing.T) {
	s, _ := NewSurge(Base{}, 2)
	if _, err := s.Calculate(-1, models.VehicleSedan); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestConfigured(t *testing.T) {
	plain, err := Configured(1, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := plain.(Base); !ok {
		t.Fatalf("neutral settings should give the base calculator, got %T", plain)
	}
	surge, err := Configured(2, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := surge.Calculate(10, models.VehicleSedan); got != 280 {
		t.Fatalf("surge fare = %v, want 280", got)
	}
	if _, err := Configured(1, 150, 0); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("discount 150 err = %v", err)
	}
}
