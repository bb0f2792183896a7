package models

import "testing"

func TestParseVehicleClass(t *testing.T) {
	tests := []struct {
		in   string
		want VehicleClass
		ok   bool
	}{
		{"SEDAN", VehicleSedan, true},
		{"sedan", VehicleSedan, true},
		{"Auto-Rickshaw", VehicleAutoRickshaw, true},
		{" suv ", VehicleSUV, true},
		{"bike", VehicleBike, true},
		{"truck", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseVehicleClass(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseVehicleClass(%q) = %q,%v want %q,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to RideStatus
		want     bool
	}{
		{StatusRequested, StatusDriverAssigned, true},
		{StatusDriverAssigned, StatusDriverEnroute, true},
		{StatusDriverEnroute, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusRequested, StatusCancelled, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusRequested, StatusCompleted, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusRequested, false},
		{StatusDriverAssigned, StatusInProgress, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestConstructorsDefaults(t *testing.T) {
	r := NewRider("R1", "Priya", "+91-1", Location{Lat: 19.07, Lng: 72.87})
	if r.Rating != 5.0 {
		t.Fatalf("rider rating = %v, want 5", r.Rating)
	}
	d := NewDriver("D1", "Suresh", "+91-2", Vehicle{ID: "V1", Class: VehicleSedan, Capacity: 4}, Location{})
	if d.Status != DriverAvailable || d.Rating != 5.0 {
		t.Fatalf("driver defaults = %s/%v", d.Status, d.Rating)
	}
	if VehicleAutoRickshaw.Name() != "Auto-Rickshaw" || VehicleClass("X").Name() != "Unknown" {
		t.Fatal("unexpected vehicle class names")
	}
}
