package physics

import (
	"math"
	"testing"
)

func TestHaversineOneDegreeOfLatitude(t *testing.T) {
	got := Haversine(50, 8, 51, 8)
	if math.Abs(got-60.04) > 0.1 {
		t.Fatalf("expected ~60 NM, got %f", got)
	}
}

func TestBearing(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
	}{
		{"north", 50, 8, 51, 8, 0},
		{"east on the equator", 0, 10, 0, 11, 90},
		{"south", 50, 8, 49, 8, 180},
		{"west on the equator", 0, 10, 0, 9, 270},
	}
	for _, tt := range tests {
		if got := Bearing(tt.lat1, tt.lon1, tt.lat2, tt.lon2); math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("%s: Bearing = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNormalizeHeading(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{360, 0},
		{-10, 350},
		{725, 5},
	}
	for _, tt := range tests {
		if got := NormalizeHeading(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalizeHeading(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
