package units

import (
	"math"
	"testing"
)

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name     string
		speedMPS float64
		units    string
		expected float64
	}{
		{"10 m/s to mph", 10.0, MPH, 22.3694},
		{"10 m/s to kmph", 10.0, KMPH, 36.0},
		{"10 m/s to kph", 10.0, KPH, 36.0},
		{"10 m/s to mps", 10.0, MPS, 10.0},
		{"unknown units default to mps", 10.0, "unknown", 10.0},
		{"walking speed 1.4 m/s to mph", 1.4, MPH, 3.13172},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertSpeed(tt.speedMPS, tt.units)
			if math.Abs(result-tt.expected) > 0.01 {
				t.Errorf("ConvertSpeed(%f, %s) = %f, want %f", tt.speedMPS, tt.units, result, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		unit     string
		expected bool
	}{
		{MPS, true},
		{MPH, true},
		{KPH, true},
		{"invalid", false},
		{"", false},
		{"MPH", false},
	}

	for _, tt := range tests {
		if got := IsValid(tt.unit); got != tt.expected {
			t.Errorf("IsValid(%q) = %v, want %v", tt.unit, got, tt.expected)
		}
	}
}

func TestAngleConversion(t *testing.T) {
	tests := []struct {
		deg float64
		rad float64
	}{
		{0, 0},
		{90, math.Pi / 2},
		{180, math.Pi},
		{-45, -math.Pi / 4},
		{360, 2 * math.Pi},
	}

	for _, tt := range tests {
		if got := DegreesToRadians(tt.deg); math.Abs(got-tt.rad) > 1e-12 {
			t.Errorf("DegreesToRadians(%v) = %v, want %v", tt.deg, got, tt.rad)
		}
		if got := RadiansToDegrees(tt.rad); math.Abs(got-tt.deg) > 1e-9 {
			t.Errorf("RadiansToDegrees(%v) = %v, want %v", tt.rad, got, tt.deg)
		}
	}

	if got := ConvertAngle(math.Pi, Degrees); math.Abs(got-180) > 1e-9 {
		t.Errorf("ConvertAngle(pi, deg) = %v, want 180", got)
	}
	if got := ConvertAngle(1.5, Radians); got != 1.5 {
		t.Errorf("ConvertAngle(1.5, rad) = %v, want 1.5", got)
	}
}
