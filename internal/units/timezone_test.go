package units

import (
	"testing"
	"time"
)

func TestIsTimezoneValid(t *testing.T) {
	tests := []struct {
		timezone string
		expected bool
	}{
		{"UTC", true},
		{"Europe/London", true},
		{"Invalid/Timezone", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsTimezoneValid(tt.timezone); got != tt.expected {
			t.Errorf("IsTimezoneValid(%q) = %v, want %v", tt.timezone, got, tt.expected)
		}
	}
}

func TestConvertTime(t *testing.T) {
	utc := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	got, err := ConvertTime(utc, "")
	if err != nil || !got.Equal(utc) {
		t.Fatalf("ConvertTime(empty) = %v, %v", got, err)
	}

	got, err = ConvertTime(utc, "Europe/London")
	if err != nil {
		t.Fatalf("ConvertTime: %v", err)
	}
	if !got.Equal(utc) || got.Hour() != 13 {
		t.Errorf("London time = %v, want 13:00 BST for the same instant", got)
	}

	if _, err := ConvertTime(utc, "Nowhere/City"); err == nil {
		t.Error("expected an error for an unknown zone")
	}
}
