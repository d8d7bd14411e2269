package validation

import (
	"errors"
	"testing"
)

func TestParseCoordinates_Defaults(t *testing.T) {
	lat, lng, err := ParseCoordinates("", "", 19.4326, -99.1332)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lat != 19.4326 || lng != -99.1332 {
		t.Errorf("got (%v, %v), want defaults (19.4326, -99.1332)", lat, lng)
	}
}

func TestParseCoordinates_Valid(t *testing.T) {
	tests := []struct {
		name    string
		latStr  string
		lngStr  string
		wantLat float64
		wantLng float64
	}{
		{"madrid", "40.4168", "-3.7038", 40.4168, -3.7038},
		{"zero zero", "0", "0", 0, 0},
		{"lat boundary north", "90", "0", 90, 0},
		{"lat boundary south", "-90", "0", -90, 0},
		{"lng boundary east", "0", "180", 0, 180},
		{"lng boundary west", "0", "-180", 0, -180},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lat, lng, err := ParseCoordinates(tc.latStr, tc.lngStr, 19.4326, -99.1332)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if lat != tc.wantLat || lng != tc.wantLng {
				t.Errorf("got (%v, %v), want (%v, %v)", lat, lng, tc.wantLat, tc.wantLng)
			}
		})
	}
}

func TestParseCoordinates_NotANumber(t *testing.T) {
	tests := []struct {
		name   string
		latStr string
		lngStr string
	}{
		{"garbage lat", "abc", "0"},
		{"garbage lng", "0", "xyz"},
		{"partial number", "12.3.4", "0"},
		{"nan lat", "NaN", "0"},
		{"nan lng", "0", "nan"},
		{"positive infinity lat", "+Inf", "0"},
		{"negative infinity lng", "0", "-Infinity"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ParseCoordinates(tc.latStr, tc.lngStr, 19.4326, -99.1332)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrNotANumber) {
				t.Errorf("error = %v, want ErrNotANumber", err)
			}
		})
	}
}

func TestParseCoordinates_OutOfRange(t *testing.T) {
	tests := []struct {
		name    string
		latStr  string
		lngStr  string
		wantErr error
	}{
		{"lat too far north", "90.001", "0", ErrLatOutOfRange},
		{"lat too far south", "-91", "0", ErrLatOutOfRange},
		{"lng too far east", "0", "180.5", ErrLngOutOfRange},
		{"lng too far west", "0", "-181", ErrLngOutOfRange},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ParseCoordinates(tc.latStr, tc.lngStr, 19.4326, -99.1332)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}
