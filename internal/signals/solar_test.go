package signals

import (
	"math"
	"testing"
	"time"
)

func TestComputeSolar_EquatorNoonEquinox(t *testing.T) {
	// Solar noon at the prime meridian near the March equinox: the sun is
	// close to directly overhead.
	noon := time.Date(2026, 3, 21, 12, 0, 0, 0, time.UTC)
	got := ComputeSolar(0, 0, noon)
	if !got.IsDaylight {
		t.Fatal("noon at the equator reported as dark")
	}
	if got.SunElevation < 80 {
		t.Errorf("sunElevation = %v, want near 90", got.SunElevation)
	}
	if got.UVIndex != math.Min(11, got.SunElevation/8) {
		t.Errorf("uvIndex = %v, want elevation/8 capped at 11", got.UVIndex)
	}
}

func TestComputeSolar_Midnight(t *testing.T) {
	midnight := time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC)
	got := ComputeSolar(0, 0, midnight)
	if got.IsDaylight {
		t.Error("midnight at the equator reported as daylight")
	}
	if got.SunElevation >= 0 {
		t.Errorf("sunElevation = %v, want negative at midnight", got.SunElevation)
	}
	if got.UVIndex != 0 {
		t.Errorf("uvIndex = %v, want 0 below the horizon", got.UVIndex)
	}
}

func TestComputeSolar_LongitudeShiftsSolarNoon(t *testing.T) {
	// 03:00 UTC is local noon at 135 degrees east.
	at := time.Date(2026, 3, 21, 3, 0, 0, 0, time.UTC)
	east := ComputeSolar(0, 135, at)
	greenwich := ComputeSolar(0, 0, at)
	if !east.IsDaylight {
		t.Error("local noon at 135E reported as dark")
	}
	if greenwich.IsDaylight {
		t.Error("03:00 UTC at Greenwich reported as daylight")
	}
}

func TestComputeSolar_RefractionHorizon(t *testing.T) {
	// Daylight extends slightly past geometric sunset: the threshold is
	// -0.833 degrees, not zero. Scan around sunset at the equator for an
	// instant with elevation in (-0.833, 0) and confirm it counts as day.
	day := time.Date(2026, 3, 21, 17, 50, 0, 0, time.UTC)
	found := false
	for i := 0; i < 30; i++ {
		at := day.Add(time.Duration(i) * time.Minute)
		s := ComputeSolar(0, 0, at)
		if s.SunElevation < 0 && s.SunElevation > -0.833 {
			found = true
			if !s.IsDaylight {
				t.Errorf("elevation %v within refraction band reported as dark", s.SunElevation)
			}
		}
	}
	if !found {
		t.Skip("no sample landed in the refraction band")
	}
}
