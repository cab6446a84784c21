// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package solar

import (
	"math"
	"testing"
	"time"
)

// TestSunTimes_NewYorkEquinox checks sunrise/sunset for New York City
// around the 2026 spring equinox, where day and night are close to
// equal length and published almanac values are well known: sunrise
// approximately 06:59 EDT, sunset approximately 19:09 EDT.
func TestSunTimes_NewYorkEquinox(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	date := time.Date(2026, 3, 20, 0, 0, 0, 0, loc)
	sunrise, sunset, err := SunTimes(date, 40.7128, -74.0060, loc)
	if err != nil {
		t.Fatal(err)
	}

	wantRise := time.Date(2026, 3, 20, 6, 59, 0, 0, loc)
	wantSet := time.Date(2026, 3, 20, 19, 9, 0, 0, loc)

	if diff := absDuration(sunrise.Sub(wantRise)); diff > 5*time.Minute {
		t.Fatalf("sunrise = %v, want within 5m of %v (diff %v)", sunrise, wantRise, diff)
	}
	if diff := absDuration(sunset.Sub(wantSet)); diff > 5*time.Minute {
		t.Fatalf("sunset = %v, want within 5m of %v (diff %v)", sunset, wantSet, diff)
	}
	if !sunrise.Before(sunset) {
		t.Fatalf("sunrise %v should precede sunset %v", sunrise, sunset)
	}
}

func TestSunTimes_PolarNightReturnsError(t *testing.T) {
	// Above the Arctic Circle in midwinter, the sun never rises.
	_, _, err := SunTimes(time.Date(2026, 12, 21, 0, 0, 0, 0, time.UTC), 78.2232, 15.6267, time.UTC)
	if err == nil {
		t.Fatal("expected polar night error")
	}
	var polarErr *PolarError
	if !asPolarError(err, &polarErr) {
		t.Fatalf("expected *PolarError, got %T", err)
	}
}

func asPolarError(err error, target **PolarError) bool {
	pe, ok := err.(*PolarError)
	if !ok {
		return false
	}
	*target = pe
	return true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func TestJulianDay_RoundTrip(t *testing.T) {
	in := time.Date(2026, 7, 31, 15, 30, 0, 0, time.UTC)
	jd := julianDay(in)
	out := fromJulianDay(jd)
	if math.Abs(out.Sub(in).Seconds()) > 1 {
		t.Fatalf("round trip mismatch: got %v, want %v", out, in)
	}
}
