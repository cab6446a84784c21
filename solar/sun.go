// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package solar

import (
	"fmt"
	"math"
	"time"
)

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)

// julianDay converts a calendar date (UTC) to its Julian Day number,
// using the Meeus algorithm (Astronomical Algorithms, ch. 7).
func julianDay(t time.Time) float64 {
	t = t.UTC()
	year, month := t.Year(), int(t.Month())
	day := float64(t.Day()) + (float64(t.Hour())+float64(t.Minute())/60+float64(t.Second())/3600)/24

	if month <= 2 {
		year--
		month += 12
	}
	a := year / 100
	b := 2 - a + a/4
	return math.Floor(365.25*float64(year+4716)) + math.Floor(30.6001*float64(month+1)) + day + float64(b) - 1524.5
}

// fromJulianDay is the inverse of julianDay, returning a UTC time.
func fromJulianDay(jd float64) time.Time {
	jd += 0.5
	z := math.Floor(jd)
	f := jd - z

	var a float64
	if z < 2299161 {
		a = z
	} else {
		alpha := math.Floor((z - 1867216.25) / 36524.25)
		a = z + 1 + alpha - math.Floor(alpha/4)
	}
	b := a + 1524
	c := math.Floor((b - 122.1) / 365.25)
	d := math.Floor(365.25 * c)
	e := math.Floor((b - d) / 30.6001)

	dayFrac := b - d - math.Floor(30.6001*e) + f
	day := math.Floor(dayFrac)
	hoursFrac := (dayFrac - day) * 24
	hour := math.Floor(hoursFrac)
	minutesFrac := (hoursFrac - hour) * 60
	minute := math.Floor(minutesFrac)
	second := math.Round((minutesFrac - minute) * 60)

	var month float64
	if e < 14 {
		month = e - 1
	} else {
		month = e - 13
	}
	var year float64
	if month > 2 {
		year = c - 4716
	} else {
		year = c - 4715
	}

	return time.Date(int(year), time.Month(int(month)), int(day), int(hour), int(minute), int(second), 0, time.UTC)
}

// SunTimes computes sunrise and sunset for date (any time-of-day
// component is ignored; only its UTC calendar date is used), at the
// given latitude/longitude in degrees, using the Wikipedia "Sunrise
// equation" (NOAA/SPA-derived, public domain), accurate to roughly one
// minute. result times are in loc.
func SunTimes(date time.Time, lat, lon float64, loc *time.Location) (sunrise, sunset time.Time, err error) {
	if loc == nil {
		loc = time.UTC
	}

	y, m, d := date.UTC().Date()
	noon := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	jd := julianDay(noon)

	// Current Julian cycle since J2000.0 epoch (JD 2451545.0). The
	// equation takes longitude west-positive; lon is east-positive.
	nStar := jd - 2451545.0009 + lon/360
	n := math.Round(nStar)

	// Mean solar noon and solar mean anomaly.
	jStar := 2451545.0009 - lon/360 + n
	meanAnomaly := math.Mod(357.5291+0.98560028*(jStar-2451545.0), 360)
	if meanAnomaly < 0 {
		meanAnomaly += 360
	}
	mRad := meanAnomaly * degToRad

	// Equation of center.
	center := 1.9148*math.Sin(mRad) + 0.0200*math.Sin(2*mRad) + 0.0003*math.Sin(3*mRad)

	// Ecliptic longitude.
	lambda := math.Mod(meanAnomaly+center+180+102.9372, 360)
	lambdaRad := lambda * degToRad

	// Solar transit (true solar noon, in Julian Days).
	jTransit := jStar + 0.0053*math.Sin(mRad) - 0.0069*math.Sin(2*lambdaRad)

	// Declination of the sun.
	sinDelta := math.Sin(lambdaRad) * math.Sin(23.4397*degToRad)
	delta := math.Asin(sinDelta)

	latRad := lat * degToRad
	cosOmega := (math.Sin(-0.833*degToRad) - math.Sin(latRad)*sinDelta) / (math.Cos(latRad) * math.Cos(delta))
	if cosOmega < -1 || cosOmega > 1 {
		return time.Time{}, time.Time{}, errPolarDayOrNight(lat, date)
	}
	omega := math.Acos(cosOmega) * radToDeg

	jRise := jTransit - omega/360
	jSet := jTransit + omega/360

	sunrise = fromJulianDay(jRise).In(loc)
	sunset = fromJulianDay(jSet).In(loc)
	return sunrise, sunset, nil
}

func errPolarDayOrNight(lat float64, date time.Time) error {
	return &PolarError{Latitude: lat, Date: date}
}

// PolarError is returned by SunTimes when the sun never rises or sets
// on the given date at the given latitude.
type PolarError struct {
	Latitude float64
	Date     time.Time
}

func (e *PolarError) Error() string {
	return fmt.Sprintf("solar: sun does not rise or set at latitude %.4f on %s", e.Latitude, e.Date.Format("2006-01-02"))
}
