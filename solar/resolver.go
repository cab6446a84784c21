// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package solar

import (
	"time"

	"github.com/jontk/ddpctl/pkg/solarcache"
)

// cachedSunTimes is the value stored in the solar cache; solarcache's
// GetValue/SetValue round-trip through encoding/gob, so fields must be
// exported and times kept in a stable location (UTC).
type cachedSunTimes struct {
	Sunrise time.Time
	Sunset  time.Time
}

// Resolver answers sunrise/sunset queries memoized by date/lat/lon, so a
// schedule engine ticking every second doesn't recompute solar position
// for every rule on every tick (spec.md §4.9).
type Resolver struct {
	cache *solarcache.Cache
}

// NewResolver creates a Resolver backed by cache. A nil cache is replaced
// by a new cache built from solarcache.DefaultConfig().
func NewResolver(cache *solarcache.Cache) *Resolver {
	if cache == nil {
		cache = solarcache.New(solarcache.DefaultConfig())
	}
	return &Resolver{cache: cache}
}

// SunTimes returns the sunrise/sunset for date/lat/lon/loc, transparently
// caching by calendar date and coordinates.
func (r *Resolver) SunTimes(date time.Time, lat, lon float64, loc *time.Location) (sunrise, sunset time.Time, err error) {
	locName := "UTC"
	if loc != nil {
		locName = loc.String()
	}
	key := solarcache.Key("sun_times", map[string]interface{}{
		"date": date.UTC().Format("2006-01-02"),
		"lat":  lat,
		"lon":  lon,
		"loc":  locName,
	})

	var cached cachedSunTimes
	if r.cache.GetValue(key, &cached) {
		return cached.Sunrise, cached.Sunset, nil
	}

	sunrise, sunset, err = SunTimes(date, lat, lon, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	r.cache.SetValue(key, cachedSunTimes{Sunrise: sunrise, Sunset: sunset})
	return sunrise, sunset, nil
}

// Holidays resolves every holiday in defs for year, skipping any that
// don't fall in that year (e.g. an absolute date or an out-of-range
// pattern occurrence).
func Holidays(defs []Holiday, year int) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(defs))
	for _, h := range defs {
		date, ok, err := h.Resolve(year)
		if err != nil {
			return nil, err
		}
		if ok {
			out[h.ID] = date
		}
	}
	return out, nil
}

// IsHoliday reports whether date (compared by calendar day) matches any
// holiday in defs for date's year.
func IsHoliday(defs []Holiday, date time.Time) (string, bool, error) {
	resolved, err := Holidays(defs, date.Year())
	if err != nil {
		return "", false, err
	}
	y, m, d := date.Date()
	for id, hd := range resolved {
		hy, hm, hdd := hd.Date()
		if hy == y && hm == m && hdd == d {
			return id, true, nil
		}
	}
	return "", false, nil
}
