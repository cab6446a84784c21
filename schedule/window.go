// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package schedule

import (
	"fmt"
	"time"

	"github.com/jontk/ddpctl/solar"
)

// matchesDayFilter reports whether today satisfies a rule's
// daysOfWeek/dates constraints (spec.md §4.8 step 1).
func matchesDayFilter(r Rule, today time.Time) bool {
	if len(r.DaysOfWeek) > 0 {
		match := false
		for _, wd := range r.DaysOfWeek {
			if wd == today.Weekday() {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	if len(r.Dates) > 0 {
		ds := today.Format("2006-01-02")
		match := false
		for _, d := range r.Dates {
			if d == ds {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}

// matchesHolidayFilter reports whether today passes a rule's holiday
// filter (spec.md §4.8 step 2).
func matchesHolidayFilter(r Rule, today time.Time, holidays []solar.Holiday) (bool, error) {
	hf := r.Holiday
	if !hf.SkipOnHolidays && !hf.OnHolidaysOnly {
		return true, nil
	}

	filtered := holidays
	if len(hf.SelectedHolidayIDs) > 0 {
		allowed := make(map[string]struct{}, len(hf.SelectedHolidayIDs))
		for _, id := range hf.SelectedHolidayIDs {
			allowed[id] = struct{}{}
		}
		filtered = nil
		for _, h := range holidays {
			if _, ok := allowed[h.ID]; ok {
				filtered = append(filtered, h)
			}
		}
	}

	inWindow, err := dateNearAnyHoliday(filtered, today, hf.DaysBeforeHoliday, hf.DaysAfterHoliday)
	if err != nil {
		return false, err
	}

	if hf.SkipOnHolidays && inWindow {
		return false, nil
	}
	if hf.OnHolidaysOnly && !inWindow {
		return false, nil
	}
	return true, nil
}

// dateNearAnyHoliday reports whether today falls within
// [holiday-daysBefore, holiday+daysAfter] for any holiday in defs,
// across today's year and the adjacent years (a window can straddle a
// year boundary, e.g. days after a Dec 31 holiday).
func dateNearAnyHoliday(defs []solar.Holiday, today time.Time, daysBefore, daysAfter int) (bool, error) {
	y, m, d := today.Date()
	todayMidnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	for _, year := range []int{today.Year() - 1, today.Year(), today.Year() + 1} {
		resolved, err := solar.Holidays(defs, year)
		if err != nil {
			return false, err
		}
		for _, hd := range resolved {
			windowStart := hd.AddDate(0, 0, -daysBefore)
			windowEnd := hd.AddDate(0, 0, daysAfter)
			if !todayMidnight.Before(windowStart) && !todayMidnight.After(windowEnd) {
				return true, nil
			}
		}
	}
	return false, nil
}

// resolveBoundary computes the absolute time a BoundarySpec refers to
// on the given calendar day.
func resolveBoundary(spec BoundarySpec, day time.Time, lat, lon float64, loc *time.Location, sun *solar.Resolver) (time.Time, error) {
	switch spec.Kind {
	case SpecTimeOfDay:
		var hh, mm int
		if _, err := fmt.Sscanf(spec.HourMinute, "%d:%d", &hh, &mm); err != nil {
			return time.Time{}, fmt.Errorf("schedule: invalid time-of-day %q: %w", spec.HourMinute, err)
		}
		y, m, d := day.In(loc).Date()
		return time.Date(y, m, d, hh, mm, 0, 0, loc), nil

	case SpecSunrise:
		sunrise, _, err := sun.SunTimes(day, lat, lon, loc)
		if err != nil {
			return time.Time{}, err
		}
		return sunrise.Add(time.Duration(spec.OffsetMinutes) * time.Minute), nil

	case SpecSunset:
		_, sunset, err := sun.SunTimes(day, lat, lon, loc)
		if err != nil {
			return time.Time{}, err
		}
		return sunset.Add(time.Duration(spec.OffsetMinutes) * time.Minute), nil

	default:
		return time.Time{}, fmt.Errorf("schedule: unknown boundary spec kind %q", spec.Kind)
	}
}

// computeWindow computes a rule's [start, end) activation window for
// the given day, in the rule's time zone (spec.md §4.8 step 3).
func computeWindow(r Rule, day time.Time, sun *solar.Resolver, defaultLoc *time.Location) (start, end time.Time, err error) {
	loc := defaultLoc
	if r.TZ != "" {
		loc, err = time.LoadLocation(r.TZ)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("schedule: invalid time zone %q: %w", r.TZ, err)
		}
	}

	start, err = resolveBoundary(r.StartSpec, day, r.Lat, r.Lon, loc, sun)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	if r.EndSpec != nil {
		end, err = resolveBoundary(*r.EndSpec, day, r.Lat, r.Lon, loc, sun)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return start, end, nil
	}
	return start, start.Add(time.Duration(r.DurationSeconds) * time.Second), nil
}
