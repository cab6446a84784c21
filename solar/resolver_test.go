// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package solar

import (
	"testing"
	"time"

	"github.com/jontk/ddpctl/pkg/solarcache"
)

func TestResolver_SunTimesIsCached(t *testing.T) {
	cache := solarcache.New(solarcache.DefaultConfig())
	r := NewResolver(cache)

	date := time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC)
	rise1, set1, err := r.SunTimes(date, 51.5074, -0.1278, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	rise2, set2, err := r.SunTimes(date, 51.5074, -0.1278, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if !rise1.Equal(rise2) || !set1.Equal(set2) {
		t.Fatalf("cached call returned different result: (%v,%v) vs (%v,%v)", rise1, set1, rise2, set2)
	}
}

func TestHolidays_SkipsNonMatchingYears(t *testing.T) {
	defs := []Holiday{
		{ID: "christmas", Kind: HolidayFixed, FixedMonth: time.December, FixedDay: 25},
		{ID: "one-off", Kind: HolidayAbsolute, AbsoluteDate: "2020-01-01"},
	}
	resolved, err := Holidays(defs, 2026)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := resolved["christmas"]; !ok {
		t.Fatal("expected christmas to resolve")
	}
	if _, ok := resolved["one-off"]; ok {
		t.Fatal("expected one-off absolute holiday from a different year to be absent")
	}
}

func TestIsHoliday(t *testing.T) {
	defs := []Holiday{{ID: "christmas", Kind: HolidayFixed, FixedMonth: time.December, FixedDay: 25}}
	id, ok, err := IsHoliday(defs, time.Date(2026, 12, 25, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if !ok || id != "christmas" {
		t.Fatalf("got id=%q ok=%v, want christmas/true", id, ok)
	}

	_, ok, err = IsHoliday(defs, time.Date(2026, 12, 24, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no match on Dec 24")
	}
}
