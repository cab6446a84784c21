// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package schedule implements the Schedule Engine (spec.md §4.8): a
// ticker-driven evaluator that starts and stops sessions against
// wall-clock, day-of-week, holiday, and sunrise/sunset triggers, and
// applies brightness ramps at the edges of each rule's active window.
package schedule

import (
	"time"

	"github.com/jontk/ddpctl/resolve"
)

// SpecKind discriminates the three ways a window boundary can be
// expressed (spec.md §3: "startSpec/endSpec ∈ {time(HH:MM) |
// sunrise±offsetMin | sunset±offsetMin}").
type SpecKind string

const (
	SpecTimeOfDay SpecKind = "time_of_day"
	SpecSunrise   SpecKind = "sunrise"
	SpecSunset    SpecKind = "sunset"
)

// BoundarySpec describes one edge (start or end) of a rule's window.
type BoundarySpec struct {
	Kind SpecKind

	// HourMinute is "HH:MM", used when Kind == SpecTimeOfDay.
	HourMinute string

	// OffsetMinutes shifts a sunrise/sunset boundary; may be negative.
	OffsetMinutes int
}

// HolidayFilter narrows a rule to run only on, or never on, holidays.
type HolidayFilter struct {
	SkipOnHolidays     bool
	OnHolidaysOnly     bool
	SelectedHolidayIDs []string // empty means "all known holidays"
	DaysBeforeHoliday  int
	DaysAfterHoliday   int
}

// SequenceItem is one preset step of a rule's sequence
// (spec.md §3: "sequence[], sequenceLoop, sequenceShuffle").
type SequenceItem struct {
	PresetID        string
	DurationSeconds int
}

// Rule is a single schedule trigger (spec.md §3, §4.8).
type Rule struct {
	ID      string
	Enabled bool

	Targets []resolve.Target

	DaysOfWeek []time.Weekday // empty matches every day
	Dates      []string       // "YYYY-MM-DD", empty means unconstrained
	Holiday    HolidayFilter

	Lat, Lon float64
	TZ       string // IANA zone; empty means the engine default

	StartSpec       BoundarySpec
	EndSpec         *BoundarySpec // nil means derive from DurationSeconds
	DurationSeconds int

	RampOnStart         bool
	RampOffEnd          bool
	RampDurationSeconds int

	Sequence        []SequenceItem
	SequenceLoop    bool
	SequenceShuffle bool

	FPS int

	Priority  int
	CreatedAt time.Time
}
