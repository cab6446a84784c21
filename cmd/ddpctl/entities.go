// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jontk/ddpctl/ddp"
	"github.com/jontk/ddpctl/effects"
	"github.com/jontk/ddpctl/playlist"
	"github.com/jontk/ddpctl/resolve"
	"github.com/jontk/ddpctl/schedule"
	"github.com/jontk/ddpctl/solar"
)

// fixtureDef, groupDef, etc. are the on-disk JSON shapes the CLI loads
// fixture/preset/holiday/rule definitions from. Full CRUD persistence of
// these entities is the named external collaborator's job (spec.md §1
// Non-goals); this file only loads a static snapshot at CLI invocation
// time, the way a single-purpose streaming utility would.
type fixtureDef struct {
	ID         string `json:"id"`
	Address    string `json:"address"`
	PixelCount int    `json:"pixelCount"`
}

type groupMemberDef struct {
	FixtureID    string `json:"fixtureId"`
	WholeFixture bool   `json:"wholeFixture"`
	StartPixel   int    `json:"startPixel"`
	EndPixel     int    `json:"endPixel"`
}

type groupDef struct {
	ID      string           `json:"id"`
	Members []groupMemberDef `json:"members"`
}

type virtualRangeDef struct {
	FixtureID  string `json:"fixtureId"`
	StartPixel int    `json:"startPixel"`
	EndPixel   int    `json:"endPixel"`
}

type virtualDef struct {
	ID     string            `json:"id"`
	Ranges []virtualRangeDef `json:"ranges"`
}

type presetDef struct {
	ID         string                 `json:"id"`
	EffectType string                 `json:"effectType"`
	Params     map[string]interface{} `json:"params"`
}

type holidayDef struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"` // "fixed" | "absolute" | "pattern"
	Fixed   string `json:"fixed,omitempty"`   // "MM-DD"
	Date    string `json:"date,omitempty"`    // "YYYY-MM-DD"
	Pattern string `json:"pattern,omitempty"` // "4TH_THURSDAY_NOVEMBER"
}

type sequenceItemDef struct {
	PresetID        string `json:"presetId"`
	DurationSeconds int    `json:"durationSeconds"`
}

type ruleDef struct {
	ID                  string            `json:"id"`
	Enabled             bool              `json:"enabled"`
	TargetKind          string            `json:"targetKind"`
	TargetID            string            `json:"targetId"`
	DaysOfWeek          []int             `json:"daysOfWeek,omitempty"`
	Dates               []string          `json:"dates,omitempty"`
	Lat                 float64           `json:"lat,omitempty"`
	Lon                 float64           `json:"lon,omitempty"`
	TZ                  string            `json:"tz,omitempty"`
	StartKind           string            `json:"startKind"` // "time_of_day" | "sunrise" | "sunset"
	StartHourMinute     string            `json:"startHourMinute,omitempty"`
	StartOffsetMinutes  int               `json:"startOffsetMinutes,omitempty"`
	DurationSeconds     int               `json:"durationSeconds,omitempty"`
	RampOnStart         bool              `json:"rampOnStart,omitempty"`
	RampOffEnd          bool              `json:"rampOffEnd,omitempty"`
	RampDurationSeconds int               `json:"rampDurationSeconds,omitempty"`
	Sequence            []sequenceItemDef `json:"sequence"`
	SequenceLoop        bool              `json:"sequenceLoop,omitempty"`
	SequenceShuffle     bool              `json:"sequenceShuffle,omitempty"`
	FPS                 int               `json:"fps,omitempty"`
	Priority            int               `json:"priority,omitempty"`
}

// entityFile is the top-level shape of a CLI config file.
type entityFile struct {
	Fixtures []fixtureDef `json:"fixtures"`
	Groups   []groupDef   `json:"groups"`
	Virtuals []virtualDef `json:"virtuals"`
	Presets  []presetDef  `json:"presets"`
	Holidays []holidayDef `json:"holidays"`
	Rules    []ruleDef    `json:"rules"`
}

// entities is the in-memory form loaded from an entityFile, ready to
// back resolve.Catalogs / playlist.PresetLookup / schedule rules.
type entities struct {
	fixtures map[string]resolve.Fixture
	addrs    map[string]string
	groups   map[string]resolve.Group
	virtuals map[string]resolve.Virtual
	presets  map[string]playlist.Preset
	holidays []solar.Holiday
	rules    []schedule.Rule
}

func loadEntities(path string) (*entities, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var file entityFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return buildEntities(file)
}

func buildEntities(file entityFile) (*entities, error) {
	e := &entities{
		fixtures: make(map[string]resolve.Fixture),
		addrs:    make(map[string]string),
		groups:   make(map[string]resolve.Group),
		virtuals: make(map[string]resolve.Virtual),
		presets:  make(map[string]playlist.Preset),
	}

	for _, f := range file.Fixtures {
		e.fixtures[f.ID] = resolve.Fixture{ID: f.ID, PixelCount: f.PixelCount}
		e.addrs[f.ID] = f.Address
	}
	for _, g := range file.Groups {
		members := make([]resolve.GroupMember, len(g.Members))
		for i, m := range g.Members {
			members[i] = resolve.GroupMember{
				FixtureID: m.FixtureID, WholeFixture: m.WholeFixture,
				StartPixel: m.StartPixel, EndPixel: m.EndPixel,
			}
		}
		e.groups[g.ID] = resolve.Group{ID: g.ID, Members: members}
	}
	for _, v := range file.Virtuals {
		ranges := make([]resolve.VirtualRange, len(v.Ranges))
		for i, r := range v.Ranges {
			ranges[i] = resolve.VirtualRange{FixtureID: r.FixtureID, StartPixel: r.StartPixel, EndPixel: r.EndPixel}
		}
		e.virtuals[v.ID] = resolve.Virtual{ID: v.ID, Ranges: ranges}
	}
	for _, p := range file.Presets {
		e.presets[p.ID] = playlist.Preset{
			ID:     p.ID,
			Effect: &playlist.EffectRef{Type: p.EffectType, Params: toEffectParams(p.Params)},
		}
	}
	for _, h := range file.Holidays {
		holiday, err := toHoliday(h)
		if err != nil {
			return nil, err
		}
		e.holidays = append(e.holidays, holiday)
	}
	for _, r := range file.Rules {
		rule, err := toRule(r)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.ID, err)
		}
		e.rules = append(e.rules, rule)
	}
	return e, nil
}

// toEffectParams converts a loosely-typed JSON params map into the
// discriminated union effects.Params expects: a leading "#" means a hex
// color, a JSON array means a color array, numbers and booleans map
// directly, anything else becomes an options value.
func toEffectParams(raw map[string]interface{}) effects.Params {
	out := make(effects.Params, len(raw))
	for name, v := range raw {
		switch val := v.(type) {
		case float64:
			out[name] = effects.Param{Kind: effects.KindNumber, Number: val}
		case bool:
			out[name] = effects.Param{Kind: effects.KindBoolean, Bool: val}
		case string:
			if len(val) > 0 && val[0] == '#' {
				out[name] = effects.Param{Kind: effects.KindColor, Color: val}
			} else {
				out[name] = effects.Param{Kind: effects.KindOptions, Option: val}
			}
		case []interface{}:
			colors := make([]string, 0, len(val))
			for _, c := range val {
				if s, ok := c.(string); ok {
					colors = append(colors, s)
				}
			}
			out[name] = effects.Param{Kind: effects.KindColorArray, Colors: colors}
		}
	}
	return out
}

func toHoliday(h holidayDef) (solar.Holiday, error) {
	switch h.Kind {
	case "fixed":
		var month, day int
		if _, err := fmt.Sscanf(h.Fixed, "%d-%d", &month, &day); err != nil {
			return solar.Holiday{}, fmt.Errorf("holiday %q: invalid fixed date %q: %w", h.ID, h.Fixed, err)
		}
		return solar.Holiday{ID: h.ID, Kind: solar.HolidayFixed, FixedMonth: time.Month(month), FixedDay: day}, nil
	case "absolute":
		return solar.Holiday{ID: h.ID, Kind: solar.HolidayAbsolute, AbsoluteDate: h.Date}, nil
	case "pattern":
		nth, weekday, month, err := solar.ParsePattern(h.Pattern)
		if err != nil {
			return solar.Holiday{}, fmt.Errorf("holiday %q: %w", h.ID, err)
		}
		return solar.Holiday{ID: h.ID, Kind: solar.HolidayPattern, PatternNth: nth, PatternWeekday: weekday, PatternMonth: month}, nil
	default:
		return solar.Holiday{}, fmt.Errorf("holiday %q: unknown kind %q", h.ID, h.Kind)
	}
}

func toRule(r ruleDef) (schedule.Rule, error) {
	days := make([]time.Weekday, len(r.DaysOfWeek))
	for i, d := range r.DaysOfWeek {
		days[i] = time.Weekday(d)
	}
	seq := make([]schedule.SequenceItem, len(r.Sequence))
	for i, s := range r.Sequence {
		seq[i] = schedule.SequenceItem{PresetID: s.PresetID, DurationSeconds: s.DurationSeconds}
	}

	startKind := schedule.SpecKind(r.StartKind)
	if startKind == "" {
		startKind = schedule.SpecTimeOfDay
	}
	rule := schedule.Rule{
		ID:      r.ID,
		Enabled: r.Enabled,
		Targets: []resolve.Target{{Kind: resolve.TargetKind(r.TargetKind), ID: r.TargetID}},
		DaysOfWeek: days,
		Dates:      r.Dates,
		Lat:        r.Lat,
		Lon:        r.Lon,
		TZ:         r.TZ,
		StartSpec: schedule.BoundarySpec{
			Kind: startKind, HourMinute: r.StartHourMinute, OffsetMinutes: r.StartOffsetMinutes,
		},
		DurationSeconds:     r.DurationSeconds,
		RampOnStart:         r.RampOnStart,
		RampOffEnd:          r.RampOffEnd,
		RampDurationSeconds: r.RampDurationSeconds,
		Sequence:            seq,
		SequenceLoop:        r.SequenceLoop,
		SequenceShuffle:     r.SequenceShuffle,
		FPS:                 r.FPS,
		Priority:            r.Priority,
		CreatedAt:           time.Now(),
	}
	return rule, nil
}

// fixtureCatalogs builds resolve.Catalogs and a DDP address resolver
// from the loaded entities.
func (e *entities) fixtureCatalogs() (resolve.Catalogs, func(id string) (ddp.FixtureAddr, bool)) {
	catalogs := resolve.Catalogs{
		Fixture: func(id string) (resolve.Fixture, bool) { f, ok := e.fixtures[id]; return f, ok },
		Group:   func(id string) (resolve.Group, bool) { g, ok := e.groups[id]; return g, ok },
		Virtual: func(id string) (resolve.Virtual, bool) { v, ok := e.virtuals[id]; return v, ok },
	}
	addr := func(id string) (ddp.FixtureAddr, bool) {
		a, ok := e.addrs[id]
		if !ok {
			return ddp.FixtureAddr{}, false
		}
		return ddp.FixtureAddr{FixtureID: id, Address: a}, true
	}
	return catalogs, addr
}

func (e *entities) presetLookup() playlist.PresetLookup {
	return func(id string) (playlist.Preset, bool) { p, ok := e.presets[id]; return p, ok }
}

func (e *entities) holidaySource() func() []solar.Holiday {
	return func() []solar.Holiday { return e.holidays }
}
