// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package httpapi defines the thin management-API contract layer of
// spec.md §6: Go request/response types and a gorilla/mux router wiring
// HTTP paths to the Supervisor / Playlist Runner / Schedule Engine.
// Persistence of devices/groups/virtuals/presets/schedules/palettes is an
// external collaborator's job (spec.md §2 Non-goals); this package only
// defines the contract and depends on injected Catalog interfaces for
// entity storage.
package httpapi

import (
	"time"

	"github.com/jontk/ddpctl/effects"
	"github.com/jontk/ddpctl/resolve"
)

// TargetDTO is the wire shape of resolve.Target.
type TargetDTO struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func (t TargetDTO) toDomain() resolve.Target {
	return resolve.Target{Kind: resolve.TargetKind(t.Kind), ID: t.ID}
}

func targetsToDomain(in []TargetDTO) []resolve.Target {
	out := make([]resolve.Target, len(in))
	for i, t := range in {
		out[i] = t.toDomain()
	}
	return out
}

// ParamDTO is the wire shape of the discriminated-union effects.Param.
type ParamDTO struct {
	Kind    string   `json:"kind"`
	Color   string   `json:"color,omitempty"`
	Number  float64  `json:"number,omitempty"`
	Bool    bool     `json:"bool,omitempty"`
	Option  string   `json:"option,omitempty"`
	Colors  []string `json:"colors,omitempty"`
	Palette string   `json:"palette,omitempty"`
}

func (p ParamDTO) toDomain() effects.Param {
	return effects.Param{
		Kind: effects.ParamKind(p.Kind), Color: p.Color, Number: p.Number,
		Bool: p.Bool, Option: p.Option, Colors: p.Colors, Palette: p.Palette,
	}
}

func paramDTOFromDomain(p effects.Param) ParamDTO {
	return ParamDTO{
		Kind: string(p.Kind), Color: p.Color, Number: p.Number,
		Bool: p.Bool, Option: p.Option, Colors: p.Colors, Palette: p.Palette,
	}
}

func paramsToDomain(in map[string]ParamDTO) effects.Params {
	out := make(effects.Params, len(in))
	for name, p := range in {
		out[name] = p.toDomain()
	}
	return out
}

func paramsFromDomain(in effects.Params) map[string]ParamDTO {
	out := make(map[string]ParamDTO, len(in))
	for name, p := range in {
		out[name] = paramDTOFromDomain(p)
	}
	return out
}

// LayerDTO is the wire shape of one compositing layer.
type LayerDTO struct {
	ID         string              `json:"id"`
	EffectType string              `json:"effectType"`
	Params     map[string]ParamDTO `json:"params"`
	BlendMode  string              `json:"blendMode"`
	Opacity    float64             `json:"opacity"`
	Enabled    bool                `json:"enabled"`
}

// EffectRefDTO is the single-effect shorthand form of a start request.
type EffectRefDTO struct {
	Type   string              `json:"type"`
	Params map[string]ParamDTO `json:"params"`
}

// StartSessionRequest is the body of POST /stream/start.
type StartSessionRequest struct {
	Targets          []TargetDTO   `json:"targets"`
	Effect           *EffectRefDTO `json:"effect,omitempty"`
	Layers           []LayerDTO    `json:"layers,omitempty"`
	FPS              int           `json:"fps"`
	ExcludedFixtures []string      `json:"excludedFixtures,omitempty"`
	Exclusive        bool          `json:"exclusive,omitempty"`
}

// SessionDTO is the wire shape of a running session, returned from
// start/pause/resume and the session list.
type SessionDTO struct {
	ID        string      `json:"id"`
	State     string      `json:"state"`
	Targets   []TargetDTO `json:"targets"`
	CreatedAt time.Time   `json:"createdAt"`
	Exclusive bool        `json:"exclusive"`
}

func targetDTOsFromDomain(in []resolve.Target) []TargetDTO {
	out := make([]TargetDTO, len(in))
	for i, t := range in {
		out[i] = TargetDTO{Kind: string(t.Kind), ID: t.ID}
	}
	return out
}

// SessionListResponse is the body of GET /stream/sessions.
type SessionListResponse struct {
	Sessions []SessionDTO `json:"sessions"`
	Count    int          `json:"count"`
}

// ActiveTargetsResponse is the body of GET /stream/active-targets.
type ActiveTargetsResponse struct {
	Devices  []string       `json:"devices"`
	Groups   []string       `json:"groups"`
	Virtuals []string       `json:"virtuals"`
	Counts   map[string]int `json:"counts"`
}

// StopTargetRequest is the body of POST /stream/stop-target.
type StopTargetRequest struct {
	Target TargetDTO `json:"target"`
}

// UpdateParamRequest is the body of POST /stream/update-param.
type UpdateParamRequest struct {
	SessionID string   `json:"sessionID"`
	LayerID   string   `json:"layerID,omitempty"`
	ParamName string   `json:"paramName"`
	Value     ParamDTO `json:"value"`
}

// OKResponse is the body of every endpoint that reports bare success.
type OKResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse is the body spec.md §6 mandates for every error surface.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PlaylistItemDTO is one playlist entry.
type PlaylistItemDTO struct {
	PresetID        string `json:"presetId"`
	DurationSeconds int    `json:"durationSeconds"`
}

// PlaylistStartRequest is the body of POST /playlists/start.
type PlaylistStartRequest struct {
	ID      string            `json:"id,omitempty"`
	Targets []TargetDTO       `json:"targets"`
	Items   []PlaylistItemDTO `json:"items"`
	Loop    bool              `json:"loop,omitempty"`
	Shuffle bool              `json:"shuffle,omitempty"`
	FPS     int               `json:"fps"`
}

// PlaylistStatusDTO is the body of GET /playlists/active.
type PlaylistStatusDTO struct {
	ID             string    `json:"id"`
	ActiveItem     int       `json:"activeItem"`
	ActivePresetID string    `json:"activePresetId"`
	StartedAt      time.Time `json:"startedAt"`
	Loop           bool      `json:"loop"`
}

// ScheduleRuleStatusDTO is one entry of GET /schedules/active.
type ScheduleRuleStatusDTO struct {
	RuleID    string `json:"ruleId"`
	Active    bool   `json:"active"`
	SessionID string `json:"sessionId,omitempty"`
}

// DeviceDTO is the wire shape of a fixture entity (spec.md §3 Fixture).
type DeviceDTO struct {
	ID         string `json:"id"`
	Address    string `json:"address"`
	PixelCount int    `json:"pixelCount"`
}

// GroupMemberDTO is one member of a GroupDTO.
type GroupMemberDTO struct {
	FixtureID    string `json:"fixtureId"`
	WholeFixture bool   `json:"wholeFixture"`
	StartPixel   int    `json:"startPixel,omitempty"`
	EndPixel     int    `json:"endPixel,omitempty"`
}

// GroupDTO is the wire shape of a group entity.
type GroupDTO struct {
	ID      string           `json:"id"`
	Members []GroupMemberDTO `json:"members"`
}

// VirtualRangeDTO is one range of a VirtualDTO.
type VirtualRangeDTO struct {
	FixtureID  string `json:"fixtureId"`
	StartPixel int    `json:"startPixel"`
	EndPixel   int    `json:"endPixel"`
}

// VirtualDTO is the wire shape of a virtual-range entity.
type VirtualDTO struct {
	ID     string            `json:"id"`
	Ranges []VirtualRangeDTO `json:"ranges"`
}

// PresetDTO is the wire shape of a preset entity.
type PresetDTO struct {
	ID         string              `json:"id"`
	EffectType string              `json:"effectType,omitempty"`
	Params     map[string]ParamDTO `json:"params,omitempty"`
	Layers     []LayerDTO          `json:"layers,omitempty"`
}

// PaletteDTO is the wire shape of a named color palette.
type PaletteDTO struct {
	ID     string   `json:"id"`
	Colors []string `json:"colors"`
}

// HolidayDTO is the wire shape of a holiday definition (spec.md §4.9).
type HolidayDTO struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Fixed   string `json:"fixed,omitempty"`
	Date    string `json:"date,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

// HolidayFilterDTO is the wire shape of a schedule rule's holiday filter.
type HolidayFilterDTO struct {
	SkipOnHolidays     bool     `json:"skipOnHolidays,omitempty"`
	OnHolidaysOnly     bool     `json:"onHolidaysOnly,omitempty"`
	SelectedHolidayIDs []string `json:"selectedHolidayIds,omitempty"`
	DaysBeforeHoliday  int      `json:"daysBeforeHoliday,omitempty"`
	DaysAfterHoliday   int      `json:"daysAfterHoliday,omitempty"`
}

// ScheduleRuleDTO is the wire shape of a schedule rule entity.
type ScheduleRuleDTO struct {
	ID                  string            `json:"id"`
	Enabled             bool              `json:"enabled"`
	Targets             []TargetDTO       `json:"targets"`
	DaysOfWeek          []int             `json:"daysOfWeek,omitempty"`
	Dates               []string          `json:"dates,omitempty"`
	Holiday             HolidayFilterDTO  `json:"holiday"`
	Lat                 float64           `json:"lat,omitempty"`
	Lon                 float64           `json:"lon,omitempty"`
	TZ                  string            `json:"tz,omitempty"`
	StartKind           string            `json:"startKind"`
	StartHourMinute     string            `json:"startHourMinute,omitempty"`
	StartOffsetMinutes  int               `json:"startOffsetMinutes,omitempty"`
	DurationSeconds     int               `json:"durationSeconds,omitempty"`
	RampOnStart         bool              `json:"rampOnStart,omitempty"`
	RampOffEnd          bool              `json:"rampOffEnd,omitempty"`
	RampDurationSeconds int               `json:"rampDurationSeconds,omitempty"`
	Sequence            []PlaylistItemDTO `json:"sequence"`
	SequenceLoop        bool              `json:"sequenceLoop,omitempty"`
	SequenceShuffle     bool              `json:"sequenceShuffle,omitempty"`
	FPS                 int               `json:"fps,omitempty"`
	Priority            int               `json:"priority,omitempty"`
}
