// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jontk/ddpctl/pkg/logging"
	"github.com/jontk/ddpctl/resolve"
	"github.com/jontk/ddpctl/session"
	"github.com/jontk/ddpctl/solar"
	"github.com/jontk/ddpctl/supervisor"
)

// DefaultTickInterval is the engine's evaluation cadence (spec.md §4.8:
// "cadence ≤ 1 s").
const DefaultTickInterval = 1 * time.Second

// PresetLookup resolves a sequence item's preset ID to the layer stack a
// session needs, mirroring the playlist package's lookup shape so both
// subsystems can share one preset catalog.
type PresetLookup func(id string) ([]session.LayerSpec, bool)

// HolidaySource returns the holiday definitions a rule's holiday filter
// is evaluated against.
type HolidaySource func() []solar.Holiday

// Config configures an Engine.
type Config struct {
	Supervisor   *supervisor.Supervisor
	Catalogs     resolve.Catalogs
	Presets      PresetLookup
	Holidays     HolidaySource
	SolarCache   *solar.Resolver
	DefaultLoc   *time.Location
	TickInterval time.Duration
	Logger       logging.Logger
}

// ruleState tracks one rule's in-progress activation.
type ruleState struct {
	windowStart, windowEnd time.Time
	sessionID              string
	seqOrder               []int
	seqIdx                 int
	itemStartedAt          time.Time
	suspended              bool
}

// Engine is the Schedule Engine (spec.md §4.8): a ticker-driven
// evaluator over a set of rules, isolating per-rule failures so one bad
// rule cannot stop the others (spec.md §7).
type Engine struct {
	sup        *supervisor.Supervisor
	catalogs   resolve.Catalogs
	presets    PresetLookup
	holidays   HolidaySource
	sun        *solar.Resolver
	defaultLoc *time.Location
	tick       time.Duration
	logger     logging.Logger

	mu    sync.Mutex
	rules map[string]Rule
	state map[string]*ruleState

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an Engine from cfg, filling in documented defaults.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = logging.NoOpLogger{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.DefaultLoc == nil {
		cfg.DefaultLoc = time.UTC
	}
	if cfg.SolarCache == nil {
		cfg.SolarCache = solar.NewResolver(nil)
	}
	if cfg.Holidays == nil {
		cfg.Holidays = func() []solar.Holiday { return nil }
	}
	return &Engine{
		sup:        cfg.Supervisor,
		catalogs:   cfg.Catalogs,
		presets:    cfg.Presets,
		holidays:   cfg.Holidays,
		sun:        cfg.SolarCache,
		defaultLoc: cfg.DefaultLoc,
		tick:       cfg.TickInterval,
		logger:     cfg.Logger,
		rules:      make(map[string]Rule),
		state:      make(map[string]*ruleState),
	}
}

// SetRule upserts a rule definition.
func (e *Engine) SetRule(r Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[r.ID] = r
}

// RemoveRule deletes a rule and stops any session it owns.
func (e *Engine) RemoveRule(id string) {
	e.mu.Lock()
	st := e.state[id]
	delete(e.rules, id)
	delete(e.state, id)
	e.mu.Unlock()

	if st != nil && st.sessionID != "" {
		_ = e.sup.Stop(st.sessionID)
	}
}

// Rules returns every rule currently registered, most-recently-created first.
func (e *Engine) Rules() []Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Rule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// ActiveSessionFor returns the session ID a rule currently owns, if any.
func (e *Engine) ActiveSessionFor(ruleID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.state[ruleID]
	if !ok || st.sessionID == "" {
		return "", false
	}
	return st.sessionID, true
}
