// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package controller wires the nine streaming-controller subsystems
// (spec.md §2) into one process, the module's analog to the teacher
// corpus's root client.go.
package controller

import (
	"context"
	"time"

	"github.com/jontk/ddpctl/ddp"
	"github.com/jontk/ddpctl/pkg/config"
	"github.com/jontk/ddpctl/pkg/logging"
	"github.com/jontk/ddpctl/pkg/metrics"
	"github.com/jontk/ddpctl/pkg/pool"
	"github.com/jontk/ddpctl/pkg/retry"
	"github.com/jontk/ddpctl/pkg/solarcache"
	"github.com/jontk/ddpctl/effects"
	"github.com/jontk/ddpctl/playlist"
	"github.com/jontk/ddpctl/resolve"
	"github.com/jontk/ddpctl/schedule"
	"github.com/jontk/ddpctl/session"
	"github.com/jontk/ddpctl/solar"
	"github.com/jontk/ddpctl/supervisor"
)

// Catalogs bundles every entity lookup the controller's subsystems need.
// Concrete storage (JSON-on-disk, in-memory, etc.) is an external
// collaborator; the controller only depends on these function shapes
// (spec.md §1 Non-goals: persistence is out of scope for this module).
type Catalogs struct {
	Fixtures resolve.Catalogs
	Addr     session.AddressResolver
	Palettes func(id string) (effects.Palette, bool)
	Presets  playlist.PresetLookup
	Holidays func() []solar.Holiday
}

// Controller owns every subsystem instance and their wiring.
type Controller struct {
	Config *config.Config
	Logger logging.Logger

	Sender     *ddp.Sender
	Supervisor *supervisor.Supervisor
	Playlist   *playlist.Runner
	Schedule   *schedule.Engine

	solar *solar.Resolver
}

// New constructs a Controller, wiring the Wire Sender, Session
// Supervisor, Playlist Runner, and Schedule Engine against the shared
// catalogs (spec.md §2 data flow: "Schedule Engine / Playlist Runner →
// Session Supervisor → ... → Wire Sender → UDP").
func New(cfg *config.Config, catalogs Catalogs, logger logging.Logger) *Controller {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	collector := metrics.NewInMemoryCollector()

	senderPool := pool.NewUDPSenderPool(pool.DefaultPoolConfig(), logger.With("component", "pool"))
	sender := ddp.NewSender(ddp.Config{
		Pool:               senderPool,
		RetryPolicy:        retry.NewSendExponentialBackoff(),
		Metrics:            collector,
		Logger:             logger.With("component", "sender"),
		UnhealthyThreshold: cfg.UnhealthyThreshold,
	})

	registry := effects.NewRegistry()

	sessionDeps := session.Deps{
		Catalogs: catalogs.Fixtures,
		Addr:     catalogs.Addr,
		Sender:   sender,
		Registry: registry,
		Palettes: catalogs.Palettes,
		Logger:   logger.With("component", "session"),
		Metrics:  collector,
	}

	sup := supervisor.New(sessionDeps, logger.With("component", "supervisor"))

	runner := playlist.New(sup, catalogs.Presets, logger.With("component", "playlist"))

	solarCache := solar.NewResolver(solarcache.New(solarcache.DefaultConfig()))

	defaultLoc, err := time.LoadLocation(cfg.DefaultTZ)
	if err != nil {
		defaultLoc = time.UTC
	}

	engine := schedule.New(schedule.Config{
		Supervisor:   sup,
		Catalogs:     catalogs.Fixtures,
		Presets:      adaptPresetLookup(catalogs.Presets),
		Holidays:     catalogs.Holidays,
		SolarCache:   solarCache,
		DefaultLoc:   defaultLoc,
		TickInterval: cfg.ScheduleTickInterval,
		Logger:       logger.With("component", "schedule"),
	})

	return &Controller{
		Config:     cfg,
		Logger:     logger,
		Sender:     sender,
		Supervisor: sup,
		Playlist:   runner,
		Schedule:   engine,
		solar:      solarCache,
	}
}

// adaptPresetLookup bridges the playlist package's richer Preset lookup
// (single effect or explicit layer stack) onto the flatter
// []session.LayerSpec shape the schedule engine consumes, so both
// subsystems share one preset catalog.
func adaptPresetLookup(presets playlist.PresetLookup) schedule.PresetLookup {
	if presets == nil {
		return func(string) ([]session.LayerSpec, bool) { return nil, false }
	}
	return func(id string) ([]session.LayerSpec, bool) {
		p, ok := presets(id)
		if !ok {
			return nil, false
		}
		return p.ToLayerSpecs(), true
	}
}

// Start begins the schedule engine's evaluation loop. The session
// supervisor and playlist runner are driven on demand and need no
// explicit start.
func (c *Controller) Start(ctx context.Context) {
	c.Schedule.Start(ctx)
}

// Shutdown stops the schedule engine and every running session,
// guaranteeing each has emitted its blackout frame before returning
// (spec.md §4.6).
func (c *Controller) Shutdown() {
	c.Schedule.Stop()
	c.Playlist.Stop()
	c.Supervisor.Shutdown()
	_ = c.Sender.Close()
}
