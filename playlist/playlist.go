// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package playlist implements the Playlist Runner (spec.md §4.7): a
// sequencer that materializes an ordering over preset items and steps
// through each in turn, stopping the previous item's session and starting
// a fresh one for every item.
package playlist

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jontk/ddpctl/blend"
	ctrlerrors "github.com/jontk/ddpctl/pkg/errors"
	"github.com/jontk/ddpctl/pkg/logging"
	"github.com/jontk/ddpctl/effects"
	"github.com/jontk/ddpctl/resolve"
	"github.com/jontk/ddpctl/session"
	"github.com/jontk/ddpctl/supervisor"
)

// EffectRef is a preset's single-effect form.
type EffectRef struct {
	Type   string
	Params effects.Params
}

// Preset is either a single effect or an explicit layer stack
// (spec.md §3: "either single effect with flat parameter overrides, or
// layers[] with per-layer parameter overrides").
type Preset struct {
	ID     string
	Effect *EffectRef
	Layers []session.LayerSpec
}

// ToLayerSpecs materializes a preset into the layer stack a session
// needs; exported so other subsystems (the schedule engine) sharing the
// same preset catalog can reuse the conversion.
func (p Preset) ToLayerSpecs() []session.LayerSpec {
	if len(p.Layers) > 0 {
		return p.Layers
	}
	if p.Effect != nil {
		return []session.LayerSpec{{
			ID:         "default",
			EffectType: p.Effect.Type,
			Params:     p.Effect.Params,
			BlendMode:  blend.ModeNormal,
			Opacity:    1,
			Enabled:    true,
		}}
	}
	return nil
}

// PresetLookup resolves a preset ID to its definition.
type PresetLookup func(id string) (Preset, bool)

// Item is one playlist entry.
type Item struct {
	PresetID        string
	DurationSeconds int
}

// Spec is the construction-time description of a playlist
// (spec.md §4.7: "{items[{presetID, durationSeconds}], loop, shuffle, targets[]}").
type Spec struct {
	ID      string
	Items   []Item
	Loop    bool
	Shuffle bool
	Targets []resolve.Target
	FPS     int
}

// Status is a point-in-time snapshot of a running playlist, surfaced for
// UI queries (spec.md §4.7: "A single 'active playlist' handle per
// process is surfaced for UI queries").
type Status struct {
	ID             string
	ActiveItem     int
	ActivePresetID string
	StartedAt      time.Time
	Loop           bool
}

// Playlist is one running instance of the runner.
type Playlist struct {
	id   string
	spec Spec

	startedAt time.Time
	activeIdx atomic.Int64

	cancel context.CancelFunc
	doneCh chan struct{}
}

// ID returns the playlist's identifier.
func (p *Playlist) ID() string { return p.id }

// Done returns a channel closed once the playlist's worker has exited.
func (p *Playlist) Done() <-chan struct{} { return p.doneCh }

// Status returns a snapshot of the playlist's current position.
func (p *Playlist) Status() Status {
	idx := int(p.activeIdx.Load())
	presetID := ""
	if idx >= 0 && idx < len(p.spec.Items) {
		presetID = p.spec.Items[idx].PresetID
	}
	return Status{
		ID:             p.id,
		ActiveItem:     idx,
		ActivePresetID: presetID,
		StartedAt:      p.startedAt,
		Loop:           p.spec.Loop,
	}
}

// Stop terminates the playlist immediately (spec.md §4.7: "External stop
// terminates immediately").
func (p *Playlist) Stop() {
	p.cancel()
}

// Runner sequences playlists over a Supervisor-managed session, exposing
// a single active-playlist handle (spec.md §4.7, §9: "Ad-hoc session
// 'active playlist' singleton: replace with a supervisor-owned handle,
// cleared on playlist stop and set atomically on start").
type Runner struct {
	sup     *supervisor.Supervisor
	presets PresetLookup
	logger  logging.Logger

	mu     sync.Mutex
	active *Playlist
}

// New creates a playlist Runner.
func New(sup *supervisor.Supervisor, presets PresetLookup, logger logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Runner{sup: sup, presets: presets, logger: logger}
}

// Active returns the currently running playlist, if any.
func (r *Runner) Active() (*Playlist, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil, false
	}
	return r.active, true
}

// Start stops any currently active playlist, then begins spec as the new
// active playlist.
func (r *Runner) Start(spec Spec) (*Playlist, error) {
	if len(spec.Items) == 0 {
		return nil, ctrlerrors.NewValidationError(ctrlerrors.ErrorCodeInvalidParameter,
			"playlist requires at least one item", "items", nil)
	}

	r.mu.Lock()
	prior := r.active
	r.mu.Unlock()
	if prior != nil {
		prior.Stop()
		<-prior.Done()
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := spec.ID
	if id == "" {
		id = spec.Items[0].PresetID
	}
	p := &Playlist{
		id:        id,
		spec:      spec,
		startedAt: time.Now(),
		cancel:    cancel,
		doneCh:    make(chan struct{}),
	}
	p.activeIdx.Store(-1)

	r.mu.Lock()
	r.active = p
	r.mu.Unlock()

	go r.run(ctx, p)
	return p, nil
}

// Stop stops the active playlist, if any.
func (r *Runner) Stop() {
	r.mu.Lock()
	p := r.active
	r.mu.Unlock()
	if p != nil {
		p.Stop()
	}
}

func (r *Runner) run(ctx context.Context, p *Playlist) {
	defer func() {
		close(p.doneCh)
		r.mu.Lock()
		if r.active == p {
			r.active = nil
		}
		r.mu.Unlock()
	}()

	var sessID string
	defer func() {
		if sessID != "" {
			_ = r.sup.Stop(sessID)
		}
	}()

	for {
		order := r.materialize(p.spec)
		for _, idx := range order {
			item := p.spec.Items[idx]
			p.activeIdx.Store(int64(idx))

			preset, ok := r.presets(item.PresetID)
			if !ok {
				r.logger.Warn("unknown preset, skipping", "preset_id", item.PresetID)
				continue
			}

			if sessID != "" {
				_ = r.sup.Stop(sessID)
				sessID = ""
			}
			sess, err := r.sup.StartSession(session.Spec{
				Targets: p.spec.Targets,
				Layers:  preset.ToLayerSpecs(),
				FPS:     p.spec.FPS,
			})
			if err != nil {
				r.logger.Error("playlist item failed to start session", "preset_id", item.PresetID, "error", err)
			} else {
				sessID = sess.ID()
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(item.DurationSeconds) * time.Second):
			}
		}

		if !p.spec.Loop {
			return
		}
	}
}

// materialize returns an ordering over item indices: identity unless
// Shuffle is set, in which case it's a fresh uniform permutation
// (spec.md §4.7: "if shuffle, use a uniform permutation on each pass").
func (r *Runner) materialize(spec Spec) []int {
	order := make([]int, len(spec.Items))
	for i := range order {
		order[i] = i
	}
	if spec.Shuffle {
		rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	return order
}
