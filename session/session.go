// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package session implements the Streaming Session (spec.md §4.5): one
// running unit that owns a layer stack, a target set, and a frame rate,
// and drives them to the wire through the Wire Sender.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jontk/ddpctl/blend"
	pkgcontext "github.com/jontk/ddpctl/pkg/context"
	ctrlerrors "github.com/jontk/ddpctl/pkg/errors"
	"github.com/jontk/ddpctl/pkg/logging"
	"github.com/jontk/ddpctl/pkg/metrics"
	"github.com/jontk/ddpctl/ddp"
	"github.com/jontk/ddpctl/effects"
	"github.com/jontk/ddpctl/resolve"
)

// State is a position in the session lifecycle state machine of
// spec.md §4.5: (create) → ACTIVE ↔ PAUSED, ACTIVE|PAUSED --stop--> STOPPED.
type State int32

const (
	StateCreated State = iota
	StateActive
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// AddressResolver maps a fixture ID to its network endpoint.
type AddressResolver func(fixtureID string) (ddp.FixtureAddr, bool)

// BrightnessFunc returns the scalar brightness multiplier in effect at
// wall-clock time now; the Schedule Engine installs one to drive ramps
// (spec.md §4.8 step 5). The zero value behaves as a constant 1.0.
type BrightnessFunc func(now time.Time) float64

// Spec is the construction-time description of a session (spec.md §4.5:
// "A session is created with {targets, layers|effect, fps, excludedFixtures?}").
type Spec struct {
	ID               string
	Targets          []resolve.Target
	Layers           []LayerSpec
	FPS              int
	ExcludedFixtures []string
	Exclusive        bool
}

// Deps collects the session's external dependencies, shared across every
// session a Supervisor manages.
type Deps struct {
	Catalogs  resolve.Catalogs
	Addr      AddressResolver
	Sender    *ddp.Sender
	Registry  *effects.Registry
	Palettes  func(id string) (effects.Palette, bool)
	Logger    logging.Logger
	Metrics   metrics.Collector
	Timeouts  *pkgcontext.TimeoutConfig
	MailboxSz int
}

// Session is a running streaming unit (spec.md Glossary).
type Session struct {
	id        string
	createdAt time.Time
	exclusive bool
	fps       int
	interval  time.Duration

	targets          []resolve.Target
	excludedFixtures []string

	catalogs resolve.Catalogs
	addr     AddressResolver
	sender   *ddp.Sender
	registry *effects.Registry
	palettes func(id string) (effects.Palette, bool)
	logger   logging.Logger
	metrics  metrics.Collector
	timeouts *pkgcontext.TimeoutConfig

	// layers, t are owned exclusively by the worker goroutine (run); no
	// other goroutine may touch them, so no mutex guards them (spec.md §5:
	// "Effect particle state: owned exclusively by the session's worker").
	layers []*Layer
	t      float64

	state atomic.Int32

	brightness atomic.Value // BrightnessFunc

	mailbox chan func(*Session)
	doneCh  chan struct{}

	previewMu   sync.Mutex
	previewSubs map[int]chan PreviewFrame
	previewNext int
	previewSeq  uint64
	previewLast time.Time
}

// PreviewFrame is one composited frame published for a session's live
// preview subscribers (spec.md §10.8), downsampled for browser delivery
// rather than wire transmission.
type PreviewFrame struct {
	SessionID string
	Sequence  uint64
	Width     int
	Pixels    []byte // RGB triplets, len == Width*3
	Timestamp time.Time
}

// SubscribePreview registers a preview-frame subscriber and returns its
// channel along with an unsubscribe function the caller must invoke
// exactly once. Frames are dropped, never blocked on, when the
// subscriber's buffer is full: the preview feed is best-effort and must
// never slow down the frame loop.
func (s *Session) SubscribePreview() (<-chan PreviewFrame, func()) {
	ch := make(chan PreviewFrame, 4)
	s.previewMu.Lock()
	id := s.previewNext
	s.previewNext++
	s.previewSubs[id] = ch
	s.previewMu.Unlock()

	unsubscribe := func() {
		s.previewMu.Lock()
		if _, ok := s.previewSubs[id]; ok {
			delete(s.previewSubs, id)
			close(ch)
		}
		s.previewMu.Unlock()
	}
	return ch, unsubscribe
}

// previewInterval caps the live preview feed at 10Hz (spec.md §10.8),
// independent of the session's own frame rate.
const previewInterval = time.Second / 10

// publishPreview fans composite out to every live preview subscriber,
// called from the worker goroutine once per rendered target per tick.
// Ticks between previewInterval are dropped rather than queued: the
// preview feed trails the real output, it never throttles it.
func (s *Session) publishPreview(n int, composite []byte) {
	s.previewMu.Lock()
	defer s.previewMu.Unlock()
	if len(s.previewSubs) == 0 {
		return
	}
	now := time.Now()
	if now.Sub(s.previewLast) < previewInterval {
		return
	}
	s.previewLast = now
	s.previewSeq++
	frame := PreviewFrame{
		SessionID: s.id,
		Sequence:  s.previewSeq,
		Width:     n,
		Pixels:    append([]byte(nil), composite...),
		Timestamp: time.Now(),
	}
	for _, ch := range s.previewSubs {
		select {
		case ch <- frame:
		default:
		}
	}
}

// New constructs a session in the Created state. Call Start to begin
// streaming.
func New(spec Spec, deps Deps) (*Session, error) {
	if len(spec.Layers) == 0 {
		return nil, ctrlerrors.NewValidationError(ctrlerrors.ErrorCodeInvalidParameter,
			"session requires at least one layer", "layers", nil)
	}
	if len(spec.Targets) == 0 {
		return nil, ctrlerrors.NewValidationError(ctrlerrors.ErrorCodeInvalidTarget,
			"session requires at least one target", "targets", nil)
	}
	fps := spec.FPS
	if fps <= 0 {
		fps = 30
	}
	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	timeouts := deps.Timeouts
	if timeouts == nil {
		timeouts = pkgcontext.DefaultTimeoutConfig()
	}
	met := deps.Metrics
	if met == nil {
		met = metrics.NoOpCollector{}
	}

	layers := make([]*Layer, 0, len(spec.Layers))
	for _, ls := range spec.Layers {
		layers = append(layers, newLayer(ls))
	}

	mailboxSz := deps.MailboxSz
	if mailboxSz <= 0 {
		mailboxSz = 32
	}

	s := &Session{
		id:               id,
		createdAt:        now(),
		exclusive:        spec.Exclusive,
		fps:              fps,
		interval:         time.Second / time.Duration(fps),
		targets:          spec.Targets,
		excludedFixtures: append([]string(nil), spec.ExcludedFixtures...),
		catalogs:         deps.Catalogs,
		addr:             deps.Addr,
		sender:           deps.Sender,
		registry:         deps.Registry,
		palettes:         deps.Palettes,
		logger:           logger.WithSessionID(id),
		metrics:          met,
		timeouts:         timeouts,
		layers:           layers,
		mailbox:          make(chan func(*Session), mailboxSz),
		doneCh:           make(chan struct{}),
		previewSubs:      make(map[int]chan PreviewFrame),
	}
	s.brightness.Store(BrightnessFunc(func(time.Time) float64 { return 1.0 }))
	return s, nil
}

var now = time.Now

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// Exclusive reports whether this session claims exclusive use of its spans.
func (s *Session) Exclusive() bool { return s.exclusive }

// CreatedAt returns the session's construction time, used by the
// Supervisor/Schedule Engine to break priority ties.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Targets returns the session's configured targets.
func (s *Session) Targets() []resolve.Target { return append([]resolve.Target(nil), s.targets...) }

// State returns the session's current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Done returns a channel closed once the session's worker has exited (after
// emitting its blackout frame, if any was emitted).
func (s *Session) Done() <-chan struct{} { return s.doneCh }

// SetBrightnessFunc installs the per-frame brightness multiplier hook; nil
// restores the constant-1.0 default.
func (s *Session) SetBrightnessFunc(fn BrightnessFunc) {
	if fn == nil {
		fn = func(time.Time) float64 { return 1.0 }
	}
	s.brightness.Store(fn)
}

func (s *Session) currentBrightness() float64 {
	fn, _ := s.brightness.Load().(BrightnessFunc)
	if fn == nil {
		return 1.0
	}
	return fn(time.Now())
}

// Start transitions the session to ACTIVE and launches its frame loop
// (spec.md §4.5: "the first frame's t = 0").
func (s *Session) Start() {
	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateActive)) {
		return
	}
	go s.run()
}

// Pause stops emitting frames, keeping layer state and freezing t
// (spec.md §4.5).
func (s *Session) Pause() error {
	return s.enqueue(func(sess *Session) {
		if sess.State() == StateActive {
			sess.state.Store(int32(StatePaused))
		}
	})
}

// Resume continues from the frozen t (spec.md §4.5).
func (s *Session) Resume() error {
	return s.enqueue(func(sess *Session) {
		if sess.State() == StatePaused {
			sess.state.Store(int32(StateActive))
		}
	})
}

// Stop releases session state; the worker emits one blackout frame per
// target before exiting (spec.md §4.5).
func (s *Session) Stop() error {
	for {
		cur := s.State()
		if cur == StateStopped {
			return nil
		}
		if cur == StateCreated {
			if s.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				close(s.doneCh)
				return nil
			}
			continue
		}
		break
	}
	return s.enqueue(func(sess *Session) {
		sess.state.Store(int32(StateStopped))
	})
}

// UpdateParameter applies a hot update to paramName on every layer that
// already defines it (spec.md §4.5), atomically between frames.
func (s *Session) UpdateParameter(paramName string, value effects.Param) error {
	return s.enqueue(func(sess *Session) {
		for _, l := range sess.layers {
			if _, ok := l.Params[paramName]; ok {
				l.Params[paramName] = value
			}
		}
	})
}

// UpdateLayerParameter applies a hot update to one layer's parameter
// (spec.md §4.5), atomically between frames.
func (s *Session) UpdateLayerParameter(layerID, paramName string, value effects.Param) error {
	return s.enqueue(func(sess *Session) {
		if l := sess.findLayer(layerID); l != nil {
			l.Params[paramName] = value
		}
	})
}

// LayerProperty is the set of hot-updatable layer-level properties
// (spec.md §4.5: "updateLayerProperty(layerID, {blendMode|opacity|enabled})").
type LayerProperty struct {
	BlendMode *blend.Mode
	Opacity   *float64
	Enabled   *bool
}

// UpdateLayerProperty applies a hot update to one layer's compositing
// properties, atomically between frames.
func (s *Session) UpdateLayerProperty(layerID string, prop LayerProperty) error {
	return s.enqueue(func(sess *Session) {
		l := sess.findLayer(layerID)
		if l == nil {
			return
		}
		if prop.BlendMode != nil {
			l.BlendMode = *prop.BlendMode
		}
		if prop.Opacity != nil {
			l.Opacity = *prop.Opacity
		}
		if prop.Enabled != nil {
			l.Enabled = *prop.Enabled
		}
	})
}

func (s *Session) findLayer(id string) *Layer {
	for _, l := range s.layers {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// enqueue delivers cmd to the worker goroutine, to be applied strictly
// between frames (spec.md §5: "delivered via a per-session command mailbox
// drained between frames").
func (s *Session) enqueue(cmd func(*Session)) error {
	if s.State() == StateStopped {
		return nil
	}
	select {
	case s.mailbox <- cmd:
		return nil
	case <-s.doneCh:
		return nil
	}
}

// run is the session's worker goroutine: the sole owner of t, layers, and
// per-layer particle state.
func (s *Session) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-s.mailbox:
			cmd(s)
		case <-ticker.C:
			if s.State() == StateActive {
				s.tick()
			}
		}

		if s.State() == StateStopped {
			s.blackout()
			s.closePreviewSubs()
			close(s.doneCh)
			return
		}
	}
}

// closePreviewSubs closes every live preview subscriber channel once the
// session stops, so `SubscribePreview` callers observe feed closure
// instead of hanging.
func (s *Session) closePreviewSubs() {
	s.previewMu.Lock()
	defer s.previewMu.Unlock()
	for id, ch := range s.previewSubs {
		close(ch)
		delete(s.previewSubs, id)
	}
}

// tick implements the per-frame loop of spec.md §4.5.
func (s *Session) tick() {
	// t advances once the frame is rendered, so the first frame is
	// generated at t = 0.
	defer func() { s.t += 1.0 / float64(s.fps) }()

	anySpans := false
	for _, target := range s.targets {
		spans, err := s.resolveHealthy(target)
		if err != nil {
			s.logger.Warn("target resolve failed", "target", target.ID, "error", err)
			continue
		}
		if len(spans) == 0 {
			continue
		}
		anySpans = true

		n := resolve.TotalLength(spans)
		composite, err := s.renderFrame(n)
		if err != nil {
			s.logger.Error("frame render failed", "target", target.ID, "error", err)
			continue
		}
		applyBrightness(composite, s.currentBrightness())
		s.publishPreview(n, composite)
		s.dispatch(spans, composite)
	}

	if !anySpans {
		// spec.md §4.9: "A session losing all its fixtures transitions to STOPPED."
		s.state.Store(int32(StateStopped))
	}
}

// resolveHealthy resolves target, then omits any fixture the Sender has
// marked unhealthy (spec.md §4.9).
func (s *Session) resolveHealthy(target resolve.Target) ([]resolve.Span, error) {
	spans, err := resolve.Resolve(target, s.catalogs, s.excludedFixtures)
	if err != nil {
		return nil, err
	}
	if s.sender == nil {
		return spans, nil
	}
	healthy := spans[:0:0]
	for _, sp := range spans {
		if !s.sender.IsUnhealthy(sp.FixtureID) {
			healthy = append(healthy, sp)
		}
	}
	return healthy, nil
}

// renderFrame generates every enabled layer's buffer at pixel count n and
// composites them per spec.md §4.3. A generator error disables the
// offending layer and the session continues (spec.md §7).
func (s *Session) renderFrame(n int) ([]byte, error) {
	blendLayers := make([]blend.Layer, 0, len(s.layers))
	for _, l := range s.layers {
		if !l.Enabled {
			continue
		}
		buf, err := s.registry.Generate(l.EffectType, effects.Context{
			Params:        l.Params,
			N:             n,
			T:             s.t,
			LookupPalette: s.palettes,
			State:         &l.State,
		})
		if err != nil {
			s.logger.Error("effect generator failed, disabling layer", "layer_id", l.ID, "effect_type", l.EffectType, "error", err)
			l.Enabled = false
			continue
		}
		blendLayers = append(blendLayers, blend.Layer{
			Buffer:  buf,
			Mode:    l.BlendMode,
			Opacity: l.Opacity,
			Enabled: true,
		})
	}
	return blend.CompositeStack(n, blendLayers)
}

// dispatch splits composite across the per-fixture spans and hands each
// to the Wire Sender (spec.md §4.5 step 4).
func (s *Session) dispatch(spans []resolve.Span, composite []byte) {
	if s.sender == nil || s.addr == nil {
		return
	}
	offset := 0
	for _, sp := range spans {
		length := sp.Length * 3
		if offset+length > len(composite) {
			break
		}
		slice := composite[offset : offset+length]
		offset += length

		addr, ok := s.addr(sp.FixtureID)
		if !ok {
			s.logger.Warn("no address for fixture", "fixture_id", sp.FixtureID)
			continue
		}
		ctx, cancel := pkgcontext.WithTimeout(context.Background(), pkgcontext.OpWrite, s.timeouts)
		if err := s.sender.SendPixels(ctx, addr, uint32(sp.PixelOffset*3), slice); err != nil {
			s.logger.Debug("send failed", "fixture_id", sp.FixtureID, "error", err)
		}
		cancel()
	}
}

// blackout emits one all-zero frame to every target's last-known spans,
// the synchronous final action before the worker exits (spec.md §4.5,
// §5: "the blackout frame is a synchronous final action before the
// session's worker exits").
func (s *Session) blackout() {
	if s.sender == nil || s.addr == nil {
		return
	}
	for _, target := range s.targets {
		spans, err := resolve.Resolve(target, s.catalogs, s.excludedFixtures)
		if err != nil {
			continue
		}
		for _, sp := range spans {
			addr, ok := s.addr(sp.FixtureID)
			if !ok {
				continue
			}
			zeros := make([]byte, sp.Length*3)
			ctx, cancel := pkgcontext.WithTimeout(context.Background(), pkgcontext.OpWrite, s.timeouts)
			if err := s.sender.SendPixels(ctx, addr, uint32(sp.PixelOffset*3), zeros); err != nil {
				s.logger.Debug("blackout send failed", "fixture_id", sp.FixtureID, "error", err)
			}
			cancel()
		}
	}
}

func applyBrightness(buf []byte, factor float64) {
	if factor == 1.0 {
		return
	}
	if factor < 0 {
		factor = 0
	}
	for i, v := range buf {
		scaled := float64(v) * factor
		if scaled > 255 {
			scaled = 255
		}
		buf[i] = byte(scaled + 0.5)
	}
}
