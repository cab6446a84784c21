// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package supervisor implements the Session Supervisor (spec.md §4.6): a
// single mutex-guarded registry of running sessions, exclusive-claim
// conflict resolution, and the teardown blackout guarantee.
package supervisor

import (
	"sort"
	"sync"
	"time"

	ctrlerrors "github.com/jontk/ddpctl/pkg/errors"
	"github.com/jontk/ddpctl/pkg/logging"
	"github.com/jontk/ddpctl/resolve"
	"github.com/jontk/ddpctl/session"
)

// StopWaitTimeout bounds how long startSession waits for a preempted
// exclusive-conflicting session to finish its blackout before the new
// session starts (spec.md §4.6).
const StopWaitTimeout = 2 * time.Second

// Supervisor is the global session registry (spec.md §4.6).
type Supervisor struct {
	deps     session.Deps
	catalogs resolve.Catalogs
	logger   logging.Logger

	mu       sync.Mutex
	sessions map[string]*session.Session

	eventMu   sync.Mutex
	eventSubs map[int]chan Event
	eventNext int
}

// New creates a Supervisor. deps is shared by every session it starts.
func New(deps session.Deps, logger logging.Logger) *Supervisor {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Supervisor{
		deps:      deps,
		catalogs:  deps.Catalogs,
		logger:    logger,
		sessions:  make(map[string]*session.Session),
		eventSubs: make(map[int]chan Event),
	}
}

// Event reports a session lifecycle transition for the management API's
// SSE feed (spec.md §6, §10.8).
type Event struct {
	EventType string // "session_started", "session_stopped", "session_paused", "session_resumed"
	SessionID string
	Detail    map[string]string
	Timestamp time.Time
}

// SubscribeEvents registers a lifecycle-event subscriber and returns its
// channel along with an unsubscribe function the caller must invoke
// exactly once. Events are dropped, never blocked on, when the
// subscriber's buffer is full.
func (sup *Supervisor) SubscribeEvents() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	sup.eventMu.Lock()
	id := sup.eventNext
	sup.eventNext++
	sup.eventSubs[id] = ch
	sup.eventMu.Unlock()

	unsubscribe := func() {
		sup.eventMu.Lock()
		if _, ok := sup.eventSubs[id]; ok {
			delete(sup.eventSubs, id)
			close(ch)
		}
		sup.eventMu.Unlock()
	}
	return ch, unsubscribe
}

func (sup *Supervisor) publishEvent(eventType, sessionID string) {
	sup.eventMu.Lock()
	defer sup.eventMu.Unlock()
	if len(sup.eventSubs) == 0 {
		return
	}
	ev := Event{EventType: eventType, SessionID: sessionID, Timestamp: time.Now()}
	for _, ch := range sup.eventSubs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// StartSession validates spec, resolves any exclusive-claim conflicts by
// stopping the losing sessions, creates and starts a new session, and
// registers it (spec.md §4.6).
func (sup *Supervisor) StartSession(spec session.Spec) (*session.Session, error) {
	if len(spec.Layers) == 0 {
		return nil, ctrlerrors.NewValidationError(ctrlerrors.ErrorCodeInvalidParameter,
			"startSession requires at least one layer", "layers", nil)
	}
	spans, err := sup.resolveAll(spec.Targets)
	if err != nil {
		return nil, err
	}
	if len(spans) == 0 {
		return nil, ctrlerrors.NewValidationError(ctrlerrors.ErrorCodeInvalidTarget,
			"targets resolve to zero spans", "targets", spec.Targets)
	}

	if spec.Exclusive {
		sup.preemptOverlapping(spans)
	}

	sess, err := session.New(spec, sup.deps)
	if err != nil {
		return nil, err
	}

	sup.mu.Lock()
	sup.sessions[sess.ID()] = sess
	sup.mu.Unlock()

	sess.Start()
	sup.publishEvent("session_started", sess.ID())
	return sess, nil
}

// Get returns the session registered under id.
func (sup *Supervisor) Get(id string) (*session.Session, bool) {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	s, ok := sup.sessions[id]
	return s, ok
}

// Enumerate returns every registered session, most-recently-created first.
func (sup *Supervisor) Enumerate() []*session.Session {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	out := make([]*session.Session, 0, len(sup.sessions))
	for _, s := range sup.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().After(out[j].CreatedAt()) })
	return out
}

// Stop stops the session registered under id and deregisters it.
func (sup *Supervisor) Stop(id string) error {
	sup.mu.Lock()
	s, ok := sup.sessions[id]
	delete(sup.sessions, id)
	sup.mu.Unlock()

	if !ok {
		return ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeSessionNotFound, "session", id)
	}
	err := s.Stop()
	sup.publishEvent("session_stopped", id)
	return err
}

// Pause pauses the session registered under id.
func (sup *Supervisor) Pause(id string) error {
	s, ok := sup.Get(id)
	if !ok {
		return ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeSessionNotFound, "session", id)
	}
	if err := s.Pause(); err != nil {
		return err
	}
	sup.publishEvent("session_paused", id)
	return nil
}

// Resume resumes the session registered under id.
func (sup *Supervisor) Resume(id string) error {
	s, ok := sup.Get(id)
	if !ok {
		return ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeSessionNotFound, "session", id)
	}
	if err := s.Resume(); err != nil {
		return err
	}
	sup.publishEvent("session_resumed", id)
	return nil
}

// StopByTarget stops every session whose span set intersects target
// (spec.md §6: "stop any session touching a target").
func (sup *Supervisor) StopByTarget(target resolve.Target) error {
	targetSpans, err := resolve.Resolve(target, sup.catalogs, nil)
	if err != nil {
		return err
	}
	for _, s := range sup.Enumerate() {
		spans, err := sup.resolveAll(s.Targets())
		if err != nil {
			continue
		}
		if spansOverlap(targetSpans, spans) {
			_ = sup.Stop(s.ID())
		}
	}
	return nil
}

// ActiveTargets enumerates the distinct logical targets being driven,
// split by kind (spec.md §4.6, §6: GET /stream/active-targets).
type ActiveTargets struct {
	Devices  []string
	Groups   []string
	Virtuals []string
}

// Counts returns the size of each target kind's active set.
func (a ActiveTargets) Counts() map[string]int {
	return map[string]int{"devices": len(a.Devices), "groups": len(a.Groups), "virtuals": len(a.Virtuals)}
}

// ActiveTargets returns the distinct targets currently driven by any
// non-stopped session.
func (sup *Supervisor) ActiveTargets() ActiveTargets {
	devices := map[string]struct{}{}
	groups := map[string]struct{}{}
	virtuals := map[string]struct{}{}

	for _, s := range sup.Enumerate() {
		if s.State() == session.StateStopped {
			continue
		}
		for _, t := range s.Targets() {
			switch t.Kind {
			case resolve.KindDevice:
				devices[t.ID] = struct{}{}
			case resolve.KindGroup:
				groups[t.ID] = struct{}{}
			case resolve.KindVirtual:
				virtuals[t.ID] = struct{}{}
			}
		}
	}

	return ActiveTargets{
		Devices:  sortedKeys(devices),
		Groups:   sortedKeys(groups),
		Virtuals: sortedKeys(virtuals),
	}
}

// Shutdown stops every session, guaranteeing each has emitted its
// blackout frame before returning (spec.md §4.6: "on process shutdown,
// the Supervisor MUST stop every session").
func (sup *Supervisor) Shutdown() {
	for _, s := range sup.Enumerate() {
		_ = sup.Stop(s.ID())
		select {
		case <-s.Done():
		case <-time.After(StopWaitTimeout):
			sup.logger.Warn("session did not finish blackout before shutdown timeout", "session_id", s.ID())
		}
	}
}

// preemptOverlapping stops every non-stopped session whose resolved spans
// intersect spans, and waits for each to finish (spec.md §4.6).
func (sup *Supervisor) preemptOverlapping(spans []resolve.Span) {
	for _, s := range sup.Enumerate() {
		if s.State() == session.StateStopped {
			continue
		}
		existing, err := sup.resolveAll(s.Targets())
		if err != nil {
			continue
		}
		if !spansOverlap(spans, existing) {
			continue
		}
		sup.logger.Info("preempting session for exclusive claim", "session_id", s.ID())
		_ = sup.Stop(s.ID())
		select {
		case <-s.Done():
		case <-time.After(StopWaitTimeout):
		}
	}
}

func (sup *Supervisor) resolveAll(targets []resolve.Target) ([]resolve.Span, error) {
	var all []resolve.Span
	for _, t := range targets {
		spans, err := resolve.Resolve(t, sup.catalogs, nil)
		if err != nil {
			return nil, err
		}
		all = append(all, spans...)
	}
	return all, nil
}

// spansOverlap reports whether any span in a shares pixel range with any
// span in b on the same fixture.
func spansOverlap(a, b []resolve.Span) bool {
	for _, x := range a {
		for _, y := range b {
			if x.FixtureID != y.FixtureID {
				continue
			}
			xEnd := x.PixelOffset + x.Length
			yEnd := y.PixelOffset + y.Length
			if x.PixelOffset < yEnd && y.PixelOffset < xEnd {
				return true
			}
		}
	}
	return false
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
