// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package schedule

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/jontk/ddpctl/resolve"
	"github.com/jontk/ddpctl/session"
	"github.com/jontk/ddpctl/solar"
)

// Start begins the ticker-driven evaluation loop (spec.md §4.8, ticker
// idiom grounded on the teacher corpus's poll-loop pattern). Start is a
// no-op if already running.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.mu.Unlock()

	go e.runLoop(runCtx)
}

// Stop halts the evaluation loop and waits for it to exit. Rules'
// currently active sessions are left running; callers that want a full
// teardown should also call Supervisor.Shutdown.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	done := e.done
	e.cancel = nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (e *Engine) runLoop(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	e.evaluate(time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.evaluate(now)
		}
	}
}

// candidate is one rule's evaluation result for the current tick.
type candidate struct {
	rule        Rule
	windowStart time.Time
	windowEnd   time.Time
	spans       []resolve.Span
}

// evaluate runs one tick of schedule evaluation (spec.md §4.8 steps
// 1-7). Each rule is evaluated independently and a panic or error
// recovered from one rule does not prevent the others from being
// evaluated (spec.md §7: "The Schedule Engine isolates per-rule
// failures").
func (e *Engine) evaluate(now time.Time) {
	rules := e.Rules()
	holidays := e.holidays()

	wanting := make(map[string]candidate)
	for _, r := range rules {
		if !r.Enabled {
			e.deactivate(r.ID)
			continue
		}
		cand, ok := e.evaluateRule(r, now, holidays)
		if !ok {
			e.deactivate(r.ID)
			continue
		}
		wanting[r.ID] = cand
	}

	winners, losers := resolveOverlaps(wanting)
	for _, id := range losers {
		e.suspend(id)
	}
	for _, id := range winners {
		e.activateOrAdvance(wanting[id], now)
	}
}

// evaluateRule runs the day/holiday filter and window computation for
// one rule, recovering from any error (including a panic surfaced by a
// malformed rule) so it cannot take down the tick for other rules.
func (e *Engine) evaluateRule(r Rule, now time.Time, holidays []solar.Holiday) (cand candidate, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("schedule rule panicked during evaluation, skipping", "rule_id", r.ID, "panic", rec)
			ok = false
		}
	}()

	today := now.In(e.locationFor(r))
	if !matchesDayFilter(r, today) {
		return candidate{}, false
	}

	matched, err := matchesHolidayFilter(r, today, holidays)
	if err != nil {
		e.logger.Error("schedule rule holiday filter failed", "rule_id", r.ID, "error", err)
		return candidate{}, false
	}
	if !matched {
		return candidate{}, false
	}

	start, end, err := computeWindow(r, today, e.sun, e.defaultLoc)
	if err != nil {
		e.logger.Error("schedule rule window computation failed", "rule_id", r.ID, "error", err)
		return candidate{}, false
	}
	if now.Before(start) || !now.Before(end) {
		return candidate{}, false
	}

	spans, err := e.resolveAll(r.Targets)
	if err != nil {
		e.logger.Error("schedule rule target resolution failed", "rule_id", r.ID, "error", err)
		return candidate{}, false
	}

	return candidate{rule: r, windowStart: start, windowEnd: end, spans: spans}, true
}

func (e *Engine) locationFor(r Rule) *time.Location {
	if r.TZ == "" {
		return e.defaultLoc
	}
	loc, err := time.LoadLocation(r.TZ)
	if err != nil {
		return e.defaultLoc
	}
	return loc
}

func (e *Engine) resolveAll(targets []resolve.Target) ([]resolve.Span, error) {
	var all []resolve.Span
	for _, t := range targets {
		spans, err := resolve.Resolve(t, e.catalogs, nil)
		if err != nil {
			return nil, err
		}
		all = append(all, spans...)
	}
	return all, nil
}

// resolveOverlaps splits wanting rules into winners and losers
// (spec.md §4.8 step 6: higher priority wins; ties broken by earliest
// createdAt; losers are suspended).
func resolveOverlaps(wanting map[string]candidate) (winners, losers []string) {
	ids := make([]string, 0, len(wanting))
	for id := range wanting {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := wanting[ids[i]].rule, wanting[ids[j]].rule
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	var claimed []resolve.Span
	for _, id := range ids {
		cand := wanting[id]
		if spansOverlapAny(cand.spans, claimed) {
			losers = append(losers, id)
			continue
		}
		winners = append(winners, id)
		claimed = append(claimed, cand.spans...)
	}
	return winners, losers
}

func spansOverlapAny(spans, claimed []resolve.Span) bool {
	for _, x := range spans {
		for _, y := range claimed {
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

// suspend stops a losing rule's session without clearing its window
// bookkeeping, so it can resume the same window if it wins a later tick
// (spec.md §4.8 step 6: "suspended (not started or stopped if active)").
func (e *Engine) suspend(ruleID string) {
	e.mu.Lock()
	st, ok := e.state[ruleID]
	e.mu.Unlock()
	if !ok || st.suspended {
		return
	}

	if st.sessionID != "" {
		_ = e.sup.Stop(st.sessionID)
		st.sessionID = ""
	}
	st.suspended = true
}

// deactivate tears down a rule's state entirely: used when the rule no
// longer matches at all (window closed, disabled, or filter failed).
func (e *Engine) deactivate(ruleID string) {
	e.mu.Lock()
	st, ok := e.state[ruleID]
	if ok {
		delete(e.state, ruleID)
	}
	e.mu.Unlock()
	if ok && st.sessionID != "" {
		_ = e.sup.Stop(st.sessionID)
	}
}

// activateOrAdvance starts a winning rule's session on first match,
// advances its sequence item on subsequent ticks once the current
// item's duration elapses, and re-activates it after a suspension
// (spec.md §4.8 step 4).
func (e *Engine) activateOrAdvance(cand candidate, now time.Time) {
	r := cand.rule

	e.mu.Lock()
	st, exists := e.state[r.ID]
	if !exists {
		st = &ruleState{windowStart: cand.windowStart, windowEnd: cand.windowEnd}
		st.seqOrder = materializeSequence(r)
		e.state[r.ID] = st
	}
	st.suspended = false
	needsStart := st.sessionID == ""
	e.mu.Unlock()

	if !needsStart && len(r.Sequence) > 1 {
		needsStart = e.advanceSequenceIfDue(r, st, now)
	}
	if !needsStart {
		return
	}

	layers, ok := e.presets(currentPresetID(r, st))
	if !ok {
		e.logger.Warn("schedule rule references unknown preset, skipping activation", "rule_id", r.ID)
		return
	}

	sess, err := e.sup.StartSession(session.Spec{
		Targets: r.Targets,
		Layers:  layers,
		FPS:     r.FPS,
	})
	if err != nil {
		e.logger.Error("schedule rule failed to start session", "rule_id", r.ID, "error", err)
		return
	}
	sess.SetBrightnessFunc(brightnessRamp(r, cand.windowStart, cand.windowEnd))

	e.mu.Lock()
	st.sessionID = sess.ID()
	st.itemStartedAt = now
	e.mu.Unlock()
}

// advanceSequenceIfDue moves to the next sequence item once the current
// item's duration has elapsed, returning true if a fresh session start
// is needed to apply the new item's layers.
func (e *Engine) advanceSequenceIfDue(r Rule, st *ruleState, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	current := r.Sequence[st.seqOrder[st.seqIdx]]
	if now.Sub(st.itemStartedAt) < time.Duration(current.DurationSeconds)*time.Second {
		return false
	}

	next := st.seqIdx + 1
	if next >= len(st.seqOrder) {
		if !r.SequenceLoop {
			return false // hold on the last item for the remainder of the window
		}
		st.seqOrder = materializeSequence(r)
		next = 0
	}
	st.seqIdx = next

	if st.sessionID != "" {
		_ = e.sup.Stop(st.sessionID)
		st.sessionID = ""
	}
	return true
}

func currentPresetID(r Rule, st *ruleState) string {
	return r.Sequence[st.seqOrder[st.seqIdx]].PresetID
}

// materializeSequence returns an ordering over sequence indices:
// identity unless SequenceShuffle is set, in which case it's a fresh
// uniform permutation (spec.md §4.8 step 4, mirroring the playlist
// package's materialize).
func materializeSequence(r Rule) []int {
	order := make([]int, len(r.Sequence))
	for i := range order {
		order[i] = i
	}
	if r.SequenceShuffle {
		rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	return order
}
