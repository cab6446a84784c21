// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package effects

import (
	"fmt"
	"sync"

	ctrlerrors "github.com/jontk/ddpctl/pkg/errors"
)

// Context is everything a generator needs for one invocation.
type Context struct {
	Params Params
	N      int     // pixelCount
	T      float64 // seconds, monotonic per session

	// LookupPalette resolves a palette parameter's referenced ID. May be
	// nil for generators that only use inline color lists.
	LookupPalette func(id string) (Palette, bool)

	// State is per-layer opaque storage for the particle-based
	// generators (spec.md §4.4): confetti keeps its active sparks here
	// across invocations, shockwave-dual allocates a state value here,
	// and skipping-rock is computed from T alone and leaves it untouched.
	// The session owns the backing value's lifetime: one instance per
	// layer, discarded on stop.
	State *any
}

// Generator is a deterministic pure function producing a 3N-byte RGB
// buffer for one frame. Implementations must not retain N or Params
// across calls; any needed continuity goes through ctx.State.
type Generator func(ctx Context) ([]byte, error)

// Registry maps effect type name to its Generator (spec.md §9).
type Registry struct {
	mu         sync.RWMutex
	generators map[string]Generator
}

// NewRegistry creates a registry pre-populated with the must-implement
// effect catalog of spec.md §4.4.
func NewRegistry() *Registry {
	r := &Registry{generators: make(map[string]Generator)}
	for name, gen := range builtins {
		r.generators[name] = gen
	}
	return r
}

// Register adds or overrides a generator under name.
func (r *Registry) Register(name string, gen Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[name] = gen
}

// Get returns the generator registered under name.
func (r *Registry) Get(name string) (Generator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gen, ok := r.generators[name]
	return gen, ok
}

// Generate runs the named generator, translating an unknown effect type
// into a Validation error per spec.md §7.
func (r *Registry) Generate(effectType string, ctx Context) ([]byte, error) {
	gen, ok := r.Get(effectType)
	if !ok {
		return nil, ctrlerrors.NewValidationError(ctrlerrors.ErrorCodeInvalidParameter,
			fmt.Sprintf("unknown effect type %q", effectType), "type", effectType)
	}
	return gen(ctx)
}

// Names returns every registered effect type name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	return names
}
