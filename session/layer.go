// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"github.com/jontk/ddpctl/blend"
	"github.com/jontk/ddpctl/effects"
)

// LayerSpec is the construction-time description of one compositing layer.
type LayerSpec struct {
	ID         string
	EffectType string
	Params     effects.Params
	BlendMode  blend.Mode
	Opacity    float64
	Enabled    bool
}

// Layer is one entry in a session's compositing stack. It is owned
// exclusively by the session's worker goroutine once the session starts
// (spec.md §5).
type Layer struct {
	ID         string
	EffectType string
	Params     effects.Params
	BlendMode  blend.Mode
	Opacity    float64
	Enabled    bool

	// State is opaque per-layer storage for the particle-based generators
	// (spec.md §4.4); of these, confetti and shockwave-dual store a value
	// here, and skipping-rock does not use it.
	State any
}

func newLayer(spec LayerSpec) *Layer {
	params := spec.Params
	if params == nil {
		params = effects.Params{}
	}
	mode := spec.BlendMode
	if mode == "" {
		mode = blend.ModeNormal
	}
	// Opacity's zero value is indistinguishable from "fully transparent";
	// treat an unset Opacity as fully opaque, matching most layer authors'
	// intent.
	opacity := spec.Opacity
	if opacity == 0 {
		opacity = 1.0
	}
	return &Layer{
		ID:         spec.ID,
		EffectType: spec.EffectType,
		Params:     params,
		BlendMode:  mode,
		Opacity:    opacity,
		Enabled:    spec.Enabled,
	}
}
