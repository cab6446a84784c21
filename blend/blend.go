// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package blend allocates RGB frame buffers and composites layered frames
// using the fixed blend-mode algebra of spec.md §4.3. Every buffer is
// 3*N bytes (no alpha channel); blending always clamps to [0,255].
package blend

import ctrlerrors "github.com/jontk/ddpctl/pkg/errors"

// Mode is one of the closed set of blend algorithms spec.md §4.3 defines.
type Mode string

const (
	ModeNormal     Mode = "normal"
	ModeAdd        Mode = "add"
	ModeMultiply   Mode = "multiply"
	ModeScreen     Mode = "screen"
	ModeOverlay    Mode = "overlay"
	ModeSoftLight  Mode = "soft-light"
	ModeHardLight  Mode = "hard-light"
	ModeDifference Mode = "difference"
	ModeExclusion  Mode = "exclusion"
	ModeMax        Mode = "max"
	ModeMin        Mode = "min"
	ModeReplace    Mode = "replace"
)

// ValidModes enumerates every accepted blend mode, for API-boundary
// validation (spec.md §9: "blend-mode strings: a closed enum").
var ValidModes = map[Mode]bool{
	ModeNormal: true, ModeAdd: true, ModeMultiply: true, ModeScreen: true,
	ModeOverlay: true, ModeSoftLight: true, ModeHardLight: true,
	ModeDifference: true, ModeExclusion: true, ModeMax: true, ModeMin: true,
	ModeReplace: true,
}

// NewBuffer allocates a zeroed RGB buffer for n pixels (3n bytes).
func NewBuffer(n int) []byte {
	return make([]byte, 3*n)
}

// Layer is one enabled/disabled contribution to a composite stack.
type Layer struct {
	Buffer  []byte
	Mode    Mode
	Opacity float64
	Enabled bool
}

// CompositeStack composites layers bottom-to-top into a freshly allocated
// n-pixel buffer. Disabled layers are skipped; the bottom-most enabled
// layer's output is used directly, as if blended onto an all-zero
// destination (spec.md §4.3).
func CompositeStack(n int, layers []Layer) ([]byte, error) {
	out := NewBuffer(n)
	for _, layer := range layers {
		if !layer.Enabled {
			continue
		}
		if err := Composite(out, layer.Buffer, layer.Mode, layer.Opacity); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Composite blends src onto dst in place (dst is the running composite,
// src is one layer's output) using mode and opacity, per the formula
// `out = f(src,dst)*opacity + dst*(1-opacity)` (replace bypasses the mix).
// src and dst must have equal, 3-divisible length.
func Composite(dst, src []byte, mode Mode, opacity float64) error {
	if len(dst) != len(src) {
		return ctrlerrors.NewInternalError("blend: src/dst length mismatch", nil)
	}
	if len(dst)%3 != 0 {
		return ctrlerrors.NewInternalError("blend: buffer length not a multiple of 3", nil)
	}
	fn, ok := blendFuncs[mode]
	if !ok {
		return ctrlerrors.NewValidationError(ctrlerrors.ErrorCodeInvalidBlendMode, "unknown blend mode", "mode", mode)
	}

	if opacity < 0 {
		opacity = 0
	} else if opacity > 1 {
		opacity = 1
	}

	for i := 0; i < len(dst); i++ {
		s := float64(src[i]) / 255.0
		d := float64(dst[i]) / 255.0

		var out float64
		if mode == ModeReplace {
			out = s
		} else {
			out = fn(s, d)*opacity + d*(1-opacity)
		}
		dst[i] = clampByte(out * 255.0)
	}

	return nil
}

// blendFunc computes the per-channel blended value from normalized
// source/destination channels, before the opacity mix is applied.
type blendFunc func(s, d float64) float64

var blendFuncs = map[Mode]blendFunc{
	ModeNormal: func(s, d float64) float64 { return s },
	ModeAdd:    func(s, d float64) float64 { return min1(s + d) },
	ModeMultiply: func(s, d float64) float64 { return s * d },
	ModeScreen:   func(s, d float64) float64 { return 1 - (1-s)*(1-d) },
	ModeOverlay: func(s, d float64) float64 {
		if d < 0.5 {
			return 2 * s * d
		}
		return 1 - 2*(1-s)*(1-d)
	},
	ModeSoftLight: func(s, d float64) float64 { return (1-2*s)*d*d + 2*s*d },
	ModeHardLight: func(s, d float64) float64 {
		if s < 0.5 {
			return 2 * s * d
		}
		return 1 - 2*(1-s)*(1-d)
	},
	ModeDifference: func(s, d float64) float64 { return abs(s - d) },
	ModeExclusion:  func(s, d float64) float64 { return s + d - 2*s*d },
	ModeMax:        func(s, d float64) float64 { return maxf(s, d) },
	ModeMin:        func(s, d float64) float64 { return minf(s, d) },
	ModeReplace:    func(s, d float64) float64 { return s },
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clampByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v + 0.5)
}
