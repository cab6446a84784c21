// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package effects

import "math"

// Palette is an ordered, non-empty color list sampled as a cyclic
// continuous function of t ∈ [0,1) (spec.md §3, §4.4).
type Palette struct {
	ID     string
	Colors []string // hex strings, k ≥ 1
}

// Sample performs the mandatory-wrap piecewise-linear interpolation of
// spec.md §4.4: x = t*k, i1 = floor(x) mod k, i2 = (i1+1) mod k,
// f = x - floor(x); result = lerp(c[i1], c[i2], f).
func (pal Palette) Sample(t float64) (r, g, b byte) {
	k := len(pal.Colors)
	if k == 0 {
		return 0, 0, 0
	}
	if k == 1 {
		return parseHexColor(pal.Colors[0])
	}

	t = wrapUnit(t)
	x := t * float64(k)
	i1 := int(math.Floor(x)) % k
	i2 := (i1 + 1) % k
	f := x - math.Floor(x)

	r1, g1, b1 := parseHexColor(pal.Colors[i1])
	r2, g2, b2 := parseHexColor(pal.Colors[i2])

	return lerpByte(r1, r2, f), lerpByte(g1, g2, f), lerpByte(b1, b2, f)
}

// wrapUnit folds t into [0,1), supporting seamless cycling past 1.0 and
// negative t.
func wrapUnit(t float64) float64 {
	t = math.Mod(t, 1.0)
	if t < 0 {
		t += 1.0
	}
	return t
}

func lerpByte(a, b byte, f float64) byte {
	v := float64(a) + (float64(b)-float64(a))*f
	return clampByte(v)
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

// samplePaletteOrColors samples either an explicit Palette (by ID, via
// lookup) or a plain color list as if it were a palette, falling back to
// black when neither is available.
func samplePaletteOrColors(lookupPalette func(id string) (Palette, bool), paletteID string, colors []string, t float64) (r, g, b byte) {
	if paletteID != "" && lookupPalette != nil {
		if pal, ok := lookupPalette(paletteID); ok {
			return pal.Sample(t)
		}
	}
	if len(colors) > 0 {
		return Palette{Colors: colors}.Sample(t)
	}
	return 0, 0, 0
}

// hsvToRGB converts h ∈ [0,360), s,v ∈ [0,1] to RGB bytes.
func hsvToRGB(h, s, v float64) (r, g, b byte) {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var r1, g1, b1 float64
	switch {
	case h < 60:
		r1, g1, b1 = c, x, 0
	case h < 120:
		r1, g1, b1 = x, c, 0
	case h < 180:
		r1, g1, b1 = 0, c, x
	case h < 240:
		r1, g1, b1 = 0, x, c
	case h < 300:
		r1, g1, b1 = x, 0, c
	default:
		r1, g1, b1 = c, 0, x
	}

	return clampByte((r1 + m) * 255), clampByte((g1 + m) * 255), clampByte((b1 + m) * 255)
}
