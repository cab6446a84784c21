// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package effects

import "testing"

func requireRGB(t *testing.T, buf []byte, i int, r, g, b byte) {
	t.Helper()
	off := 3 * i
	if buf[off] != r || buf[off+1] != g || buf[off+2] != b {
		t.Errorf("pixel %d = %02X%02X%02X, want %02X%02X%02X", i, buf[off], buf[off+1], buf[off+2], r, g, b)
	}
}

// TestGenSolid_SingleColor matches spec.md §8 scenario 2: colors=["#FF0000"],
// N=10 ⇒ ten repetitions of FF 00 00, independent of t.
func TestGenSolid_SingleColor(t *testing.T) {
	params := Params{
		"colors": {Kind: KindColorArray, Colors: []string{"#FF0000"}},
	}
	buf, err := genSolid(Context{Params: params, N: 10, T: 42})
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != 30 {
		t.Fatalf("len = %d, want 30", len(buf))
	}
	for i := 0; i < 10; i++ {
		requireRGB(t, buf, i, 0xFF, 0x00, 0x00)
	}
}

// TestGenRainbow_StaticHuesAtZeroSpeed matches spec.md §8 scenario 3:
// speed=0, saturation=1, brightness=1, usePalette=false, N=6, t=0.
func TestGenRainbow_StaticHuesAtZeroSpeed(t *testing.T) {
	params := Params{
		"speed":      {Kind: KindNumber, Number: 0},
		"saturation": {Kind: KindNumber, Number: 1},
		"brightness": {Kind: KindNumber, Number: 1},
		"usePalette": {Kind: KindBoolean, Bool: false},
	}
	buf, err := genRainbow(Context{Params: params, N: 6, T: 0})
	if err != nil {
		t.Fatal(err)
	}

	want := [][3]byte{
		{0xFF, 0x00, 0x00},
		{0xFF, 0xFF, 0x00},
		{0x00, 0xFF, 0x00},
		{0x00, 0xFF, 0xFF},
		{0x00, 0x00, 0xFF},
		{0xFF, 0x00, 0xFF},
	}
	for i, c := range want {
		requireRGB(t, buf, i, c[0], c[1], c[2])
	}
}

// TestGenColorWipe_MidpointSplit exercises the wipe-boundary formula: at
// cycleIndex=1 (odd ⇒ current color is the second configured color) and
// cycleProgress=5 on a 10-pixel strip, the first 6 pixels show the current
// color and the last 4 show the previous one (spec.md §8 scenario 4 shape).
func TestGenColorWipe_MidpointSplit(t *testing.T) {
	params := Params{
		"colors": {Kind: KindColorArray, Colors: []string{"#FF0000", "#0000FF"}},
		"speed":  {Kind: KindNumber, Number: 1},
	}
	buf, err := genColorWipe(Context{Params: params, N: 10, T: 1.5})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 6; i++ {
		requireRGB(t, buf, i, 0x00, 0x00, 0xFF)
	}
	for i := 6; i < 10; i++ {
		requireRGB(t, buf, i, 0xFF, 0x00, 0x00)
	}
}

// TestPalette_WraparoundIsSeamless verifies t and t+1.0 sample identically.
func TestPalette_WraparoundIsSeamless(t *testing.T) {
	pal := Palette{Colors: []string{"#FF0000", "#00FF00", "#0000FF"}}
	r1, g1, b1 := pal.Sample(0.37)
	r2, g2, b2 := pal.Sample(1.37)
	if r1 != r2 || g1 != g2 || b1 != b2 {
		t.Errorf("wraparound mismatch: (%d,%d,%d) vs (%d,%d,%d)", r1, g1, b1, r2, g2, b2)
	}
}

func TestRegistry_GenerateUnknownType(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Generate("does-not-exist", Context{N: 1})
	if err == nil {
		t.Fatal("expected error for unknown effect type")
	}
}

func TestRegistry_AllBuiltinsProduceCorrectLength(t *testing.T) {
	reg := NewRegistry()
	params := Params{
		"colors": {Kind: KindColorArray, Colors: []string{"#FF0000", "#00FF00", "#0000FF"}},
	}
	lookup := func(id string) (Palette, bool) { return Palette{}, false }

	for _, name := range reg.Names() {
		var state any
		ctx := Context{Params: params, N: 12, T: 0.5, LookupPalette: lookup, State: &state}
		buf, err := reg.Generate(name, ctx)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if len(buf) != 36 {
			t.Errorf("%s: len = %d, want 36", name, len(buf))
		}
	}
}
