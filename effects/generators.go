// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package effects

import "math"

// builtins is the must-implement effect catalog of spec.md §4.4.
var builtins = map[string]Generator{
	"solid":          genSolid,
	"rainbow":        genRainbow,
	"color-wipe":     genColorWipe,
	"comet":          genComet,
	"chase":          genChase,
	"breathing":      genBreathing,
	"wave":           genWave,
	"twinkle":        genTwinkle,
	"fire":           genFire,
	"matrix":         genMatrix,
	"confetti":       genConfetti,
	"glitter":        genGlitter,
	"cylon":          genCylon,
	"color-twinkle":  genColorTwinkle,
	"pacifica":       genPacifica,
	"plasma":         genPlasma,
	"shockwave-dual": genShockwaveDual,
	"skipping-rock":  genSkippingRock,
}

func colorsOrDefault(p Params, def ...string) []string {
	return p.Colors("colors", def)
}

// genSolid fills every pixel with the first configured color, ignoring t
// (spec.md §8 scenario 2).
func genSolid(ctx Context) ([]byte, error) {
	colors := colorsOrDefault(ctx.Params, "#FFFFFF")
	r, g, b := paletteOrFirstColor(ctx, colors, 0)

	buf := make([]byte, 3*ctx.N)
	for i := 0; i < ctx.N; i++ {
		buf[3*i], buf[3*i+1], buf[3*i+2] = r, g, b
	}
	return buf, nil
}

// genRainbow cycles hue across the strip, optionally rotating with t*speed
// (spec.md §8 scenario 3: speed=0 ⇒ static hues i/N*360).
func genRainbow(ctx Context) ([]byte, error) {
	p := ctx.Params
	saturation := p.Number("saturation", 1.0)
	brightness := p.Number("brightness", 1.0)
	speed := p.speed()
	usePalette := p.usePalette()
	colors := colorsOrDefault(p)
	reverse, mirror := p.reverse(), p.mirror()

	buf := make([]byte, 3*ctx.N)
	phase := speed * ctx.T * 360.0

	for i := 0; i < ctx.N; i++ {
		idx := mapIndex(i, ctx.N, reverse, mirror)
		var r, g, b byte
		if usePalette && len(colors) > 0 {
			t := float64(idx) / float64(ctx.N)
			r, g, b = samplePaletteOrColors(ctx.LookupPalette, p.PaletteRef("palette"), colors, t+speed*ctx.T)
		} else {
			hue := float64(idx)/float64(ctx.N)*360.0 + phase
			r, g, b = hsvToRGB(hue, saturation, brightness)
		}
		buf[3*i], buf[3*i+1], buf[3*i+2] = r, g, b
	}
	return buf, nil
}

// genColorWipe advances a filled boundary across the strip; pixels behind
// the boundary show the current cycle's color, pixels ahead show the
// previous cycle's color (spec.md §8 scenario 4).
func genColorWipe(ctx Context) ([]byte, error) {
	p := ctx.Params
	colors := colorsOrDefault(p, "#FFFFFF")
	k := len(colors)
	speed := p.speed()
	n := ctx.N

	rawProgress := speed * ctx.T * float64(n)
	cycleIndex := int(math.Floor(rawProgress / float64(n)))
	cycleProgress := rawProgress - float64(cycleIndex)*float64(n)

	currentIdx := ((cycleIndex % k) + k) % k
	previousIdx := ((cycleIndex-1)%k + k) % k

	cr, cg, cb := parseHexColor(colors[currentIdx])
	pr, pg, pb := parseHexColor(colors[previousIdx])

	buf := make([]byte, 3*n)
	for i := 0; i < n; i++ {
		if float64(i) <= cycleProgress {
			buf[3*i], buf[3*i+1], buf[3*i+2] = cr, cg, cb
		} else {
			buf[3*i], buf[3*i+1], buf[3*i+2] = pr, pg, pb
		}
	}
	return buf, nil
}

// genComet moves a bright head pixel along the strip with an exponentially
// fading tail.
func genComet(ctx Context) ([]byte, error) {
	p := ctx.Params
	colors := colorsOrDefault(p, "#FFFFFF")
	speed := p.speed()
	tailLength := p.Number("tailLength", float64(ctx.N)/4)
	if tailLength < 1 {
		tailLength = 1
	}
	n := ctx.N

	headPos := math.Mod(speed*ctx.T*float64(n), float64(n))
	r, g, b := paletteOrFirstColor(ctx, colors, 0)

	buf := make([]byte, 3*n)
	for i := 0; i < n; i++ {
		dist := headPos - float64(i)
		if dist < 0 {
			dist += float64(n)
		}
		if dist >= tailLength {
			continue
		}
		brightness := 1.0 - dist/tailLength
		buf[3*i] = clampByte(float64(r) * brightness)
		buf[3*i+1] = clampByte(float64(g) * brightness)
		buf[3*i+2] = clampByte(float64(b) * brightness)
	}
	return buf, nil
}

// genChase lights evenly spaced pixels that march along the strip, using
// either a palette or a cycling single color, over an optional background.
func genChase(ctx Context) ([]byte, error) {
	p := ctx.Params
	colors := colorsOrDefault(p, "#FFFFFF")
	background := p.Color("background", "#000000")
	spacing := int(p.Number("spacing", 3))
	if spacing < 1 {
		spacing = 1
	}
	speed := p.speed()
	n := ctx.N

	bgR, bgG, bgB := parseHexColor(background)
	offset := int(math.Mod(speed*ctx.T*float64(spacing), float64(spacing)))
	if offset < 0 {
		offset += spacing
	}

	buf := make([]byte, 3*n)
	for i := 0; i < n; i++ {
		if (i+offset)%spacing == 0 {
			t := float64(i) / float64(n)
			r, g, b := samplePaletteOrColors(ctx.LookupPalette, p.PaletteRef("palette"), colors, t+speed*ctx.T)
			buf[3*i], buf[3*i+1], buf[3*i+2] = r, g, b
		} else {
			buf[3*i], buf[3*i+1], buf[3*i+2] = bgR, bgG, bgB
		}
	}
	return buf, nil
}

// genBreathing fades brightness of a single color in and out with a
// raised-cosine curve of period 1/speed seconds.
func genBreathing(ctx Context) ([]byte, error) {
	p := ctx.Params
	colors := colorsOrDefault(p, "#FFFFFF")
	speed := p.speed()
	r, g, b := paletteOrFirstColor(ctx, colors, 0)

	phase := wrapUnit(speed * ctx.T)
	brightness := 0.5 - 0.5*math.Cos(2*math.Pi*phase)

	buf := make([]byte, 3*ctx.N)
	for i := 0; i < ctx.N; i++ {
		buf[3*i] = clampByte(float64(r) * brightness)
		buf[3*i+1] = clampByte(float64(g) * brightness)
		buf[3*i+2] = clampByte(float64(b) * brightness)
	}
	return buf, nil
}

// genWave travels a sinusoidal brightness envelope along the strip.
func genWave(ctx Context) ([]byte, error) {
	p := ctx.Params
	colors := colorsOrDefault(p, "#FFFFFF")
	speed := p.speed()
	wavelength := p.Number("wavelength", float64(ctx.N)/2)
	if wavelength <= 0 {
		wavelength = float64(ctx.N)
	}
	r, g, b := paletteOrFirstColor(ctx, colors, 0)

	buf := make([]byte, 3*ctx.N)
	for i := 0; i < ctx.N; i++ {
		phase := float64(i)/wavelength*2*math.Pi - speed*ctx.T*2*math.Pi
		brightness := 0.5 + 0.5*math.Sin(phase)
		buf[3*i] = clampByte(float64(r) * brightness)
		buf[3*i+1] = clampByte(float64(g) * brightness)
		buf[3*i+2] = clampByte(float64(b) * brightness)
	}
	return buf, nil
}

// genTwinkle flickers pixels on/off based on a deterministic per-pixel
// hash of time, so the same t always yields the same frame.
func genTwinkle(ctx Context) ([]byte, error) {
	p := ctx.Params
	colors := colorsOrDefault(p, "#FFFFFF")
	density := p.Number("density", 0.1)
	speed := p.speed()
	r, g, b := paletteOrFirstColor(ctx, colors, 0)

	epochLen := 1.0 / maxf64(speed, 0.01)
	epoch := int64(math.Floor(ctx.T / epochLen))
	phase := wrapUnit(ctx.T / epochLen)
	brightness := math.Sin(math.Pi * phase)

	buf := make([]byte, 3*ctx.N)
	for i := 0; i < ctx.N; i++ {
		seed := uint64(i)*2654435761 + uint64(epoch)*0x9E3779B97F4A7C15
		if pseudoRandom(seed) < density {
			buf[3*i] = clampByte(float64(r) * brightness)
			buf[3*i+1] = clampByte(float64(g) * brightness)
			buf[3*i+2] = clampByte(float64(b) * brightness)
		}
	}
	return buf, nil
}

// genColorTwinkle is genTwinkle but each sparkle samples its own color
// from the palette/color list instead of a single fixed color.
func genColorTwinkle(ctx Context) ([]byte, error) {
	p := ctx.Params
	colors := colorsOrDefault(p, "#FFFFFF")
	density := p.Number("density", 0.1)
	speed := p.speed()

	epochLen := 1.0 / maxf64(speed, 0.01)
	epoch := int64(math.Floor(ctx.T / epochLen))
	phase := wrapUnit(ctx.T / epochLen)
	brightness := math.Sin(math.Pi * phase)

	buf := make([]byte, 3*ctx.N)
	for i := 0; i < ctx.N; i++ {
		seed := uint64(i)*2654435761 + uint64(epoch)*0x9E3779B97F4A7C15
		roll := pseudoRandom(seed)
		if roll < density {
			colorT := pseudoRandom(seed ^ 0xABCDEF)
			r, g, b := samplePaletteOrColors(ctx.LookupPalette, p.PaletteRef("palette"), colors, colorT)
			buf[3*i] = clampByte(float64(r) * brightness)
			buf[3*i+1] = clampByte(float64(g) * brightness)
			buf[3*i+2] = clampByte(float64(b) * brightness)
		}
	}
	return buf, nil
}

// genGlitter overlays pseudo-random white sparkles on a solid background.
func genGlitter(ctx Context) ([]byte, error) {
	p := ctx.Params
	background := p.Color("background", "#000000")
	density := p.Number("density", 0.05)
	bgR, bgG, bgB := parseHexColor(background)

	bucket := int64(math.Floor(ctx.T * 30)) // ~30 sparkle refreshes/sec

	buf := make([]byte, 3*ctx.N)
	for i := 0; i < ctx.N; i++ {
		buf[3*i], buf[3*i+1], buf[3*i+2] = bgR, bgG, bgB
		seed := uint64(i)*2654435761 + uint64(bucket)*0x9E3779B97F4A7C15
		if pseudoRandom(seed) < density {
			buf[3*i], buf[3*i+1], buf[3*i+2] = 255, 255, 255
		}
	}
	return buf, nil
}

// genFire approximates a flame gradient via layered deterministic noise.
func genFire(ctx Context) ([]byte, error) {
	p := ctx.Params
	speed := p.speed()
	cooling := p.Number("cooling", 0.6)

	buf := make([]byte, 3*ctx.N)
	for i := 0; i < ctx.N; i++ {
		base := noise1D(float64(i)*0.3, ctx.T*speed*2)
		heat := math.Max(0, base-cooling*float64(i)/float64(maxInt(ctx.N, 1)))
		heat = clamp01(heat*1.6 + 0.15*noise1D(float64(i)*1.7, ctx.T*speed*5))

		r := clampByte(heat * 255)
		g := clampByte(heat * heat * 180)
		b := clampByte(heat * heat * heat * 60)
		buf[3*i], buf[3*i+1], buf[3*i+2] = r, g, b
	}
	return buf, nil
}

// genMatrix drops cascading green pixels down the strip, each column
// (pixel position) with its own deterministic phase.
func genMatrix(ctx Context) ([]byte, error) {
	p := ctx.Params
	speed := p.speed()

	buf := make([]byte, 3*ctx.N)
	for i := 0; i < ctx.N; i++ {
		colPhase := pseudoRandom(uint64(i) * 0x9E3779B97F4A7C15)
		pos := wrapUnit(ctx.T*speed*0.5 + colPhase)
		intensity := math.Pow(1-math.Abs(pos-0.5)*2, 3)
		if intensity < 0 {
			intensity = 0
		}
		buf[3*i] = 0
		buf[3*i+1] = clampByte(intensity * 255)
		buf[3*i+2] = clampByte(intensity * 40)
	}
	return buf, nil
}

// genCylon bounces a bright bar back and forth across the strip with a
// fading trail on both sides (Larson-scanner style).
func genCylon(ctx Context) ([]byte, error) {
	p := ctx.Params
	colors := colorsOrDefault(p, "#FF0000")
	speed := p.speed()
	width := p.Number("width", 3)
	r, g, b := paletteOrFirstColor(ctx, colors, 0)
	n := ctx.N

	period := 2 * float64(n)
	pos := math.Mod(speed*ctx.T*float64(n), period)
	if pos > float64(n) {
		pos = period - pos
	}

	buf := make([]byte, 3*n)
	for i := 0; i < n; i++ {
		dist := math.Abs(float64(i) - pos)
		if dist >= width {
			continue
		}
		brightness := 1 - dist/width
		buf[3*i] = clampByte(float64(r) * brightness)
		buf[3*i+1] = clampByte(float64(g) * brightness)
		buf[3*i+2] = clampByte(float64(b) * brightness)
	}
	return buf, nil
}

// genPacifica layers several slow sinusoids of blue-green hues to
// approximate an ocean-wave ambiance.
func genPacifica(ctx Context) ([]byte, error) {
	speed := ctx.Params.speed()
	n := ctx.N

	buf := make([]byte, 3*n)
	for i := 0; i < n; i++ {
		x := float64(i) / float64(maxInt(n, 1))
		wave1 := math.Sin(2*math.Pi*(x*1.0-ctx.T*speed*0.10)) * 0.5
		wave2 := math.Sin(2*math.Pi*(x*2.3+ctx.T*speed*0.06)) * 0.3
		wave3 := math.Sin(2*math.Pi*(x*0.6-ctx.T*speed*0.15)) * 0.2
		level := clamp01(0.5 + wave1 + wave2 + wave3)

		hue := 180 + 40*level // cyan-to-teal range
		r, g, b := hsvToRGB(hue, 0.6, 0.35+0.5*level)
		buf[3*i], buf[3*i+1], buf[3*i+2] = r, g, b
	}
	return buf, nil
}

// genPlasma sums two travelling sine fields and maps the result to hue.
func genPlasma(ctx Context) ([]byte, error) {
	speed := ctx.Params.speed()
	n := ctx.N

	buf := make([]byte, 3*n)
	for i := 0; i < n; i++ {
		x := float64(i)
		v := math.Sin(x*0.3+ctx.T*speed) + math.Sin(x*0.11-ctx.T*speed*1.7) + math.Sin((x+ctx.T*speed*13)*0.05)
		hue := (v + 3) / 6 * 360
		r, g, b := hsvToRGB(hue, 1, 1)
		buf[3*i], buf[3*i+1], buf[3*i+2] = r, g, b
	}
	return buf, nil
}

// shockwaveState is the per-layer state value genShockwaveDual allocates
// on first use (spec.md §4.4). Its lastTriggerBucket field is never
// written or read; the rings are computed from T alone.
type shockwaveState struct {
	lastTriggerBucket int64
}

// genShockwaveDual emits two expanding rings of brightness from the strip
// center, retriggering periodically.
func genShockwaveDual(ctx Context) ([]byte, error) {
	p := ctx.Params
	colors := colorsOrDefault(p, "#FFFFFF")
	speed := p.speed()
	period := p.Number("period", 2.0)
	r, g, b := paletteOrFirstColor(ctx, colors, 0)
	n := ctx.N

	if ctx.State != nil && *ctx.State == nil {
		*ctx.State = &shockwaveState{}
	}

	bucket := int64(math.Floor(ctx.T / period))
	elapsed := ctx.T - float64(bucket)*period
	radius := elapsed * speed * float64(n)

	center := float64(n) / 2

	buf := make([]byte, 3*n)
	for i := 0; i < n; i++ {
		dist := math.Abs(float64(i) - center)
		ringDist := math.Abs(dist - radius)
		if ringDist >= 2 {
			continue
		}
		brightness := 1 - ringDist/2
		buf[3*i] = clampByte(float64(r) * brightness)
		buf[3*i+1] = clampByte(float64(g) * brightness)
		buf[3*i+2] = clampByte(float64(b) * brightness)
	}
	return buf, nil
}

// confettiState holds the active sparks of the confetti generator.
type confettiState struct {
	sparks   map[int]float64 // pixel index -> spawn time
	lastTick float64
}

// genConfetti spawns short-lived colored sparks at pseudo-random
// positions, fading each out over its lifetime; state persists spark
// positions across frames so the effect isn't purely a function of t.
func genConfetti(ctx Context) ([]byte, error) {
	p := ctx.Params
	colors := colorsOrDefault(p, "#FFFFFF")
	spawnRate := p.Number("spawnRate", 0.3) // expected spawns per pixel per second
	lifetime := p.Number("lifetime", 0.5)
	n := ctx.N

	var st *confettiState
	if ctx.State != nil {
		if *ctx.State == nil {
			*ctx.State = &confettiState{sparks: make(map[int]float64)}
		}
		st, _ = (*ctx.State).(*confettiState)
	}
	if st == nil {
		st = &confettiState{sparks: make(map[int]float64)}
	}

	dt := ctx.T - st.lastTick
	if dt < 0 || dt > 1 {
		dt = 1.0 / 30
	}
	st.lastTick = ctx.T

	bucket := int64(math.Floor(ctx.T * 1000))
	for i := 0; i < n; i++ {
		seed := uint64(i)*2654435761 + uint64(bucket)*0x2545F4914F6CDD1D
		if pseudoRandom(seed) < spawnRate*dt {
			st.sparks[i] = ctx.T
		}
	}

	buf := make([]byte, 3*n)
	for i, spawnedAt := range st.sparks {
		age := ctx.T - spawnedAt
		if age < 0 || age >= lifetime || i < 0 || i >= n {
			delete(st.sparks, i)
			continue
		}
		brightness := 1 - age/lifetime
		colorT := pseudoRandom(uint64(i)*31 + uint64(spawnedAt*1000))
		r, g, b := samplePaletteOrColors(ctx.LookupPalette, p.PaletteRef("palette"), colors, colorT)
		buf[3*i] = clampByte(float64(r) * brightness)
		buf[3*i+1] = clampByte(float64(g) * brightness)
		buf[3*i+2] = clampByte(float64(b) * brightness)
	}
	return buf, nil
}

// genSkippingRock animates a point bouncing across the strip with
// parabolic, progressively shorter hops — like a stone skipping on water.
func genSkippingRock(ctx Context) ([]byte, error) {
	p := ctx.Params
	colors := colorsOrDefault(p, "#FFFFFF")
	speed := p.speed()
	r, g, b := paletteOrFirstColor(ctx, colors, 0)
	n := ctx.N

	hopPeriod := 1.0 / maxf64(speed, 0.01)
	hopIndex := math.Floor(ctx.T / hopPeriod)
	hopPhase := wrapUnit(ctx.T / hopPeriod)

	decay := math.Pow(0.7, hopIndex)
	hopWidth := float64(n) / 6 * (0.4 + 0.6*decay)
	pos := math.Mod(hopIndex*hopWidth+hopPhase*hopWidth, float64(n))

	buf := make([]byte, 3*n)
	for i := 0; i < n; i++ {
		dist := math.Abs(float64(i) - pos)
		if dist >= 2 {
			continue
		}
		brightness := (1 - dist/2) * decay
		buf[3*i] = clampByte(float64(r) * brightness)
		buf[3*i+1] = clampByte(float64(g) * brightness)
		buf[3*i+2] = clampByte(float64(b) * brightness)
	}
	return buf, nil
}

// paletteOrFirstColor samples the configured palette at t=0, or returns
// the first configured color if no palette is set.
func paletteOrFirstColor(ctx Context, colors []string, t float64) (r, g, b byte) {
	p := ctx.Params
	if p.usePalette() {
		return samplePaletteOrColors(ctx.LookupPalette, p.PaletteRef("palette"), colors, t)
	}
	if len(colors) > 0 {
		return parseHexColor(colors[0])
	}
	return 0, 0, 0
}

func maxf64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// noise1D is a smooth deterministic pseudo-noise function: linear
// interpolation between hashed integer lattice points.
func noise1D(x, t float64) float64 {
	xi := math.Floor(x + t)
	f := (x + t) - xi
	a := pseudoRandom(uint64(int64(xi)) * 0x9E3779B97F4A7C15)
	b := pseudoRandom(uint64(int64(xi)+1) * 0x9E3779B97F4A7C15)
	return a + (b-a)*f
}

// pseudoRandom maps a seed to a deterministic value in [0,1) via
// integer bit mixing (splitmix64-style), avoiding shared mutable RNG
// state so generators stay pure functions of their inputs.
func pseudoRandom(seed uint64) float64 {
	x := seed
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return float64(x%1_000_000) / 1_000_000.0
}
