// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package playlist

import (
	"sort"
	"testing"
	"time"

	"github.com/jontk/ddpctl/ddp"
	"github.com/jontk/ddpctl/effects"
	"github.com/jontk/ddpctl/pkg/pool"
	"github.com/jontk/ddpctl/resolve"
	"github.com/jontk/ddpctl/session"
	"github.com/jontk/ddpctl/supervisor"
)

func testSupervisor(t *testing.T) *supervisor.Supervisor {
	t.Helper()
	fixtures := map[string]resolve.Fixture{"fixture-a": {ID: "fixture-a", PixelCount: 10}}
	catalogs := resolve.Catalogs{
		Fixture: func(id string) (resolve.Fixture, bool) { f, ok := fixtures[id]; return f, ok },
		Group:   func(id string) (resolve.Group, bool) { return resolve.Group{}, false },
		Virtual: func(id string) (resolve.Virtual, bool) { return resolve.Virtual{}, false },
	}
	deps := session.Deps{
		Catalogs: catalogs,
		Addr: func(fixtureID string) (ddp.FixtureAddr, bool) {
			return ddp.FixtureAddr{FixtureID: fixtureID, Address: "127.0.0.1:4048"}, true
		},
		Sender:   ddp.NewSender(ddp.Config{Pool: pool.NewUDPSenderPool(nil, nil)}),
		Registry: effects.NewRegistry(),
	}
	return supervisor.New(deps, nil)
}

func testPresets(id string) (Preset, bool) {
	presets := map[string]Preset{
		"red": {ID: "red", Effect: &EffectRef{
			Type:   "solid",
			Params: effects.Params{"colors": {Kind: effects.KindColorArray, Colors: []string{"#FF0000"}}},
		}},
		"green": {ID: "green", Effect: &EffectRef{
			Type:   "solid",
			Params: effects.Params{"colors": {Kind: effects.KindColorArray, Colors: []string{"#00FF00"}}},
		}},
	}
	p, ok := presets[id]
	return p, ok
}

func TestRunner_StartRejectsEmptyItems(t *testing.T) {
	r := New(testSupervisor(t), testPresets, nil)
	if _, err := r.Start(Spec{Targets: []resolve.Target{{Kind: resolve.KindDevice, ID: "fixture-a"}}}); err == nil {
		t.Fatal("expected error for empty items")
	}
}

func TestRunner_StartAndStop(t *testing.T) {
	r := New(testSupervisor(t), testPresets, nil)
	spec := Spec{
		ID:      "pl1",
		Targets: []resolve.Target{{Kind: resolve.KindDevice, ID: "fixture-a"}},
		Items: []Item{
			{PresetID: "red", DurationSeconds: 60},
			{PresetID: "green", DurationSeconds: 60},
		},
		FPS: 30,
	}
	p, err := r.Start(spec)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)

	active, ok := r.Active()
	if !ok || active.ID() != "pl1" {
		t.Fatalf("expected pl1 active, got %v %v", active, ok)
	}
	if status := p.Status(); status.ActivePresetID != "red" {
		t.Fatalf("active preset = %q, want red", status.ActivePresetID)
	}

	p.Stop()
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("playlist did not stop")
	}

	if _, ok := r.Active(); ok {
		t.Fatal("expected no active playlist after stop")
	}
}

func TestRunner_StartingNewPlaylistStopsPrior(t *testing.T) {
	r := New(testSupervisor(t), testPresets, nil)
	base := Spec{
		Targets: []resolve.Target{{Kind: resolve.KindDevice, ID: "fixture-a"}},
		Items:   []Item{{PresetID: "red", DurationSeconds: 60}},
		FPS:     30,
	}

	first, err := r.Start(Spec{ID: "first", Targets: base.Targets, Items: base.Items, FPS: base.FPS})
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)

	second, err := r.Start(Spec{ID: "second", Targets: base.Targets, Items: base.Items, FPS: base.FPS})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("expected prior playlist to stop")
	}
	active, ok := r.Active()
	if !ok || active.ID() != second.ID() {
		t.Fatalf("expected second playlist active, got %v", active)
	}
	second.Stop()
	<-second.Done()
}

func TestMaterialize_ShuffleIsPermutation(t *testing.T) {
	r := &Runner{}
	spec := Spec{Items: []Item{{PresetID: "a"}, {PresetID: "b"}, {PresetID: "c"}, {PresetID: "d"}}, Shuffle: true}
	order := r.materialize(spec)
	got := append([]int(nil), order...)
	sort.Ints(got)
	want := []int{0, 1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("materialize did not produce a permutation: %v", order)
		}
	}
}
