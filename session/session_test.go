// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"testing"
	"time"

	"github.com/jontk/ddpctl/ddp"
	"github.com/jontk/ddpctl/effects"
	"github.com/jontk/ddpctl/pkg/pool"
	"github.com/jontk/ddpctl/resolve"
)

func testCatalogs(t *testing.T) resolve.Catalogs {
	t.Helper()
	fixtures := map[string]resolve.Fixture{
		"fixture-a": {ID: "fixture-a", PixelCount: 10},
	}
	return resolve.Catalogs{
		Fixture: func(id string) (resolve.Fixture, bool) { f, ok := fixtures[id]; return f, ok },
		Group:   func(id string) (resolve.Group, bool) { return resolve.Group{}, false },
		Virtual: func(id string) (resolve.Virtual, bool) { return resolve.Virtual{}, false },
	}
}

func testDeps(t *testing.T) Deps {
	t.Helper()
	sender := ddp.NewSender(ddp.Config{
		Pool: pool.NewUDPSenderPool(nil, nil),
	})
	return Deps{
		Catalogs: testCatalogs(t),
		Addr: func(fixtureID string) (ddp.FixtureAddr, bool) {
			return ddp.FixtureAddr{FixtureID: fixtureID, Address: "127.0.0.1:4048"}, true
		},
		Sender:   sender,
		Registry: effects.NewRegistry(),
	}
}

func TestNew_RequiresLayersAndTargets(t *testing.T) {
	deps := testDeps(t)
	if _, err := New(Spec{Targets: []resolve.Target{{Kind: resolve.KindDevice, ID: "fixture-a"}}}, deps); err == nil {
		t.Fatal("expected error for missing layers")
	}
	if _, err := New(Spec{Layers: []LayerSpec{{EffectType: "solid"}}}, deps); err == nil {
		t.Fatal("expected error for missing targets")
	}
}

func TestSession_LifecycleTransitions(t *testing.T) {
	deps := testDeps(t)
	spec := Spec{
		Targets: []resolve.Target{{Kind: resolve.KindDevice, ID: "fixture-a"}},
		Layers: []LayerSpec{
			{ID: "l1", EffectType: "solid", Enabled: true, Opacity: 1,
				Params: effects.Params{"colors": {Kind: effects.KindColorArray, Colors: []string{"#FF0000"}}}},
		},
		FPS: 60,
	}
	s, err := New(spec, deps)
	if err != nil {
		t.Fatal(err)
	}
	if s.State() != StateCreated {
		t.Fatalf("state = %v, want created", s.State())
	}

	s.Start()
	time.Sleep(20 * time.Millisecond)
	if s.State() != StateActive {
		t.Fatalf("state = %v, want active", s.State())
	}

	if err := s.Pause(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if s.State() != StatePaused {
		t.Fatalf("state = %v, want paused", s.State())
	}

	if err := s.Resume(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if s.State() != StateActive {
		t.Fatalf("state = %v, want active", s.State())
	}

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not finish stopping")
	}
	if s.State() != StateStopped {
		t.Fatalf("state = %v, want stopped", s.State())
	}
}

func TestSession_StopBeforeStartIsImmediate(t *testing.T) {
	deps := testDeps(t)
	spec := Spec{
		Targets: []resolve.Target{{Kind: resolve.KindDevice, ID: "fixture-a"}},
		Layers:  []LayerSpec{{ID: "l1", EffectType: "solid", Enabled: true}},
	}
	s, err := New(spec, deps)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateStopped {
		t.Fatalf("state = %v, want stopped", s.State())
	}
}

func TestSession_UpdateParameterAppliesBetweenFrames(t *testing.T) {
	deps := testDeps(t)
	spec := Spec{
		Targets: []resolve.Target{{Kind: resolve.KindDevice, ID: "fixture-a"}},
		Layers: []LayerSpec{
			{ID: "l1", EffectType: "solid", Enabled: true, Opacity: 1,
				Params: effects.Params{"colors": {Kind: effects.KindColorArray, Colors: []string{"#FF0000"}}}},
		},
		FPS: 30,
	}
	s, err := New(spec, deps)
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	if err := s.UpdateParameter("colors", effects.Param{Kind: effects.KindColorArray, Colors: []string{"#00FF00"}}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)

	l := s.findLayer("l1")
	colors := l.Params["colors"].Colors
	if len(colors) != 1 || colors[0] != "#00FF00" {
		t.Fatalf("colors = %v, want [#00FF00]", colors)
	}
}
