// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"testing"
	"time"

	"github.com/jontk/ddpctl/ddp"
	"github.com/jontk/ddpctl/effects"
	"github.com/jontk/ddpctl/pkg/pool"
	"github.com/jontk/ddpctl/resolve"
	"github.com/jontk/ddpctl/session"
)

func testDeps(t *testing.T) session.Deps {
	t.Helper()
	fixtures := map[string]resolve.Fixture{
		"fixture-a": {ID: "fixture-a", PixelCount: 10},
	}
	catalogs := resolve.Catalogs{
		Fixture: func(id string) (resolve.Fixture, bool) { f, ok := fixtures[id]; return f, ok },
		Group:   func(id string) (resolve.Group, bool) { return resolve.Group{}, false },
		Virtual: func(id string) (resolve.Virtual, bool) { return resolve.Virtual{}, false },
	}
	return session.Deps{
		Catalogs: catalogs,
		Addr: func(fixtureID string) (ddp.FixtureAddr, bool) {
			return ddp.FixtureAddr{FixtureID: fixtureID, Address: "127.0.0.1:4048"}, true
		},
		Sender:   ddp.NewSender(ddp.Config{Pool: pool.NewUDPSenderPool(nil, nil)}),
		Registry: effects.NewRegistry(),
	}
}

func testSpec(id string, exclusive bool) session.Spec {
	return session.Spec{
		ID:        id,
		Exclusive: exclusive,
		Targets:   []resolve.Target{{Kind: resolve.KindDevice, ID: "fixture-a"}},
		Layers: []session.LayerSpec{
			{ID: "l1", EffectType: "solid", Enabled: true, Opacity: 1,
				Params: effects.Params{"colors": {Kind: effects.KindColorArray, Colors: []string{"#FF0000"}}}},
		},
		FPS: 60,
	}
}

func TestStartSession_RejectsEmptyResolution(t *testing.T) {
	sup := New(testDeps(t), nil)
	spec := testSpec("s1", false)
	spec.Targets = []resolve.Target{{Kind: resolve.KindDevice, ID: "does-not-exist"}}
	if _, err := sup.StartSession(spec); err == nil {
		t.Fatal("expected error for unresolvable target")
	}
}

func TestStartSession_ExclusivePreemptsOverlapping(t *testing.T) {
	sup := New(testDeps(t), nil)

	first, err := sup.StartSession(testSpec("s1", false))
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)

	_, err = sup.StartSession(testSpec("s2", true))
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("expected first session to be preempted and stopped")
	}
	if first.State() != session.StateStopped {
		t.Fatalf("state = %v, want stopped", first.State())
	}
}

func TestSupervisor_StopAndEnumerate(t *testing.T) {
	sup := New(testDeps(t), nil)
	s, err := sup.StartSession(testSpec("s1", false))
	if err != nil {
		t.Fatal(err)
	}
	if len(sup.Enumerate()) != 1 {
		t.Fatalf("enumerate = %d, want 1", len(sup.Enumerate()))
	}
	if err := sup.Stop(s.ID()); err != nil {
		t.Fatal(err)
	}
	if len(sup.Enumerate()) != 0 {
		t.Fatalf("enumerate after stop = %d, want 0", len(sup.Enumerate()))
	}
}

func TestSupervisor_ActiveTargets(t *testing.T) {
	sup := New(testDeps(t), nil)
	if _, err := sup.StartSession(testSpec("s1", false)); err != nil {
		t.Fatal(err)
	}
	active := sup.ActiveTargets()
	if len(active.Devices) != 1 || active.Devices[0] != "fixture-a" {
		t.Fatalf("devices = %v, want [fixture-a]", active.Devices)
	}
}

func TestSupervisor_Shutdown(t *testing.T) {
	sup := New(testDeps(t), nil)
	if _, err := sup.StartSession(testSpec("s1", false)); err != nil {
		t.Fatal(err)
	}
	sup.Shutdown()
	for _, s := range sup.Enumerate() {
		if s.State() != session.StateStopped {
			t.Fatalf("session %s state = %v, want stopped", s.ID(), s.State())
		}
	}
}
