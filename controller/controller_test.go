// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"context"
	"testing"
	"time"

	"github.com/jontk/ddpctl/ddp"
	"github.com/jontk/ddpctl/effects"
	"github.com/jontk/ddpctl/pkg/config"
	"github.com/jontk/ddpctl/playlist"
	"github.com/jontk/ddpctl/resolve"
)

func testCatalogs() Catalogs {
	fixtures := map[string]resolve.Fixture{"fixture-a": {ID: "fixture-a", PixelCount: 10}}
	presets := map[string]playlist.Preset{
		"red": {ID: "red", Effect: &playlist.EffectRef{
			Type:   "solid",
			Params: effects.Params{"colors": {Kind: effects.KindColorArray, Colors: []string{"#FF0000"}}},
		}},
	}
	return Catalogs{
		Fixtures: resolve.Catalogs{
			Fixture: func(id string) (resolve.Fixture, bool) { f, ok := fixtures[id]; return f, ok },
			Group:   func(id string) (resolve.Group, bool) { return resolve.Group{}, false },
			Virtual: func(id string) (resolve.Virtual, bool) { return resolve.Virtual{}, false },
		},
		Addr: func(fixtureID string) (ddp.FixtureAddr, bool) {
			return ddp.FixtureAddr{FixtureID: fixtureID, Address: "127.0.0.1:4048"}, true
		},
		Presets: func(id string) (playlist.Preset, bool) { p, ok := presets[id]; return p, ok },
	}
}

func TestNew_WiresSubsystems(t *testing.T) {
	cfg := config.NewDefault()
	c := New(cfg, testCatalogs(), nil)

	if c.Supervisor == nil || c.Playlist == nil || c.Schedule == nil || c.Sender == nil {
		t.Fatal("expected every subsystem to be wired")
	}

	spec := playlist.Spec{
		ID:      "pl",
		Targets: []resolve.Target{{Kind: resolve.KindDevice, ID: "fixture-a"}},
		Items:   []playlist.Item{{PresetID: "red", DurationSeconds: 60}},
		FPS:     30,
	}
	p, err := c.Playlist.Start(spec)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, ok := c.Playlist.Active(); !ok {
		t.Fatal("expected active playlist")
	}
	p.Stop()
	<-p.Done()

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	cancel()
	c.Shutdown()
}
