// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestCLI(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd is nil")
	}
	if Version == "" {
		t.Error("Version is not set")
	}

	expectedCommands := []string{"stream", "sessions", "schedules", "playlist", "version"}
	for _, cmdName := range expectedCommands {
		found := false
		for _, cmd := range rootCmd.Commands() {
			if cmd.Name() == cmdName {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("command %s not found", cmdName)
		}
	}
}

func TestStreamCommand_HasSubcommands(t *testing.T) {
	expected := []string{"start", "stop", "list"}
	for _, name := range expected {
		found := false
		for _, cmd := range streamCmd.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("stream subcommand %s not found", name)
		}
	}
}

func TestParsePlaylistItems(t *testing.T) {
	items, err := parsePlaylistItems([]string{"red:30", "blue:45"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].PresetID != "red" || items[0].DurationSeconds != 30 {
		t.Errorf("unexpected first item: %+v", items[0])
	}
	if items[1].PresetID != "blue" || items[1].DurationSeconds != 45 {
		t.Errorf("unexpected second item: %+v", items[1])
	}
}

func TestParsePlaylistItems_RejectsMalformed(t *testing.T) {
	if _, err := parsePlaylistItems([]string{"no-colon-here"}); err == nil {
		t.Error("expected error for item missing duration")
	}
	if _, err := parsePlaylistItems([]string{"red:notanumber"}); err == nil {
		t.Error("expected error for non-numeric duration")
	}
}

func TestLoadEntities_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entities.json")

	file := entityFile{
		Fixtures: []fixtureDef{{ID: "fixture-a", Address: "127.0.0.1:4048", PixelCount: 50}},
		Groups: []groupDef{{
			ID:      "group-a",
			Members: []groupMemberDef{{FixtureID: "fixture-a", WholeFixture: true}},
		}},
		Presets: []presetDef{{
			ID:         "red",
			EffectType: "solid",
			Params:     map[string]interface{}{"colors": []interface{}{"#FF0000"}},
		}},
		Holidays: []holidayDef{
			{ID: "christmas", Kind: "fixed", Fixed: "12-25"},
			{ID: "thanksgiving", Kind: "pattern", Pattern: "4TH_THURSDAY_NOVEMBER"},
		},
		Rules: []ruleDef{{
			ID:         "evening",
			Enabled:    true,
			TargetKind: "device",
			TargetID:   "fixture-a",
			StartKind:  "time_of_day",
			Sequence:   []sequenceItemDef{{PresetID: "red", DurationSeconds: 60}},
		}},
	}

	raw, err := json.Marshal(file)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	ents, err := loadEntities(path)
	if err != nil {
		t.Fatalf("loadEntities: %v", err)
	}
	if _, ok := ents.fixtures["fixture-a"]; !ok {
		t.Error("expected fixture-a to be loaded")
	}
	if _, ok := ents.groups["group-a"]; !ok {
		t.Error("expected group-a to be loaded")
	}
	if _, ok := ents.presets["red"]; !ok {
		t.Error("expected preset red to be loaded")
	}
	if len(ents.holidays) != 2 {
		t.Errorf("expected 2 holidays, got %d", len(ents.holidays))
	}
	if len(ents.rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(ents.rules))
	}
	if ents.rules[0].ID != "evening" {
		t.Errorf("unexpected rule id %q", ents.rules[0].ID)
	}
}

func TestLoadEntities_MissingFile(t *testing.T) {
	if _, err := loadEntities(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing config file")
	}
}
