// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package resolve translates a logical target (fixture, group, virtual)
// into an ordered list of pixel spans on physical fixtures (spec.md §4.2).
// Every function here is pure: given the same catalogs and target, the
// same span list comes out every time.
package resolve

import (
	ctrlerrors "github.com/jontk/ddpctl/pkg/errors"
)

// TargetKind discriminates the three logical target shapes spec.md §3 names.
type TargetKind string

const (
	KindDevice  TargetKind = "device"
	KindGroup   TargetKind = "group"
	KindVirtual TargetKind = "virtual"
)

// Target names a logical thing to resolve into spans.
type Target struct {
	Kind TargetKind
	ID   string
}

// Span is a contiguous pixel interval on one physical fixture.
type Span struct {
	FixtureID   string
	PixelOffset int
	Length      int
}

// Fixture is the subset of fixture data the resolver needs.
type Fixture struct {
	ID         string
	PixelCount int
}

// GroupMember is either a whole fixture or a pixel range on one, per
// spec.md §3's Group entity.
type GroupMember struct {
	FixtureID    string
	WholeFixture bool
	StartPixel   int // inclusive, used when WholeFixture is false
	EndPixel     int // inclusive
}

// Group is a user-defined bundle of whole fixtures and/or spans.
type Group struct {
	ID      string
	Members []GroupMember
}

// VirtualRange is one span contributed to a Virtual target.
type VirtualRange struct {
	FixtureID  string
	StartPixel int // inclusive
	EndPixel   int // inclusive
}

// Virtual is a user-defined bundle of pixel ranges treated as one logical strip.
type Virtual struct {
	ID     string
	Ranges []VirtualRange
}

// Catalogs supplies the fixture/group/virtual lookups the resolver needs.
// The concrete backing store (JSON-on-disk, in-memory, etc.) is an external
// collaborator named by contract only (spec.md §1).
type Catalogs struct {
	Fixture func(id string) (Fixture, bool)
	Group   func(id string) (Group, bool)
	Virtual func(id string) (Virtual, bool)
}

// Resolve translates target into an ordered span list. excludedFixtures
// filters out spans on any listed fixture (spec.md §4.2, §4.9: a fixture
// that goes unhealthy is excluded from subsequent spans).
func Resolve(target Target, catalogs Catalogs, excludedFixtures []string) ([]Span, error) {
	var spans []Span

	switch target.Kind {
	case KindDevice:
		fixture, ok := catalogs.Fixture(target.ID)
		if !ok {
			return nil, ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeFixtureNotFound, "fixture", target.ID)
		}
		spans = append(spans, Span{FixtureID: fixture.ID, PixelOffset: 0, Length: fixture.PixelCount})

	case KindGroup:
		group, ok := catalogs.Group(target.ID)
		if !ok {
			return nil, ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeGroupNotFound, "group", target.ID)
		}
		for _, member := range group.Members {
			if member.WholeFixture {
				fixture, ok := catalogs.Fixture(member.FixtureID)
				if !ok {
					return nil, ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeFixtureNotFound, "fixture", member.FixtureID)
				}
				spans = append(spans, Span{FixtureID: fixture.ID, PixelOffset: 0, Length: fixture.PixelCount})
				continue
			}
			spans = append(spans, Span{
				FixtureID:   member.FixtureID,
				PixelOffset: member.StartPixel,
				Length:      member.EndPixel - member.StartPixel + 1,
			})
		}

	case KindVirtual:
		virtual, ok := catalogs.Virtual(target.ID)
		if !ok {
			return nil, ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeVirtualNotFound, "virtual", target.ID)
		}
		for _, r := range virtual.Ranges {
			spans = append(spans, Span{
				FixtureID:   r.FixtureID,
				PixelOffset: r.StartPixel,
				Length:      r.EndPixel - r.StartPixel + 1,
			})
		}

	default:
		return nil, ctrlerrors.NewValidationError(ctrlerrors.ErrorCodeInvalidTarget,
			"unknown target kind", "kind", target.Kind)
	}

	return excludeFixtures(spans, excludedFixtures), nil
}

func excludeFixtures(spans []Span, excluded []string) []Span {
	if len(excluded) == 0 {
		return spans
	}
	excludedSet := make(map[string]struct{}, len(excluded))
	for _, id := range excluded {
		excludedSet[id] = struct{}{}
	}

	filtered := spans[:0:0]
	for _, s := range spans {
		if _, skip := excludedSet[s.FixtureID]; skip {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}

// TotalLength returns the sum of every span's length — the pixel count an
// effect generator sees as its virtual contiguous strip (spec.md §4.2).
func TotalLength(spans []Span) int {
	total := 0
	for _, s := range spans {
		total += s.Length
	}
	return total
}
