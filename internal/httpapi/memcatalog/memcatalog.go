// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package memcatalog is an in-memory, mutex-guarded reference
// implementation of every internal/httpapi Catalog interface. It exists
// for self-contained router tests, not as a production persistence
// layer: a real deployment's catalogs come from an external store
// (spec.md §2 Non-goals).
package memcatalog

import (
	"sort"
	"sync"

	"github.com/jontk/ddpctl/effects"
	ctrlerrors "github.com/jontk/ddpctl/pkg/errors"
	"github.com/jontk/ddpctl/playlist"
	"github.com/jontk/ddpctl/resolve"
	"github.com/jontk/ddpctl/schedule"
	"github.com/jontk/ddpctl/solar"
)

// Devices is an in-memory DeviceCatalog.
type Devices struct {
	mu    sync.RWMutex
	items map[string]resolve.Fixture
	addrs map[string]string
}

// NewDevices returns an empty device catalog.
func NewDevices() *Devices {
	return &Devices{items: make(map[string]resolve.Fixture), addrs: make(map[string]string)}
}

func (d *Devices) List() ([]resolve.Fixture, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]resolve.Fixture, 0, len(d.items))
	for _, id := range sortedKeys(d.items) {
		out = append(out, d.items[id])
	}
	return out, nil
}

func (d *Devices) Get(id string) (resolve.Fixture, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	f, ok := d.items[id]
	return f, ok, nil
}

func (d *Devices) Put(f resolve.Fixture, addr string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items[f.ID] = f
	d.addrs[f.ID] = addr
	return nil
}

func (d *Devices) Delete(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.items[id]; !ok {
		return ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeFixtureNotFound, "device", id)
	}
	delete(d.items, id)
	delete(d.addrs, id)
	return nil
}

func (d *Devices) Address(id string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	addr, ok := d.addrs[id]
	return addr, ok
}

// Groups is an in-memory GroupCatalog.
type Groups struct {
	mu    sync.RWMutex
	items map[string]resolve.Group
}

func NewGroups() *Groups { return &Groups{items: make(map[string]resolve.Group)} }

func (g *Groups) List() ([]resolve.Group, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]resolve.Group, 0, len(g.items))
	for _, id := range sortedKeys(g.items) {
		out = append(out, g.items[id])
	}
	return out, nil
}

func (g *Groups) Get(id string) (resolve.Group, bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.items[id]
	return v, ok, nil
}

func (g *Groups) Put(grp resolve.Group) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.items[grp.ID] = grp
	return nil
}

func (g *Groups) Delete(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.items[id]; !ok {
		return ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeGroupNotFound, "group", id)
	}
	delete(g.items, id)
	return nil
}

// Virtuals is an in-memory VirtualCatalog.
type Virtuals struct {
	mu    sync.RWMutex
	items map[string]resolve.Virtual
}

func NewVirtuals() *Virtuals { return &Virtuals{items: make(map[string]resolve.Virtual)} }

func (v *Virtuals) List() ([]resolve.Virtual, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]resolve.Virtual, 0, len(v.items))
	for _, id := range sortedKeys(v.items) {
		out = append(out, v.items[id])
	}
	return out, nil
}

func (v *Virtuals) Get(id string) (resolve.Virtual, bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	item, ok := v.items[id]
	return item, ok, nil
}

func (v *Virtuals) Put(item resolve.Virtual) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items[item.ID] = item
	return nil
}

func (v *Virtuals) Delete(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.items[id]; !ok {
		return ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeVirtualNotFound, "virtual", id)
	}
	delete(v.items, id)
	return nil
}

// Presets is an in-memory PresetCatalog.
type Presets struct {
	mu    sync.RWMutex
	items map[string]playlist.Preset
}

func NewPresets() *Presets { return &Presets{items: make(map[string]playlist.Preset)} }

func (p *Presets) List() ([]playlist.Preset, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]playlist.Preset, 0, len(p.items))
	for _, id := range sortedKeys(p.items) {
		out = append(out, p.items[id])
	}
	return out, nil
}

func (p *Presets) Get(id string) (playlist.Preset, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	item, ok := p.items[id]
	return item, ok, nil
}

func (p *Presets) Put(item playlist.Preset) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[item.ID] = item
	return nil
}

func (p *Presets) Delete(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.items[id]; !ok {
		return ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodePresetNotFound, "preset", id)
	}
	delete(p.items, id)
	return nil
}

// Palettes is an in-memory PaletteCatalog.
type Palettes struct {
	mu    sync.RWMutex
	items map[string]effects.Palette
}

func NewPalettes() *Palettes { return &Palettes{items: make(map[string]effects.Palette)} }

func (p *Palettes) List() ([]effects.Palette, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]effects.Palette, 0, len(p.items))
	for _, id := range sortedKeys(p.items) {
		out = append(out, p.items[id])
	}
	return out, nil
}

func (p *Palettes) Get(id string) (effects.Palette, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	item, ok := p.items[id]
	return item, ok, nil
}

func (p *Palettes) Put(id string, item effects.Palette) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[id] = item
	return nil
}

func (p *Palettes) Delete(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.items[id]; !ok {
		return ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeValidationFailed, "palette", id)
	}
	delete(p.items, id)
	return nil
}

// Holidays is an in-memory HolidayCatalog.
type Holidays struct {
	mu    sync.RWMutex
	items map[string]solar.Holiday
}

func NewHolidays() *Holidays { return &Holidays{items: make(map[string]solar.Holiday)} }

func (h *Holidays) List() ([]solar.Holiday, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]solar.Holiday, 0, len(h.items))
	for _, id := range sortedKeys(h.items) {
		out = append(out, h.items[id])
	}
	return out, nil
}

func (h *Holidays) Get(id string) (solar.Holiday, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	item, ok := h.items[id]
	return item, ok, nil
}

func (h *Holidays) Put(item solar.Holiday) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items[item.ID] = item
	return nil
}

func (h *Holidays) Delete(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.items[id]; !ok {
		return ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeValidationFailed, "holiday", id)
	}
	delete(h.items, id)
	return nil
}

// Rules is an in-memory ScheduleCatalog.
type Rules struct {
	mu    sync.RWMutex
	items map[string]schedule.Rule
}

func NewRules() *Rules { return &Rules{items: make(map[string]schedule.Rule)} }

func (r *Rules) List() ([]schedule.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schedule.Rule, 0, len(r.items))
	for _, id := range sortedKeys(r.items) {
		out = append(out, r.items[id])
	}
	return out, nil
}

func (r *Rules) Get(id string) (schedule.Rule, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	return item, ok, nil
}

func (r *Rules) Put(item schedule.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ID] = item
	return nil
}

func (r *Rules) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeValidationFailed, "rule", id)
	}
	delete(r.items, id)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
