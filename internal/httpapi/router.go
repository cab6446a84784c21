// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/jontk/ddpctl/blend"
	ctrlerrors "github.com/jontk/ddpctl/pkg/errors"
	"github.com/jontk/ddpctl/pkg/logging"
	"github.com/jontk/ddpctl/pkg/middleware"
	"github.com/jontk/ddpctl/pkg/streaming"
	"github.com/jontk/ddpctl/effects"
	"github.com/jontk/ddpctl/playlist"
	"github.com/jontk/ddpctl/resolve"
	"github.com/jontk/ddpctl/schedule"
	"github.com/jontk/ddpctl/session"
	"github.com/jontk/ddpctl/solar"
	"github.com/jontk/ddpctl/supervisor"
)

// Server holds every dependency the management-API contract layer needs.
// Catalogs may be nil for the entities a deployment doesn't use; handlers
// return 501 for an endpoint whose catalog is unset.
type Server struct {
	Supervisor *supervisor.Supervisor
	Playlist   *playlist.Runner
	Schedule   *schedule.Engine

	Devices  DeviceCatalog
	Groups   GroupCatalog
	Virtuals VirtualCatalog
	Presets  PresetCatalog
	Palettes PaletteCatalog
	Holidays HolidayCatalog
	Rules    ScheduleCatalog

	Logger logging.Logger
}

// buildStreams constructs the preview WebSocket and lifecycle SSE servers
// against s.Supervisor. Returns (nil, nil) if no Supervisor is set, in
// which case NewRouter skips registering their routes entirely.
func (s *Server) buildStreams() (*streaming.PreviewServer, *streaming.EventServer) {
	if s.Supervisor == nil {
		return nil, nil
	}
	preview := streaming.NewPreviewServer(&streaming.SupervisorFrameSource{Supervisor: s.Supervisor}, s.Logger)
	events := streaming.NewEventServer(&streaming.SupervisorEventSource{Supervisor: s.Supervisor})
	return preview, events
}

// NewRouter builds the gorilla/mux router wiring every path of spec.md §6
// to s, wrapped in the request-ID/logging/recovery middleware chain
// (spec.md §10.7).
func NewRouter(s *Server) *mux.Router {
	if s.Logger == nil {
		s.Logger = logging.NoOpLogger{}
	}
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return middleware.Chain(
			middleware.WithRequestID(),
			middleware.WithRecovery(s.Logger),
			middleware.WithLogging(s.Logger),
		)(next)
	})

	if preview, events := s.buildStreams(); preview != nil {
		r.HandleFunc("/stream/preview/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			preview.HandlePreview(w, r, mux.Vars(r)["sessionID"])
		}).Methods(http.MethodGet)
		r.HandleFunc("/stream/events", events.HandleEvents).Methods(http.MethodGet)
	}

	r.HandleFunc("/stream/start", s.handleStreamStart).Methods(http.MethodPost)
	r.HandleFunc("/stream/stop/{id}", s.handleStreamStop).Methods(http.MethodPost)
	r.HandleFunc("/stream/pause/{id}", s.handleStreamPause).Methods(http.MethodPost)
	r.HandleFunc("/stream/resume/{id}", s.handleStreamResume).Methods(http.MethodPost)
	r.HandleFunc("/stream/stop-target", s.handleStopTarget).Methods(http.MethodPost)
	r.HandleFunc("/stream/stop-all", s.handleStopAll).Methods(http.MethodPost)
	r.HandleFunc("/stream/sessions", s.handleListSessions).Methods(http.MethodGet)
	r.HandleFunc("/stream/active-targets", s.handleActiveTargets).Methods(http.MethodGet)
	r.HandleFunc("/stream/update-param", s.handleUpdateParam).Methods(http.MethodPost)

	r.HandleFunc("/devices", s.handleDeviceList).Methods(http.MethodGet)
	r.HandleFunc("/devices", s.handleDevicePut).Methods(http.MethodPost, http.MethodPut)
	r.HandleFunc("/devices/{id}", s.handleDeviceGet).Methods(http.MethodGet)
	r.HandleFunc("/devices/{id}", s.handleDeviceDelete).Methods(http.MethodDelete)

	r.HandleFunc("/groups", s.handleGroupList).Methods(http.MethodGet)
	r.HandleFunc("/groups", s.handleGroupPut).Methods(http.MethodPost, http.MethodPut)
	r.HandleFunc("/groups/{id}", s.handleGroupGet).Methods(http.MethodGet)
	r.HandleFunc("/groups/{id}", s.handleGroupDelete).Methods(http.MethodDelete)

	r.HandleFunc("/virtuals", s.handleVirtualList).Methods(http.MethodGet)
	r.HandleFunc("/virtuals", s.handleVirtualPut).Methods(http.MethodPost, http.MethodPut)
	r.HandleFunc("/virtuals/{id}", s.handleVirtualGet).Methods(http.MethodGet)
	r.HandleFunc("/virtuals/{id}", s.handleVirtualDelete).Methods(http.MethodDelete)

	r.HandleFunc("/presets", s.handlePresetList).Methods(http.MethodGet)
	r.HandleFunc("/presets", s.handlePresetPut).Methods(http.MethodPost, http.MethodPut)
	r.HandleFunc("/presets/{id}", s.handlePresetGet).Methods(http.MethodGet)
	r.HandleFunc("/presets/{id}", s.handlePresetDelete).Methods(http.MethodDelete)

	r.HandleFunc("/palettes", s.handlePaletteList).Methods(http.MethodGet)
	r.HandleFunc("/palettes", s.handlePalettePut).Methods(http.MethodPost, http.MethodPut)
	r.HandleFunc("/palettes/{id}", s.handlePaletteGet).Methods(http.MethodGet)
	r.HandleFunc("/palettes/{id}", s.handlePaletteDelete).Methods(http.MethodDelete)

	r.HandleFunc("/holidays", s.handleHolidayList).Methods(http.MethodGet)
	r.HandleFunc("/holidays", s.handleHolidayPut).Methods(http.MethodPost, http.MethodPut)
	r.HandleFunc("/holidays/{id}", s.handleHolidayGet).Methods(http.MethodGet)
	r.HandleFunc("/holidays/{id}", s.handleHolidayDelete).Methods(http.MethodDelete)

	r.HandleFunc("/schedules", s.handleScheduleList).Methods(http.MethodGet)
	r.HandleFunc("/schedules", s.handleSchedulePut).Methods(http.MethodPost, http.MethodPut)
	r.HandleFunc("/schedules/active", s.handleSchedulesActive).Methods(http.MethodGet)
	r.HandleFunc("/schedules/{id}", s.handleScheduleGet).Methods(http.MethodGet)
	r.HandleFunc("/schedules/{id}", s.handleScheduleDelete).Methods(http.MethodDelete)

	r.HandleFunc("/playlists/active", s.handlePlaylistActive).Methods(http.MethodGet)
	r.HandleFunc("/playlists/start", s.handlePlaylistStart).Methods(http.MethodPost)
	r.HandleFunc("/playlists/stop", s.handlePlaylistStop).Methods(http.MethodPost)

	return r
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var ctrlErr *ctrlerrors.ControllerError
	if stderrors.As(err, &ctrlErr) {
		switch ctrlErr.Category {
		case ctrlerrors.CategoryValidation:
			status = http.StatusBadRequest
		case ctrlerrors.CategoryNotFound:
			status = http.StatusNotFound
		case ctrlerrors.CategoryConflict:
			status = http.StatusConflict
		default:
			status = http.StatusInternalServerError
		}
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, ctrlerrors.NewValidationError(ctrlerrors.ErrorCodeValidationFailed,
			"malformed JSON body", "", err.Error()))
		return false
	}
	return true
}

func sessionDTOFromDomain(sess *session.Session) SessionDTO {
	return SessionDTO{
		ID:        sess.ID(),
		State:     sess.State().String(),
		Targets:   targetDTOsFromDomain(sess.Targets()),
		CreatedAt: sess.CreatedAt(),
		Exclusive: sess.Exclusive(),
	}
}

// --- /stream/* ---

func (s *Server) handleStreamStart(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var layers []session.LayerSpec
	if len(req.Layers) > 0 {
		layers = make([]session.LayerSpec, len(req.Layers))
		for i, l := range req.Layers {
			mode := blend.Mode(l.BlendMode)
			if mode == "" {
				mode = blend.ModeNormal
			}
			layers[i] = session.LayerSpec{
				ID: l.ID, EffectType: l.EffectType, Params: paramsToDomain(l.Params),
				BlendMode: mode, Opacity: l.Opacity, Enabled: l.Enabled,
			}
		}
	} else if req.Effect != nil {
		layers = []session.LayerSpec{{
			ID:         "default",
			EffectType: req.Effect.Type,
			Params:     paramsToDomain(req.Effect.Params),
			BlendMode:  blend.ModeNormal,
			Opacity:    1,
			Enabled:    true,
		}}
	}

	sess, err := s.Supervisor.StartSession(session.Spec{
		Targets:          targetsToDomain(req.Targets),
		Layers:           layers,
		FPS:              req.FPS,
		ExcludedFixtures: req.ExcludedFixtures,
		Exclusive:        req.Exclusive,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionDTOFromDomain(sess))
}

func (s *Server) handleStreamStop(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Supervisor.Stop(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (s *Server) handleStreamPause(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Supervisor.Pause(id); err != nil {
		writeError(w, err)
		return
	}
	sess, _ := s.Supervisor.Get(id)
	writeJSON(w, http.StatusOK, sessionDTOFromDomain(sess))
}

func (s *Server) handleStreamResume(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Supervisor.Resume(id); err != nil {
		writeError(w, err)
		return
	}
	sess, _ := s.Supervisor.Get(id)
	writeJSON(w, http.StatusOK, sessionDTOFromDomain(sess))
}

func (s *Server) handleStopTarget(w http.ResponseWriter, r *http.Request) {
	var req StopTargetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.Supervisor.StopByTarget(req.Target.toDomain()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	for _, sess := range s.Supervisor.Enumerate() {
		_ = s.Supervisor.Stop(sess.ID())
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.Supervisor.Enumerate()
	dtos := make([]SessionDTO, len(sessions))
	for i, sess := range sessions {
		dtos[i] = sessionDTOFromDomain(sess)
	}
	writeJSON(w, http.StatusOK, SessionListResponse{Sessions: dtos, Count: len(dtos)})
}

func (s *Server) handleActiveTargets(w http.ResponseWriter, r *http.Request) {
	active := s.Supervisor.ActiveTargets()
	writeJSON(w, http.StatusOK, ActiveTargetsResponse{
		Devices: active.Devices, Groups: active.Groups, Virtuals: active.Virtuals,
		Counts: active.Counts(),
	})
}

func (s *Server) handleUpdateParam(w http.ResponseWriter, r *http.Request) {
	var req UpdateParamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, ok := s.Supervisor.Get(req.SessionID)
	if !ok {
		writeError(w, ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeSessionNotFound, "session", req.SessionID))
		return
	}

	var err error
	if req.LayerID != "" {
		err = sess.UpdateLayerParameter(req.LayerID, req.ParamName, req.Value.toDomain())
	} else {
		err = sess.UpdateParameter(req.ParamName, req.Value.toDomain())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

// --- /playlists/* ---

func (s *Server) handlePlaylistActive(w http.ResponseWriter, r *http.Request) {
	p, ok := s.Playlist.Active()
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	status := p.Status()
	writeJSON(w, http.StatusOK, PlaylistStatusDTO{
		ID: status.ID, ActiveItem: status.ActiveItem, ActivePresetID: status.ActivePresetID,
		StartedAt: status.StartedAt, Loop: status.Loop,
	})
}

func (s *Server) handlePlaylistStart(w http.ResponseWriter, r *http.Request) {
	var req PlaylistStartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	items := make([]playlist.Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = playlist.Item{PresetID: it.PresetID, DurationSeconds: it.DurationSeconds}
	}
	p, err := s.Playlist.Start(playlist.Spec{
		ID: req.ID, Targets: targetsToDomain(req.Targets), Items: items,
		Loop: req.Loop, Shuffle: req.Shuffle, FPS: req.FPS,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	status := p.Status()
	writeJSON(w, http.StatusOK, PlaylistStatusDTO{
		ID: status.ID, ActiveItem: status.ActiveItem, ActivePresetID: status.ActivePresetID,
		StartedAt: status.StartedAt, Loop: status.Loop,
	})
}

func (s *Server) handlePlaylistStop(w http.ResponseWriter, r *http.Request) {
	s.Playlist.Stop()
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

// --- /schedules/* ---

func (s *Server) handleSchedulesActive(w http.ResponseWriter, r *http.Request) {
	rules := s.Schedule.Rules()
	out := make([]ScheduleRuleStatusDTO, 0, len(rules))
	for _, rule := range rules {
		sessID, active := s.Schedule.ActiveSessionFor(rule.ID)
		out = append(out, ScheduleRuleStatusDTO{RuleID: rule.ID, Active: active, SessionID: sessID})
	}
	writeJSON(w, http.StatusOK, out)
}

func ruleDTOFromDomain(r schedule.Rule) ScheduleRuleDTO {
	seq := make([]PlaylistItemDTO, len(r.Sequence))
	for i, it := range r.Sequence {
		seq[i] = PlaylistItemDTO{PresetID: it.PresetID, DurationSeconds: it.DurationSeconds}
	}
	days := make([]int, len(r.DaysOfWeek))
	for i, d := range r.DaysOfWeek {
		days[i] = int(d)
	}
	dto := ScheduleRuleDTO{
		ID: r.ID, Enabled: r.Enabled, Targets: targetDTOsFromDomain(r.Targets),
		DaysOfWeek: days, Dates: r.Dates,
		Holiday: HolidayFilterDTO{
			SkipOnHolidays: r.Holiday.SkipOnHolidays, OnHolidaysOnly: r.Holiday.OnHolidaysOnly,
			SelectedHolidayIDs: r.Holiday.SelectedHolidayIDs,
			DaysBeforeHoliday:  r.Holiday.DaysBeforeHoliday, DaysAfterHoliday: r.Holiday.DaysAfterHoliday,
		},
		Lat: r.Lat, Lon: r.Lon, TZ: r.TZ,
		StartKind: string(r.StartSpec.Kind), StartHourMinute: r.StartSpec.HourMinute,
		StartOffsetMinutes: r.StartSpec.OffsetMinutes, DurationSeconds: r.DurationSeconds,
		RampOnStart: r.RampOnStart, RampOffEnd: r.RampOffEnd, RampDurationSeconds: r.RampDurationSeconds,
		Sequence: seq, SequenceLoop: r.SequenceLoop, SequenceShuffle: r.SequenceShuffle,
		FPS: r.FPS, Priority: r.Priority,
	}
	return dto
}

func ruleDTOToDomain(dto ScheduleRuleDTO) schedule.Rule {
	seq := make([]schedule.SequenceItem, len(dto.Sequence))
	for i, it := range dto.Sequence {
		seq[i] = schedule.SequenceItem{PresetID: it.PresetID, DurationSeconds: it.DurationSeconds}
	}
	days := make([]time.Weekday, len(dto.DaysOfWeek))
	for i, d := range dto.DaysOfWeek {
		days[i] = time.Weekday(d)
	}
	return schedule.Rule{
		ID: dto.ID, Enabled: dto.Enabled, Targets: targetsToDomain(dto.Targets),
		DaysOfWeek: days, Dates: dto.Dates,
		Holiday: schedule.HolidayFilter{
			SkipOnHolidays: dto.Holiday.SkipOnHolidays, OnHolidaysOnly: dto.Holiday.OnHolidaysOnly,
			SelectedHolidayIDs: dto.Holiday.SelectedHolidayIDs,
			DaysBeforeHoliday:  dto.Holiday.DaysBeforeHoliday, DaysAfterHoliday: dto.Holiday.DaysAfterHoliday,
		},
		Lat: dto.Lat, Lon: dto.Lon, TZ: dto.TZ,
		StartSpec: schedule.BoundarySpec{
			Kind: schedule.SpecKind(dto.StartKind), HourMinute: dto.StartHourMinute,
			OffsetMinutes: dto.StartOffsetMinutes,
		},
		DurationSeconds: dto.DurationSeconds, RampOnStart: dto.RampOnStart, RampOffEnd: dto.RampOffEnd,
		RampDurationSeconds: dto.RampDurationSeconds, Sequence: seq,
		SequenceLoop: dto.SequenceLoop, SequenceShuffle: dto.SequenceShuffle,
		FPS: dto.FPS, Priority: dto.Priority,
	}
}

func (s *Server) handleScheduleList(w http.ResponseWriter, r *http.Request) {
	if s.Rules == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "schedule catalog not configured"})
		return
	}
	rules, err := s.Rules.List()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]ScheduleRuleDTO, len(rules))
	for i, rule := range rules {
		out[i] = ruleDTOFromDomain(rule)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleScheduleGet(w http.ResponseWriter, r *http.Request) {
	if s.Rules == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "schedule catalog not configured"})
		return
	}
	id := mux.Vars(r)["id"]
	rule, ok, err := s.Rules.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeValidationFailed, "rule", id))
		return
	}
	writeJSON(w, http.StatusOK, ruleDTOFromDomain(rule))
}

func (s *Server) handleSchedulePut(w http.ResponseWriter, r *http.Request) {
	if s.Rules == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "schedule catalog not configured"})
		return
	}
	var dto ScheduleRuleDTO
	if !decodeJSON(w, r, &dto) {
		return
	}
	rule := ruleDTOToDomain(dto)
	if err := s.Rules.Put(rule); err != nil {
		writeError(w, err)
		return
	}
	s.Schedule.SetRule(rule)
	writeJSON(w, http.StatusOK, ruleDTOFromDomain(rule))
}

func (s *Server) handleScheduleDelete(w http.ResponseWriter, r *http.Request) {
	if s.Rules == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "schedule catalog not configured"})
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.Rules.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	s.Schedule.RemoveRule(id)
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

// --- generic CRUD entity handlers ---

func (s *Server) handleDeviceList(w http.ResponseWriter, r *http.Request) {
	if s.Devices == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "device catalog not configured"})
		return
	}
	fixtures, err := s.Devices.List()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]DeviceDTO, len(fixtures))
	for i, f := range fixtures {
		addr, _ := s.Devices.Address(f.ID)
		out[i] = DeviceDTO{ID: f.ID, Address: addr, PixelCount: f.PixelCount}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeviceGet(w http.ResponseWriter, r *http.Request) {
	if s.Devices == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "device catalog not configured"})
		return
	}
	id := mux.Vars(r)["id"]
	f, ok, err := s.Devices.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeFixtureNotFound, "device", id))
		return
	}
	addr, _ := s.Devices.Address(id)
	writeJSON(w, http.StatusOK, DeviceDTO{ID: f.ID, Address: addr, PixelCount: f.PixelCount})
}

func (s *Server) handleDevicePut(w http.ResponseWriter, r *http.Request) {
	if s.Devices == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "device catalog not configured"})
		return
	}
	var dto DeviceDTO
	if !decodeJSON(w, r, &dto) {
		return
	}
	if err := s.Devices.Put(resolve.Fixture{ID: dto.ID, PixelCount: dto.PixelCount}, dto.Address); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handleDeviceDelete(w http.ResponseWriter, r *http.Request) {
	if s.Devices == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "device catalog not configured"})
		return
	}
	if err := s.Devices.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (s *Server) handleGroupList(w http.ResponseWriter, r *http.Request) {
	if s.Groups == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "group catalog not configured"})
		return
	}
	groups, err := s.Groups.List()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]GroupDTO, len(groups))
	for i, g := range groups {
		out[i] = groupDTOFromDomain(g)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGroupGet(w http.ResponseWriter, r *http.Request) {
	if s.Groups == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "group catalog not configured"})
		return
	}
	id := mux.Vars(r)["id"]
	g, ok, err := s.Groups.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeGroupNotFound, "group", id))
		return
	}
	writeJSON(w, http.StatusOK, groupDTOFromDomain(g))
}

func (s *Server) handleGroupPut(w http.ResponseWriter, r *http.Request) {
	if s.Groups == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "group catalog not configured"})
		return
	}
	var dto GroupDTO
	if !decodeJSON(w, r, &dto) {
		return
	}
	g := groupDTOToDomain(dto)
	if err := s.Groups.Put(g); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handleGroupDelete(w http.ResponseWriter, r *http.Request) {
	if s.Groups == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "group catalog not configured"})
		return
	}
	if err := s.Groups.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func groupDTOFromDomain(g resolve.Group) GroupDTO {
	members := make([]GroupMemberDTO, len(g.Members))
	for i, m := range g.Members {
		members[i] = GroupMemberDTO{
			FixtureID: m.FixtureID, WholeFixture: m.WholeFixture,
			StartPixel: m.StartPixel, EndPixel: m.EndPixel,
		}
	}
	return GroupDTO{ID: g.ID, Members: members}
}

func groupDTOToDomain(dto GroupDTO) resolve.Group {
	members := make([]resolve.GroupMember, len(dto.Members))
	for i, m := range dto.Members {
		members[i] = resolve.GroupMember{
			FixtureID: m.FixtureID, WholeFixture: m.WholeFixture,
			StartPixel: m.StartPixel, EndPixel: m.EndPixel,
		}
	}
	return resolve.Group{ID: dto.ID, Members: members}
}

func (s *Server) handleVirtualList(w http.ResponseWriter, r *http.Request) {
	if s.Virtuals == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "virtual catalog not configured"})
		return
	}
	virtuals, err := s.Virtuals.List()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]VirtualDTO, len(virtuals))
	for i, v := range virtuals {
		out[i] = virtualDTOFromDomain(v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVirtualGet(w http.ResponseWriter, r *http.Request) {
	if s.Virtuals == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "virtual catalog not configured"})
		return
	}
	id := mux.Vars(r)["id"]
	v, ok, err := s.Virtuals.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeVirtualNotFound, "virtual", id))
		return
	}
	writeJSON(w, http.StatusOK, virtualDTOFromDomain(v))
}

func (s *Server) handleVirtualPut(w http.ResponseWriter, r *http.Request) {
	if s.Virtuals == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "virtual catalog not configured"})
		return
	}
	var dto VirtualDTO
	if !decodeJSON(w, r, &dto) {
		return
	}
	v := virtualDTOToDomain(dto)
	if err := s.Virtuals.Put(v); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handleVirtualDelete(w http.ResponseWriter, r *http.Request) {
	if s.Virtuals == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "virtual catalog not configured"})
		return
	}
	if err := s.Virtuals.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func virtualDTOFromDomain(v resolve.Virtual) VirtualDTO {
	ranges := make([]VirtualRangeDTO, len(v.Ranges))
	for i, rg := range v.Ranges {
		ranges[i] = VirtualRangeDTO{FixtureID: rg.FixtureID, StartPixel: rg.StartPixel, EndPixel: rg.EndPixel}
	}
	return VirtualDTO{ID: v.ID, Ranges: ranges}
}

func virtualDTOToDomain(dto VirtualDTO) resolve.Virtual {
	ranges := make([]resolve.VirtualRange, len(dto.Ranges))
	for i, rg := range dto.Ranges {
		ranges[i] = resolve.VirtualRange{FixtureID: rg.FixtureID, StartPixel: rg.StartPixel, EndPixel: rg.EndPixel}
	}
	return resolve.Virtual{ID: dto.ID, Ranges: ranges}
}

func (s *Server) handlePresetList(w http.ResponseWriter, r *http.Request) {
	if s.Presets == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "preset catalog not configured"})
		return
	}
	presets, err := s.Presets.List()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]PresetDTO, len(presets))
	for i, p := range presets {
		out[i] = presetDTOFromDomain(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePresetGet(w http.ResponseWriter, r *http.Request) {
	if s.Presets == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "preset catalog not configured"})
		return
	}
	id := mux.Vars(r)["id"]
	p, ok, err := s.Presets.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodePresetNotFound, "preset", id))
		return
	}
	writeJSON(w, http.StatusOK, presetDTOFromDomain(p))
}

func (s *Server) handlePresetPut(w http.ResponseWriter, r *http.Request) {
	if s.Presets == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "preset catalog not configured"})
		return
	}
	var dto PresetDTO
	if !decodeJSON(w, r, &dto) {
		return
	}
	p := presetDTOToDomain(dto)
	if err := s.Presets.Put(p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handlePresetDelete(w http.ResponseWriter, r *http.Request) {
	if s.Presets == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "preset catalog not configured"})
		return
	}
	if err := s.Presets.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func presetDTOFromDomain(p playlist.Preset) PresetDTO {
	dto := PresetDTO{ID: p.ID}
	if p.Effect != nil {
		dto.EffectType = p.Effect.Type
		dto.Params = paramsFromDomain(p.Effect.Params)
	}
	if len(p.Layers) > 0 {
		dto.Layers = make([]LayerDTO, len(p.Layers))
		for i, l := range p.Layers {
			dto.Layers[i] = LayerDTO{
				ID: l.ID, EffectType: l.EffectType, Params: paramsFromDomain(l.Params),
				BlendMode: string(l.BlendMode), Opacity: l.Opacity, Enabled: l.Enabled,
			}
		}
	}
	return dto
}

func presetDTOToDomain(dto PresetDTO) playlist.Preset {
	p := playlist.Preset{ID: dto.ID}
	if len(dto.Layers) > 0 {
		layers := make([]session.LayerSpec, len(dto.Layers))
		for i, l := range dto.Layers {
			mode := blend.Mode(l.BlendMode)
			if mode == "" {
				mode = blend.ModeNormal
			}
			layers[i] = session.LayerSpec{
				ID: l.ID, EffectType: l.EffectType, Params: paramsToDomain(l.Params),
				BlendMode: mode, Opacity: l.Opacity, Enabled: l.Enabled,
			}
		}
		p.Layers = layers
		return p
	}
	p.Effect = &playlist.EffectRef{Type: dto.EffectType, Params: paramsToDomain(dto.Params)}
	return p
}

func (s *Server) handlePaletteList(w http.ResponseWriter, r *http.Request) {
	if s.Palettes == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "palette catalog not configured"})
		return
	}
	palettes, err := s.Palettes.List()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]PaletteDTO, len(palettes))
	for i, p := range palettes {
		out[i] = PaletteDTO{ID: p.ID, Colors: p.Colors}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePaletteGet(w http.ResponseWriter, r *http.Request) {
	if s.Palettes == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "palette catalog not configured"})
		return
	}
	id := mux.Vars(r)["id"]
	p, ok, err := s.Palettes.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeValidationFailed, "palette", id))
		return
	}
	writeJSON(w, http.StatusOK, PaletteDTO{ID: p.ID, Colors: p.Colors})
}

func (s *Server) handlePalettePut(w http.ResponseWriter, r *http.Request) {
	if s.Palettes == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "palette catalog not configured"})
		return
	}
	var dto PaletteDTO
	if !decodeJSON(w, r, &dto) {
		return
	}
	if err := s.Palettes.Put(dto.ID, effects.Palette{ID: dto.ID, Colors: dto.Colors}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handlePaletteDelete(w http.ResponseWriter, r *http.Request) {
	if s.Palettes == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "palette catalog not configured"})
		return
	}
	if err := s.Palettes.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (s *Server) handleHolidayList(w http.ResponseWriter, r *http.Request) {
	if s.Holidays == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "holiday catalog not configured"})
		return
	}
	holidays, err := s.Holidays.List()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]HolidayDTO, len(holidays))
	for i, h := range holidays {
		out[i] = holidayDTOFromDomain(h)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHolidayGet(w http.ResponseWriter, r *http.Request) {
	if s.Holidays == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "holiday catalog not configured"})
		return
	}
	id := mux.Vars(r)["id"]
	h, ok, err := s.Holidays.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeValidationFailed, "holiday", id))
		return
	}
	writeJSON(w, http.StatusOK, holidayDTOFromDomain(h))
}

func (s *Server) handleHolidayPut(w http.ResponseWriter, r *http.Request) {
	if s.Holidays == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "holiday catalog not configured"})
		return
	}
	var dto HolidayDTO
	if !decodeJSON(w, r, &dto) {
		return
	}
	h, err := holidayDTOToDomain(dto)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Holidays.Put(h); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handleHolidayDelete(w http.ResponseWriter, r *http.Request) {
	if s.Holidays == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "holiday catalog not configured"})
		return
	}
	if err := s.Holidays.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func holidayDTOFromDomain(h solar.Holiday) HolidayDTO {
	dto := HolidayDTO{ID: h.ID, Kind: string(h.Kind)}
	switch h.Kind {
	case solar.HolidayFixed:
		dto.Fixed = fmt.Sprintf("%02d-%02d", int(h.FixedMonth), h.FixedDay)
	case solar.HolidayAbsolute:
		dto.Date = h.AbsoluteDate
	case solar.HolidayPattern:
		dto.Pattern = formatHolidayPattern(h.PatternNth, h.PatternWeekday, h.PatternMonth)
	}
	return dto
}

func formatHolidayPattern(nth int, weekday time.Weekday, month time.Month) string {
	ordinal := "LAST"
	if nth > 0 {
		suffix := "TH"
		switch nth {
		case 1:
			suffix = "ST"
		case 2:
			suffix = "ND"
		case 3:
			suffix = "RD"
		}
		ordinal = fmt.Sprintf("%d%s", nth, suffix)
	}
	return strings.ToUpper(fmt.Sprintf("%s_%s_%s", ordinal, weekday, month))
}

func holidayDTOToDomain(dto HolidayDTO) (solar.Holiday, error) {
	h := solar.Holiday{ID: dto.ID, Kind: solar.HolidayKind(dto.Kind)}
	switch h.Kind {
	case solar.HolidayFixed:
		var month, day int
		if _, err := fmt.Sscanf(dto.Fixed, "%d-%d", &month, &day); err != nil {
			return solar.Holiday{}, ctrlerrors.NewValidationError(ctrlerrors.ErrorCodeValidationFailed,
				"invalid fixed date", "fixed", dto.Fixed)
		}
		h.FixedMonth, h.FixedDay = time.Month(month), day
	case solar.HolidayAbsolute:
		h.AbsoluteDate = dto.Date
	case solar.HolidayPattern:
		nth, weekday, month, err := solar.ParsePattern(dto.Pattern)
		if err != nil {
			return solar.Holiday{}, ctrlerrors.NewValidationError(ctrlerrors.ErrorCodeValidationFailed,
				"invalid holiday pattern", "pattern", dto.Pattern)
		}
		h.PatternNth, h.PatternWeekday, h.PatternMonth = nth, weekday, month
	default:
		return solar.Holiday{}, ctrlerrors.NewValidationError(ctrlerrors.ErrorCodeValidationFailed,
			"unknown holiday kind", "kind", dto.Kind)
	}
	return h, nil
}
