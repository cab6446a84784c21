// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jontk/ddpctl/controller"
	"github.com/jontk/ddpctl/ddp"
	"github.com/jontk/ddpctl/effects"
	"github.com/jontk/ddpctl/internal/httpapi/memcatalog"
	"github.com/jontk/ddpctl/pkg/config"
	"github.com/jontk/ddpctl/playlist"
	"github.com/jontk/ddpctl/resolve"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	fixtures := map[string]resolve.Fixture{"fixture-a": {ID: "fixture-a", PixelCount: 10}}
	presets := map[string]playlist.Preset{
		"red": {ID: "red", Effect: &playlist.EffectRef{
			Type:   "solid",
			Params: effects.Params{"colors": {Kind: effects.KindColorArray, Colors: []string{"#FF0000"}}},
		}},
	}
	catalogs := controller.Catalogs{
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
	ctrl := controller.New(config.NewDefault(), catalogs, nil)

	devices := memcatalog.NewDevices()
	require.NoError(t, devices.Put(resolve.Fixture{ID: "fixture-a", PixelCount: 10}, "127.0.0.1:4048"))

	return &Server{
		Supervisor: ctrl.Supervisor,
		Playlist:   ctrl.Playlist,
		Schedule:   ctrl.Schedule,
		Devices:    devices,
		Groups:     memcatalog.NewGroups(),
		Virtuals:   memcatalog.NewVirtuals(),
		Presets:    memcatalog.NewPresets(),
		Palettes:   memcatalog.NewPalettes(),
		Holidays:   memcatalog.NewHolidays(),
		Rules:      memcatalog.NewRules(),
	}
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestStreamLifecycle(t *testing.T) {
	s := testServer(t)
	router := NewRouter(s)

	startRec := doRequest(t, router, http.MethodPost, "/stream/start", StartSessionRequest{
		Targets: []TargetDTO{{Kind: "device", ID: "fixture-a"}},
		Effect:  &EffectRefDTO{Type: "solid", Params: map[string]ParamDTO{"colors": {Kind: "array", Colors: []string{"#00FF00"}}}},
		FPS:     30,
	})
	require.Equal(t, http.StatusOK, startRec.Code, startRec.Body.String())
	var started SessionDTO
	decodeBody(t, startRec, &started)
	require.NotEmpty(t, started.ID)

	listRec := doRequest(t, router, http.MethodGet, "/stream/sessions", nil)
	require.Equal(t, http.StatusOK, listRec.Code)
	var listResp SessionListResponse
	decodeBody(t, listRec, &listResp)
	require.Equal(t, 1, listResp.Count)

	pauseRec := doRequest(t, router, http.MethodPost, "/stream/pause/"+started.ID, nil)
	require.Equal(t, http.StatusOK, pauseRec.Code, pauseRec.Body.String())

	resumeRec := doRequest(t, router, http.MethodPost, "/stream/resume/"+started.ID, nil)
	require.Equal(t, http.StatusOK, resumeRec.Code, resumeRec.Body.String())

	activeRec := doRequest(t, router, http.MethodGet, "/stream/active-targets", nil)
	require.Equal(t, http.StatusOK, activeRec.Code)
	var active ActiveTargetsResponse
	decodeBody(t, activeRec, &active)
	require.Equal(t, []string{"fixture-a"}, active.Devices)

	updateRec := doRequest(t, router, http.MethodPost, "/stream/update-param", UpdateParamRequest{
		SessionID: started.ID, ParamName: "colors",
		Value: ParamDTO{Kind: "array", Colors: []string{"#0000FF"}},
	})
	require.Equal(t, http.StatusOK, updateRec.Code, updateRec.Body.String())

	stopRec := doRequest(t, router, http.MethodPost, "/stream/stop/"+started.ID, nil)
	require.Equal(t, http.StatusOK, stopRec.Code, stopRec.Body.String())
}

func TestStreamStop_UnknownSessionReturns404(t *testing.T) {
	s := testServer(t)
	router := NewRouter(s)
	rec := doRequest(t, router, http.MethodPost, "/stream/stop/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func TestStreamStopAll(t *testing.T) {
	s := testServer(t)
	router := NewRouter(s)
	doRequest(t, router, http.MethodPost, "/stream/start", StartSessionRequest{
		Targets: []TargetDTO{{Kind: "device", ID: "fixture-a"}},
		Effect:  &EffectRefDTO{Type: "solid", Params: map[string]ParamDTO{"colors": {Kind: "array", Colors: []string{"#FFFFFF"}}}},
		FPS:     30,
	})
	rec := doRequest(t, router, http.MethodPost, "/stream/stop-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	listRec := doRequest(t, router, http.MethodGet, "/stream/sessions", nil)
	var listResp SessionListResponse
	decodeBody(t, listRec, &listResp)
	require.Equal(t, 0, listResp.Count)
}

func TestDeviceCRUD(t *testing.T) {
	s := testServer(t)
	router := NewRouter(s)

	putRec := doRequest(t, router, http.MethodPost, "/devices", DeviceDTO{ID: "fixture-b", Address: "127.0.0.1:4049", PixelCount: 20})
	require.Equal(t, http.StatusOK, putRec.Code, putRec.Body.String())

	getRec := doRequest(t, router, http.MethodGet, "/devices/fixture-b", nil)
	require.Equal(t, http.StatusOK, getRec.Code)
	var got DeviceDTO
	decodeBody(t, getRec, &got)
	require.Equal(t, 20, got.PixelCount)

	delRec := doRequest(t, router, http.MethodDelete, "/devices/fixture-b", nil)
	require.Equal(t, http.StatusOK, delRec.Code)

	missingRec := doRequest(t, router, http.MethodGet, "/devices/fixture-b", nil)
	require.Equal(t, http.StatusNotFound, missingRec.Code)
}

func TestHolidayCRUD_PatternKind(t *testing.T) {
	s := testServer(t)
	router := NewRouter(s)

	putRec := doRequest(t, router, http.MethodPost, "/holidays", HolidayDTO{
		ID: "thanksgiving", Kind: "pattern", Pattern: "4TH_THURSDAY_NOVEMBER",
	})
	require.Equal(t, http.StatusOK, putRec.Code, putRec.Body.String())

	getRec := doRequest(t, router, http.MethodGet, "/holidays/thanksgiving", nil)
	require.Equal(t, http.StatusOK, getRec.Code)
	var got HolidayDTO
	decodeBody(t, getRec, &got)
	require.Equal(t, "4TH_THURSDAY_NOVEMBER", got.Pattern)
}

func TestHolidayCRUD_RejectsMalformedPattern(t *testing.T) {
	s := testServer(t)
	router := NewRouter(s)
	rec := doRequest(t, router, http.MethodPost, "/holidays", HolidayDTO{
		ID: "bad", Kind: "pattern", Pattern: "not-a-pattern",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestScheduleCRUD_MirrorsIntoEngine(t *testing.T) {
	s := testServer(t)
	router := NewRouter(s)

	putRec := doRequest(t, router, http.MethodPost, "/schedules", ScheduleRuleDTO{
		ID: "evening", Enabled: true,
		Targets:   []TargetDTO{{Kind: "device", ID: "fixture-a"}},
		StartKind: "time_of_day", StartHourMinute: "18:00",
		DurationSeconds: 3600,
		Sequence:        []PlaylistItemDTO{{PresetID: "red", DurationSeconds: 60}},
		FPS:             30,
	})
	require.Equal(t, http.StatusOK, putRec.Code, putRec.Body.String())
	require.Len(t, s.Schedule.Rules(), 1)

	delRec := doRequest(t, router, http.MethodDelete, "/schedules/evening", nil)
	require.Equal(t, http.StatusOK, delRec.Code)
	require.Len(t, s.Schedule.Rules(), 0)
}

func TestPlaylistLifecycle(t *testing.T) {
	s := testServer(t)
	router := NewRouter(s)

	startRec := doRequest(t, router, http.MethodPost, "/playlists/start", PlaylistStartRequest{
		Targets: []TargetDTO{{Kind: "device", ID: "fixture-a"}},
		Items:   []PlaylistItemDTO{{PresetID: "red", DurationSeconds: 60}},
		FPS:     30,
	})
	require.Equal(t, http.StatusOK, startRec.Code, startRec.Body.String())

	time.Sleep(10 * time.Millisecond)
	activeRec := doRequest(t, router, http.MethodGet, "/playlists/active", nil)
	require.Equal(t, http.StatusOK, activeRec.Code)
	var status PlaylistStatusDTO
	decodeBody(t, activeRec, &status)
	require.Equal(t, "red", status.ActivePresetID)

	stopRec := doRequest(t, router, http.MethodPost, "/playlists/stop", nil)
	require.Equal(t, http.StatusOK, stopRec.Code)
}

func TestSchedulesActive_EmptyWithNoRules(t *testing.T) {
	s := testServer(t)
	router := NewRouter(s)
	rec := doRequest(t, router, http.MethodGet, "/schedules/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var statuses []ScheduleRuleStatusDTO
	decodeBody(t, rec, &statuses)
	require.Empty(t, statuses)
}
