// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package streaming

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

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

func testSpec(id string) session.Spec {
	return session.Spec{
		ID:      id,
		Targets: []resolve.Target{{Kind: resolve.KindDevice, ID: "fixture-a"}},
		Layers: []session.LayerSpec{
			{ID: "l1", EffectType: "solid", Enabled: true, Opacity: 1,
				Params: effects.Params{"colors": {Kind: effects.KindColorArray, Colors: []string{"#00FF00"}}}},
		},
		FPS: 60,
	}
}

func TestPreviewServer_StreamsFramesForRunningSession(t *testing.T) {
	sup := testSupervisor(t)
	sess, err := sup.StartSession(testSpec("preview-1"))
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	defer sup.Stop(sess.ID())

	ps := NewPreviewServer(&SupervisorFrameSource{Supervisor: sup}, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/stream/preview/"+sess.ID(), func(w http.ResponseWriter, r *http.Request) {
		ps.HandlePreview(w, r, sess.ID())
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream/preview/" + sess.ID()
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame PreviewFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if frame.SessionID != sess.ID() {
		t.Fatalf("expected session id %q, got %q", sess.ID(), frame.SessionID)
	}
	if frame.Width != 10 {
		t.Fatalf("expected width 10, got %d", frame.Width)
	}
	if len(frame.Pixels) != frame.Width*3 {
		t.Fatalf("expected %d pixel bytes, got %d", frame.Width*3, len(frame.Pixels))
	}
}

func TestPreviewServer_UnknownSessionReturnsError(t *testing.T) {
	sup := testSupervisor(t)
	ps := NewPreviewServer(&SupervisorFrameSource{Supervisor: sup}, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/stream/preview/missing", func(w http.ResponseWriter, r *http.Request) {
		ps.HandlePreview(w, r, "missing")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream/preview/missing"
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var payload map[string]string
	if err := conn.ReadJSON(&payload); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if payload["error"] == "" {
		t.Fatal("expected an error payload for an unknown session")
	}
}

func TestEventServer_StreamsSessionLifecycleEvents(t *testing.T) {
	sup := testSupervisor(t)

	es := NewEventServer(&SupervisorEventSource{Supervisor: sup})
	srv := httptest.NewServer(http.HandlerFunc(es.HandleEvents))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	connected := readSSELine(t, reader, "event: connected")
	if !connected {
		t.Fatal("expected a connected event before any session activity")
	}

	sess, err := sup.StartSession(testSpec("events-1"))
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	defer sup.Stop(sess.ID())

	if !readSSELine(t, reader, "event: session_started") {
		t.Fatal("expected a session_started event")
	}
}

// readSSELine scans lines from r until one equal to want is found, a read
// fails, or three seconds have passed.
func readSSELine(t *testing.T, r *bufio.Reader, want string) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		line, err := r.ReadString('\n')
		if err != nil {
			return false
		}
		if strings.TrimRight(line, "\r\n") == want {
			return true
		}
	}
	return false
}
