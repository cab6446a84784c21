// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jontk/ddpctl/supervisor"
)

// LifecycleEvent reports a session, playlist, or schedule state transition
// for GET /stream/events subscribers (spec.md §4.5, §4.7, §4.8).
type LifecycleEvent struct {
	EventType string            `json:"event_type"` // e.g. "session_started", "session_stopped", "session_paused"
	SessionID string            `json:"session_id,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// EventSource supplies a feed of controller-wide lifecycle events.
type EventSource interface {
	SubscribeEvents(ctx context.Context) (<-chan LifecycleEvent, error)
}

// SupervisorEventSource is the concrete EventSource backing GET
// /stream/events: it relays a Supervisor's own session lifecycle feed
// (supervisor.go's publishEvent, fired from StartSession/Stop/Pause/Resume).
type SupervisorEventSource struct {
	Supervisor *supervisor.Supervisor
}

// SubscribeEvents implements EventSource.
func (e *SupervisorEventSource) SubscribeEvents(ctx context.Context) (<-chan LifecycleEvent, error) {
	events, unsubscribe := e.Supervisor.SubscribeEvents()

	out := make(chan LifecycleEvent)
	go func() {
		defer close(out)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				wire := LifecycleEvent{
					EventType: ev.EventType,
					SessionID: ev.SessionID,
					Detail:    ev.Detail,
					Timestamp: ev.Timestamp,
				}
				select {
				case out <- wire:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// EventServer serves LifecycleEvents as Server-Sent Events for
// GET /stream/events.
type EventServer struct {
	source EventSource
}

// NewEventServer creates a new Server-Sent Events server.
func NewEventServer(source EventSource) *EventServer {
	return &EventServer{source: source}
}

// SSEEvent is one message in the SSE wire format.
type SSEEvent struct {
	ID    string      `json:"-"`
	Event string      `json:"-"`
	Data  interface{} `json:"-"`
}

// HandleEvents streams lifecycle events to the client until it disconnects.
func (s *EventServer) HandleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()

	events, err := s.source.SubscribeEvents(ctx)
	if err != nil {
		s.writeSSEEvent(w, flusher, SSEEvent{
			Event: "error",
			Data:  map[string]string{"error": err.Error()},
		})
		return
	}

	s.writeSSEEvent(w, flusher, SSEEvent{
		Event: "connected",
		Data:  map[string]string{"status": "connected"},
	})

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				s.writeSSEEvent(w, flusher, SSEEvent{
					Event: "stream_closed",
					Data:  map[string]string{"status": "closed"},
				})
				return
			}
			s.writeSSEEvent(w, flusher, SSEEvent{
				ID:    fmt.Sprintf("%s-%d", event.EventType, event.Timestamp.UnixNano()),
				Event: event.EventType,
				Data:  event,
			})
		}
	}
}

func (s *EventServer) writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event SSEEvent) {
	if event.ID != "" {
		fmt.Fprintf(w, "id: %s\n", event.ID)
	}
	if event.Event != "" {
		fmt.Fprintf(w, "event: %s\n", event.Event)
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		fmt.Fprintf(w, "data: {\"error\":\"failed to marshal event\"}\n\n")
		flusher.Flush()
		return
	}

	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
