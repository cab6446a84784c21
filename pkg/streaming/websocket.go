// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package streaming exposes the controller's internal event and frame
// streams over the management API's WebSocket and SSE endpoints (spec.md
// §6, §10.8). It wraps channel-producing sources the same way the teacher
// corpus wraps its polling Watch functions for WebSocket/SSE delivery.
package streaming

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	ctrlerrors "github.com/jontk/ddpctl/pkg/errors"
	"github.com/jontk/ddpctl/pkg/logging"
	"github.com/jontk/ddpctl/session"
	"github.com/jontk/ddpctl/supervisor"
)

// PreviewFrame is one composited frame of a streaming session, downsampled
// for browser preview rather than wire transmission.
type PreviewFrame struct {
	SessionID string    `json:"session_id"`
	Sequence  uint64    `json:"sequence"`
	Width     int       `json:"width"`
	Pixels    []byte    `json:"pixels"` // RGB triplets, len == Width*3
	Timestamp time.Time `json:"timestamp"`
}

// FrameSource supplies a live preview-frame channel for a session.
type FrameSource interface {
	SubscribePreview(ctx context.Context, sessionID string) (<-chan PreviewFrame, error)
}

// SupervisorFrameSource is the concrete FrameSource backing
// GET /stream/preview/{sessionID}: it looks sessionID up in a running
// Supervisor and relays that session's own preview feed (session.go's
// per-tick publishPreview), converting session.PreviewFrame to the wire
// PreviewFrame as it goes.
type SupervisorFrameSource struct {
	Supervisor *supervisor.Supervisor
}

// SubscribePreview implements FrameSource.
func (f *SupervisorFrameSource) SubscribePreview(ctx context.Context, sessionID string) (<-chan PreviewFrame, error) {
	sess, ok := f.Supervisor.Get(sessionID)
	if !ok {
		return nil, ctrlerrors.NewNotFoundError(ctrlerrors.ErrorCodeSessionNotFound, "session", sessionID)
	}
	frames, unsubscribe := sess.SubscribePreview()

	out := make(chan PreviewFrame)
	go func() {
		defer close(out)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sess.Done():
				return
			case frame, ok := <-frames:
				if !ok {
					return
				}
				wire := previewFrameFromSession(frame)
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

func previewFrameFromSession(f session.PreviewFrame) PreviewFrame {
	return PreviewFrame{
		SessionID: f.SessionID,
		Sequence:  f.Sequence,
		Width:     f.Width,
		Pixels:    f.Pixels,
		Timestamp: f.Timestamp,
	}
}

// PreviewServer serves live session frames over WebSocket for
// GET /stream/preview/{sessionID}.
type PreviewServer struct {
	source   FrameSource
	logger   logging.Logger
	upgrader websocket.Upgrader
}

// NewPreviewServer creates a new live-preview WebSocket server.
func NewPreviewServer(source FrameSource, logger logging.Logger) *PreviewServer {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &PreviewServer{
		source: source,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandlePreview upgrades the request and streams preview frames for
// sessionID until the session ends or the client disconnects.
func (s *PreviewServer) HandlePreview(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("preview websocket upgrade failed", "error", err, "session_id", sessionID)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go s.drainClient(ctx, conn, cancel)

	frames, err := s.source.SubscribePreview(ctx, sessionID)
	if err != nil {
		conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drainClient discards inbound client messages (ping/pong handled by the
// gorilla/websocket library) and cancels the stream once the client closes.
func (s *PreviewServer) drainClient(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
