// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor/datatypes"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 64 * 1024,
}

// subscriberBuffer sizes each subscriber's event channel. A pipeline
// emits well under this many events; a full channel means the client
// stopped reading and the event is dropped rather than blocking the run.
const subscriberBuffer = 32

// Hub fans pipeline progress events out to WebSocket subscribers keyed
// by session ID. Publishing never blocks the pipeline.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan datatypes.ProgressEvent]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan datatypes.ProgressEvent]struct{})}
}

// Subscribe registers interest in a session's events. The returned
// cancel func must be called when done; it closes the channel.
func (h *Hub) Subscribe(sessionID string) (<-chan datatypes.ProgressEvent, func()) {
	ch := make(chan datatypes.ProgressEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan datatypes.ProgressEvent]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[sessionID]; ok {
			if _, subscribed := set[ch]; subscribed {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, sessionID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to all subscribers of its session. Slow
// subscribers are skipped.
func (h *Hub) Publish(event datatypes.ProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[event.SessionID] {
		select {
		case ch <- event:
		default:
			slog.Warn("Dropping progress event for slow subscriber",
				"sessionId", event.SessionID, "type", event.Type)
		}
	}
}

// wsWriteTimeout bounds each frame write so a dead client cannot hold
// the connection goroutine.
const wsWriteTimeout = 10 * time.Second

// HandleProgressWS streams a session's pipeline progress over a
// WebSocket. The client connects with ?session_id=<id> before (or while)
// posting the analysis; the stream closes after the terminal event.
func HandleProgressWS(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Query("session_id")
		if sessionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id query parameter is required"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("Failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()
		slog.Info("Progress websocket connected", "sessionId", sessionID)

		events, cancel := hub.Subscribe(sessionID)
		defer cancel()

		// Reader goroutine: detect client disconnect. Inbound frames are
		// not part of the protocol and are discarded.
		disconnected := make(chan struct{})
		go func() {
			defer close(disconnected)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-disconnected:
				slog.Info("Progress websocket client disconnected", "sessionId", sessionID)
				return
			case <-c.Request.Context().Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				_ = ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := ws.WriteJSON(event); err != nil {
					slog.Warn("Failed to write progress event", "sessionId", sessionID, "error", err)
					return
				}
				if event.Type == datatypes.EventPipelineCompleted || event.Type == datatypes.EventError {
					return
				}
			}
		}
	}
}
