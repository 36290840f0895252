// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Ranidpz/qrinfo-sub000/livesync"
	"github.com/Ranidpz/qrinfo-sub000/middleware"
	"github.com/Ranidpz/qrinfo-sub000/phase"
)

// keepAliveInterval spaces SSE comments so proxies don't cut idle streams.
const keepAliveInterval = 25 * time.Second

// StreamHandler exposes the live sync hub over SSE.
type StreamHandler struct {
	db  *sql.DB
	hub *livesync.Hub
}

func NewStreamHandler(db *sql.DB, hub *livesync.Hub) *StreamHandler {
	return &StreamHandler{db: db, hub: hub}
}

// Stream handles GET /q/{shortId}/stream. Emits "config" and
// "candidates" events; the first config event is the current state so a
// reconnecting viewer needs no separate bootstrap fetch.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	codeID, err := resolveShortID(h.db, r.PathValue("shortId"))
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	configCh, cancelConfig := h.hub.SubscribeConfig(codeID)
	defer cancelConfig()
	candidateCh, cancelCandidates := h.hub.SubscribeCandidates(codeID)
	defer cancelCandidates()

	if cfg, err := phase.LoadConfig(h.db, codeID); err == nil {
		writeEvent(w, "config", cfg)
		flusher.Flush()
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case cfg, ok := <-configCh:
			if !ok {
				return
			}
			writeEvent(w, "config", cfg)
			flusher.Flush()
		case cands, ok := <-candidateCh:
			if !ok {
				return
			}
			writeEvent(w, "candidates", cands)
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to encode stream event", "event", event, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}
