// Package control exposes the local HTTP surface the viewer page talks to:
// playback status, stream configuration, and intent submission.
package control

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/reelsync/reelsync/internal/coordinator"
	"github.com/reelsync/reelsync/internal/protocol"
)

// Controller is the subset of the synchronization engine the HTTP surface
// drives. Every user action goes through an intent; the handler never
// touches the player directly.
type Controller interface {
	Play()
	Pause()
	Seek(target float64)
	SwitchAudio(track protocol.AudioTrack)
	CurrentStatus() coordinator.Status
}

// Handler serves the control API for one session.
type Handler struct {
	controller Controller
	streamCfg  protocol.StreamConfig
}

// NewHandler creates a control handler backed by the given controller.
func NewHandler(controller Controller, streamCfg protocol.StreamConfig) *Handler {
	return &Handler{
		controller: controller,
		streamCfg:  streamCfg,
	}
}

// RegisterRoutes registers the control API routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/api/config", h.handleConfig)
	mux.HandleFunc("/api/intent/play", h.handlePlay)
	mux.HandleFunc("/api/intent/pause", h.handlePause)
	mux.HandleFunc("/api/intent/seek", h.handleSeek)
	mux.HandleFunc("/api/intent/audio", h.handleAudio)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// handleStatus handles GET /api/status
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.controller.CurrentStatus())
}

// handleConfig handles GET /api/config
func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.streamCfg)
}

// handlePlay handles POST /api/intent/play
func (h *Handler) handlePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.controller.Play()
	writeAccepted(w)
}

// handlePause handles POST /api/intent/pause
func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.controller.Pause()
	writeAccepted(w)
}

type seekRequest struct {
	Position float64 `json:"position"`
}

// handleSeek handles POST /api/intent/seek
func (h *Handler) handleSeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req seekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid seek request body", http.StatusBadRequest)
		return
	}
	if req.Position < 0 {
		http.Error(w, "Seek position must be non-negative", http.StatusBadRequest)
		return
	}
	h.controller.Seek(req.Position)
	writeAccepted(w)
}

type audioRequest struct {
	Track protocol.AudioTrack `json:"track"`
}

// handleAudio handles POST /api/intent/audio
func (h *Handler) handleAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req audioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid audio request body", http.StatusBadRequest)
		return
	}
	if !req.Track.Valid() {
		http.Error(w, fmt.Sprintf("Unknown audio track %q", req.Track), http.StatusBadRequest)
		return
	}
	h.controller.SwitchAudio(req.Track)
	writeAccepted(w)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode control response")
	}
}

func writeAccepted(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte(`{"accepted":true}`))
}

// NewServer builds the control HTTP server with CORS for the viewer page.
func NewServer(addr string, handler *Handler, extra func(mux *http.ServeMux)) *http.Server {
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	if extra != nil {
		extra(mux)
	}

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:         addr,
		Handler:      c.Handler(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
