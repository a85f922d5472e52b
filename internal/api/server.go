// Package api provides the HTTP surface for observing the fleet: agent
// snapshots, memory statistics, scheduler performance and a websocket feed.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/calder-games/npcmind/internal/agent"
	"github.com/calder-games/npcmind/internal/emotion"
	"github.com/calder-games/npcmind/internal/fleet"
	"github.com/calder-games/npcmind/internal/memory"
)

// Server serves fleet state over HTTP.
type Server struct {
	Fleet    *fleet.Manager
	Memories *memory.Store
	Emotions *emotion.Layer
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	watch *watchHub
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	s.watch = newWatchHub()
	watchLimiter := NewRateLimiter(60, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgentDetail)
	mux.HandleFunc("/api/v1/memory", s.handleMemory)
	mux.HandleFunc("/api/v1/perf", s.handlePerf)

	// Websocket feed of per-tick summaries.
	mux.HandleFunc("/api/v1/watch", RateLimitMiddleware(watchLimiter, s.handleWatch))

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/agent/priority", s.adminOnly(s.handleSetPriority))
	mux.HandleFunc("/api/v1/agent/active", s.adminOnly(s.handleSetActive))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		handler := corsMiddleware(mux)
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Publish pushes one tick summary to all websocket watchers. The simulation
// loop calls it after each scheduler tick.
func (s *Server) Publish() {
	if s.watch == nil {
		return
	}
	s.watch.broadcast(s.tickSummary())
}

func (s *Server) tickSummary() map[string]any {
	stats := s.Fleet.Stats()
	summary := map[string]any{
		"at":            time.Now().UTC(),
		"total_agents":  stats.TotalAgents,
		"active_agents": stats.ActiveAgents,
		"groups":        stats.Groups,
		"last_tick_us":  stats.LastTick.Microseconds(),
		"last_updated":  stats.LastUpdated,
	}
	if s.Memories != nil {
		summary["memory"] = s.Memories.Statistics()
	}
	return summary
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no NPCMIND_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.tickSummary())
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	type agentSummary struct {
		ID       uint64  `json:"id"`
		State    string  `json:"state"`
		Priority string  `json:"priority"`
		Threat   float64 `json:"threat"`
		Health   float64 `json:"health_ratio"`
	}

	snaps := s.Fleet.Snapshots()
	out := make([]agentSummary, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, agentSummary{
			ID:       snap.ID,
			State:    snap.State,
			Priority: snap.Priority,
			Threat:   snap.Threat,
			Health:   snap.HealthRatio,
		})
	}
	writeJSON(w, map[string]any{"agents": out, "count": len(out)})
}

func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/agent/")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}
	core, err := s.Fleet.Core(id)
	if err != nil {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	out := map[string]any{"agent": core.Snapshot()}
	if s.Emotions != nil {
		out["disposition"] = s.Emotions.DispositionOf(id)
	}
	writeJSON(w, out)
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	if s.Memories == nil {
		http.Error(w, "memory store disabled", http.StatusNotFound)
		return
	}
	writeJSON(w, s.Memories.Statistics())
}

func (s *Server) handlePerf(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Fleet.PerfStats())
}

func (s *Server) handleSetPriority(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       uint64 `json:"id"`
		Priority string `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	var p agent.Priority
	switch req.Priority {
	case "critical":
		p = agent.PriorityCritical
	case "high":
		p = agent.PriorityHigh
	case "medium":
		p = agent.PriorityMedium
	case "low":
		p = agent.PriorityLow
	default:
		http.Error(w, "unknown priority", http.StatusBadRequest)
		return
	}
	if err := s.Fleet.SetPriority(req.ID, p); err != nil {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     uint64 `json:"id"`
		Active bool   `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.Fleet.SetActive(req.ID, req.Active); err != nil {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write response", "error", err)
	}
}
