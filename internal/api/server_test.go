package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/calder-games/npcmind/internal/config"
	"github.com/calder-games/npcmind/internal/fleet"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	mgr := fleet.NewManager(fleet.Options{Config: cfg.Fleet, Decision: cfg.Decision})
	return &Server{Fleet: mgr, Port: cfg.API.Port, AdminKey: "test-key"}
}

func TestStatusReportsFleetCounts(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["total_agents"].(float64) != 0 {
		t.Errorf("total_agents = %v, want 0", body["total_agents"])
	}
}

func TestAgentDetailRejectsBadID(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handleAgentDetail(rec, httptest.NewRequest(http.MethodGet, "/api/v1/agent/banana", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id: status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.handleAgentDetail(rec, httptest.NewRequest(http.MethodGet, "/api/v1/agent/99", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", rec.Code)
	}
}

func TestAdminEndpointsRequireBearerToken(t *testing.T) {
	s := newTestServer(t)
	handler := s.adminOnly(s.handleSetActive)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/v1/agent/active", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: status = %d, want 405", rec.Code)
	}

	body := strings.NewReader(`{"id":1,"active":false}`)
	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/api/v1/agent/active", body))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	body = strings.NewReader(`{"id":1,"active":false}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/agent/active", body)
	req.Header.Set("Authorization", "Bearer test-key")
	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("valid token, unknown agent: status = %d, want 404", rec.Code)
	}
}

func TestSetPriorityValidatesName(t *testing.T) {
	s := newTestServer(t)
	body := strings.NewReader(`{"id":1,"priority":"urgent"}`)
	rec := httptest.NewRecorder()
	s.handleSetPriority(rec, httptest.NewRequest(http.MethodPost, "/api/v1/agent/priority", body))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		maxRate: 2,
		window:  time.Minute,
	}

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatal("first two requests should be allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("third request within window should be rejected")
	}
	if rl.RetryAfter("10.0.0.1") <= 0 {
		t.Error("RetryAfter should be positive while limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("separate IPs get separate buckets")
	}

	// Expire the window.
	rl.buckets["10.0.0.1"].lastReset = time.Now().Add(-2 * time.Minute)
	if !rl.Allow("10.0.0.1") {
		t.Error("request after window reset should be allowed")
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.10:5555"
	if got := clientIP(r); got != "192.0.2.10" {
		t.Errorf("clientIP = %q, want 192.0.2.10", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 192.0.2.10")
	if got := clientIP(r); got != "203.0.113.7" {
		t.Errorf("clientIP = %q, want 203.0.113.7", got)
	}
}
