package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/msdcl/nlq-backend/internal/config"
	"github.com/msdcl/nlq-backend/internal/monitor"
)

func healthProbe(ok bool) func(ctx context.Context) bool {
	return func(context.Context) bool { return ok }
}

func newHealthServer(health Health) *Server {
	cfg := config.DefaultConfig()
	cfg.Security.AllowUnauthenticated = true
	metrics := monitor.NewMetrics()
	handlers := NewHandlers(nil, nil, nil, nil, nil, metrics)
	return NewServer(cfg, handlers, health, metrics)
}

func getHealth(t *testing.T, s *Server) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/nlq/health", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	return rec, resp
}

func TestHandleHealth_AllProbesHealthy(t *testing.T) {
	s := newHealthServer(Health{
		DB:     healthProbe(true),
		Exec:   healthProbe(true),
		LLM:    healthProbe(true),
		Vector: healthProbe(true),
	})

	rec, resp := getHealth(t, s)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
	if !resp.Database || !resp.LLM || !resp.VectorIndex {
		t.Errorf("probes = %+v, want all true", resp)
	}
}

// A collaborator that never initialized must read as unhealthy, otherwise
// a server whose query endpoints return 503 still reports 200 here.
func TestHandleHealth_UnconfiguredIsDegraded(t *testing.T) {
	s := newHealthServer(Health{})

	rec, resp := getHealth(t, s)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got status %d, want 503", rec.Code)
	}
	if resp.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", resp.Status)
	}
	if resp.Database || resp.LLM || resp.VectorIndex {
		t.Errorf("probes = %+v, want all false", resp)
	}
}

func TestHandleHealth_LLMDownIsDegraded(t *testing.T) {
	s := newHealthServer(Health{
		DB:     healthProbe(true),
		Exec:   healthProbe(true),
		LLM:    healthProbe(false),
		Vector: healthProbe(true),
	})

	rec, resp := getHealth(t, s)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got status %d, want 503", rec.Code)
	}
	if !resp.Database {
		t.Error("Database = false, want true")
	}
	if resp.LLM {
		t.Error("LLM = true, want false")
	}
}
