package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"resumind-backend/internal/analysis"
	"resumind-backend/internal/scoring"
	"resumind-backend/internal/services/health"
	"resumind-backend/internal/shared/auth"
	"resumind-backend/internal/shared/config"
	kvmemory "resumind-backend/internal/shared/storage/kv/memory"
	objmemory "resumind-backend/internal/shared/storage/object/memory"
)

func testRouterDeps() RouterDeps {
	blobs := objmemory.New()
	records := kvmemory.New()
	orch := &analysis.Orchestrator{Blobs: blobs, Records: records, Scorer: scoring.Unconfigured{}}
	return RouterDeps{
		Config:          config.Config{Env: "dev", CORSAllowOrigin: []string{"http://localhost:5173"}},
		AnalysisHandler: analysis.NewHandler(orch, &analysis.Retriever{Blobs: blobs, Records: records}),
	}
}

func TestRouterPublicRoutes(t *testing.T) {
	router := NewRouter(testRouterDeps())

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{path: "/api/v1/health", wantStatus: http.StatusOK, wantBody: `"ok":true`},
		{path: "/metrics", wantStatus: http.StatusOK, wantBody: "analysis_started_total"},
		{path: "/api/v1/me", wantStatus: http.StatusUnauthorized, wantBody: "login_required"},
		{path: "/api/v1/analyses/abc", wantStatus: http.StatusUnauthorized, wantBody: "login_required"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, resp.Code)
			}
			if !strings.Contains(resp.Body.String(), tt.wantBody) {
				t.Fatalf("expected %q in body, got %s", tt.wantBody, resp.Body.String())
			}
			if resp.Header().Get("X-Request-Id") == "" {
				t.Fatalf("expected request id header")
			}
		})
	}
}

func TestMeReturnsIdentity(t *testing.T) {
	t.Setenv("JWT_SECRET", "router-test")
	token, err := auth.SignJWT(auth.Claims{Sub: "google:42", Email: "dev@example.com", Name: "Dev"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	router := NewRouter(testRouterDeps())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["userId"] != "google:42" || body["email"] != "dev@example.com" || body["authenticated"] != true {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestReadinessReflectsChecks(t *testing.T) {
	tests := []struct {
		name       string
		check      health.Check
		wantStatus int
	}{
		{name: "ready", check: func(context.Context) error { return nil }, wantStatus: http.StatusOK},
		{name: "down", check: func(context.Context) error { return errors.New("dial tcp: refused") }, wantStatus: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			deps := testRouterDeps()
			deps.Health = health.NewService()
			deps.Health.Add("records", tt.check)
			router := NewRouter(deps)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil)
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, resp.Code, resp.Body.String())
			}
			if !strings.Contains(resp.Body.String(), `"records"`) {
				t.Fatalf("expected check name in body: %s", resp.Body.String())
			}
		})
	}
}

func TestAddr(t *testing.T) {
	tests := map[string]string{"": ":8080", "9000": ":9000", ":7000": ":7000"}
	for in, want := range tests {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
