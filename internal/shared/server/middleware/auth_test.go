package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"resumind-backend/internal/shared/auth"
)

func TestAuthAllowsOptionsWithoutIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth("dev"))
	router.OPTIONS("/api/v1/analyses", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/analyses", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAuthResolvesIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")
	token, err := auth.SignJWT(auth.Claims{Sub: "user-1", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		guest      string
		wantStatus int
		wantAuth   bool
		wantUser   string
	}{
		{name: "bearer", header: "Bearer " + token, wantStatus: http.StatusOK, wantAuth: true, wantUser: "user-1"},
		{name: "guest header", guest: "g1", wantStatus: http.StatusOK, wantUser: "guest:g1"},
		{name: "anonymous", wantStatus: http.StatusOK},
		{name: "bad scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(Auth("dev"))
			router.GET("/whoami", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{
					"auth": IsAuthenticated(c),
					"user": UserIDFromContext(c),
				})
			})

			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.guest != "" {
				req.Header.Set("X-Guest-Id", tt.guest)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, resp.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body struct {
				Auth bool   `json:"auth"`
				User string `json:"user"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Auth != tt.wantAuth {
				t.Fatalf("expected auth=%v, got %v", tt.wantAuth, body.Auth)
			}
			if body.User != tt.wantUser {
				t.Fatalf("expected user %q, got %q", tt.wantUser, body.User)
			}
		})
	}
}

func TestRequireLoginReturnsNextHint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth("dev"))
	router.GET("/api/v1/analyses/:id", RequireLogin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/abc", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "login_required" {
		t.Fatalf("expected login_required, got %q", body.Error.Code)
	}
	if got := body.Error.Details["next"]; got != "/auth?next=%2Fapi%2Fv1%2Fanalyses%2Fabc" {
		t.Fatalf("unexpected next hint: %q", got)
	}
}
