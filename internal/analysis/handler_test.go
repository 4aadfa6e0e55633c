package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"resumind-backend/internal/shared/auth"
	"resumind-backend/internal/shared/server/middleware"
)

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newTestRouter(t *testing.T, h *Handler) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Auth("dev"))
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func bearer(t *testing.T, sub string) string {
	t.Helper()
	t.Setenv("JWT_SECRET", "handler-test-secret")
	token, err := auth.SignJWT(auth.Claims{Sub: sub})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + token
}

func multipartBody(t *testing.T, fileName string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileName != "" {
		part, err := w.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("create file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func acmeFields() map[string]string {
	return map[string]string{
		"companyName":    "Acme",
		"jobTitle":       "Engineer",
		"jobDescription": "Build and run Go services.",
	}
}

func submitRequest(t *testing.T, token, fileName string, data []byte) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, fileName, data, acmeFields())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	return req
}

func decodeEnvelope(t *testing.T, resp *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, resp.Body.String())
	}
	return env
}

func TestSubmitRequiresLogin(t *testing.T) {
	f := newFixture(textScorer(validFeedback))
	router := newTestRouter(t, NewHandler(f.orch, f.retriever))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, submitRequest(t, "", "resume.pdf", samplePDF))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	env := decodeEnvelope(t, resp)
	if env.Error.Code != "login_required" {
		t.Fatalf("expected login_required, got %q", env.Error.Code)
	}
	if env.Error.Details["next"] != "/auth?next=%2Fapi%2Fv1%2Fanalyses" {
		t.Fatalf("unexpected next hint: %v", env.Error.Details["next"])
	}
	if f.converter.calls != 0 {
		t.Fatalf("pipeline must not run for guests")
	}
}

func TestSubmitAndFetch(t *testing.T) {
	f := newFixture(textScorer(validFeedback))
	router := newTestRouter(t, NewHandler(f.orch, f.retriever))
	token := bearer(t, "user-1")

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, submitRequest(t, token, "resume.pdf", samplePDF))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		ID       string `json:"id"`
		Redirect string `json:"redirect"`
		Record   Record `json:"record"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Redirect != "/resume/"+created.ID {
		t.Fatalf("unexpected response: %+v", created)
	}
	if created.Record.CompanyName != "Acme" || created.Record.Feedback == nil {
		t.Fatalf("unexpected record: %+v", created.Record)
	}

	tests := []struct {
		path        string
		contentType string
	}{
		{path: "/api/v1/analyses/" + created.ID, contentType: "application/json"},
		{path: "/api/v1/analyses/" + created.ID + "/document", contentType: "application/pdf"},
		{path: "/api/v1/analyses/" + created.ID + "/preview", contentType: "image/png"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("Authorization", token)
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
			}
			if got := resp.Header().Get("Content-Type"); !strings.HasPrefix(got, tt.contentType) {
				t.Fatalf("expected %s, got %s", tt.contentType, got)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+created.ID, nil)
	req.Header.Set("Authorization", token)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	var fetched Record
	if err := json.NewDecoder(resp.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if fetched.ID != created.ID || fetched.JobTitle != "Engineer" || fetched.Feedback.OverallScore != 82 {
		t.Fatalf("unexpected record: %+v", fetched)
	}
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		data     []byte
		wantCode string
	}{
		{name: "missing file", wantCode: "validation_error"},
		{name: "not a pdf", fileName: "notes.txt", data: []byte("hello there"), wantCode: "validation_error"},
		{name: "empty pdf", fileName: "resume.pdf", data: []byte{}, wantCode: "validation_error"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(textScorer(validFeedback))
			router := newTestRouter(t, NewHandler(f.orch, f.retriever))

			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, submitRequest(t, bearer(t, "user-1"), tt.fileName, tt.data))
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
			}
			if env := decodeEnvelope(t, resp); env.Error.Code != tt.wantCode {
				t.Fatalf("expected %s, got %s", tt.wantCode, env.Error.Code)
			}
			if len(f.blobs.Paths()) != 0 {
				t.Fatalf("rejected submission uploaded blobs")
			}
		})
	}
}

func TestSubmitSniffsPDFWithoutExtension(t *testing.T) {
	f := newFixture(textScorer(validFeedback))
	router := newTestRouter(t, NewHandler(f.orch, f.retriever))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, submitRequest(t, bearer(t, "user-1"), "resume", samplePDF))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestSubmitRejectsConcurrentRun(t *testing.T) {
	f := newFixture(textScorer(validFeedback))
	h := NewHandler(f.orch, f.retriever)
	router := newTestRouter(t, h)
	h.InFlight.Acquire("user-1")
	h.InFlight.Bind("user-1", "running-id")

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, submitRequest(t, bearer(t, "user-1"), "resume.pdf", samplePDF))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
	env := decodeEnvelope(t, resp)
	if env.Error.Code != "analysis_in_progress" || env.Error.Details["analysisId"] != "running-id" {
		t.Fatalf("unexpected body: %+v", env)
	}

	h.InFlight.Release("user-1")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, submitRequest(t, bearer(t, "user-1"), "resume.pdf", samplePDF))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 after release, got %d", resp.Code)
	}
	if _, busy := h.InFlight.Current("user-1"); busy {
		t.Fatalf("handler must release the user when the run ends")
	}
}

func TestSubmitPipelineErrors(t *testing.T) {
	tests := []struct {
		name       string
		scorer     *fakeScorer
		convertErr bool
		wantStatus int
		wantCode   string
		wantStage  string
	}{
		{name: "malformed", scorer: textScorer("no json here"), wantStatus: http.StatusBadGateway, wantCode: "malformed_feedback", wantStage: "parsing"},
		{name: "scoring", scorer: &fakeScorer{err: context.DeadlineExceeded}, wantStatus: http.StatusBadGateway, wantCode: "scoring_failed", wantStage: "scoring"},
		{name: "conversion", scorer: textScorer(validFeedback), convertErr: true, wantStatus: http.StatusUnprocessableEntity, wantCode: "conversion_failed", wantStage: "converting"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.scorer)
			if tt.convertErr {
				f.orch.Converter = &fakeConverter{err: context.Canceled}
			}
			router := newTestRouter(t, NewHandler(f.orch, f.retriever))

			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, submitRequest(t, bearer(t, "user-1"), "resume.pdf", samplePDF))
			if resp.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, resp.Code, resp.Body.String())
			}
			env := decodeEnvelope(t, resp)
			if env.Error.Code != tt.wantCode {
				t.Fatalf("expected %s, got %s", tt.wantCode, env.Error.Code)
			}
			if env.Error.Details["stage"] != tt.wantStage {
				t.Fatalf("expected stage %s, got %v", tt.wantStage, env.Error.Details["stage"])
			}
			if id, _ := env.Error.Details["analysisId"].(string); id == "" {
				t.Fatalf("expected analysisId in details")
			}
		})
	}
}

func TestSubmitStreamsStatus(t *testing.T) {
	f := newFixture(textScorer(validFeedback))
	router := newTestRouter(t, NewHandler(f.orch, f.retriever))

	req := submitRequest(t, bearer(t, "user-1"), "resume.pdf", samplePDF)
	req.Header.Set("Accept", "text/event-stream")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/event-stream") {
		t.Fatalf("expected event stream, got %q", got)
	}
	body := resp.Body.String()
	if n := strings.Count(body, "event:status"); n != 7 {
		t.Fatalf("expected 7 status events, got %d:\n%s", n, body)
	}
	if !strings.Contains(body, "event:done") || strings.Contains(body, "event:failed") {
		t.Fatalf("expected a done event:\n%s", body)
	}
	if !strings.Contains(body, "Analysis complete! Redirecting...") {
		t.Fatalf("expected the done status text:\n%s", body)
	}
}

func TestSubmitStreamsFailure(t *testing.T) {
	f := newFixture(textScorer("nope"))
	router := newTestRouter(t, NewHandler(f.orch, f.retriever))

	req := submitRequest(t, bearer(t, "user-1"), "resume.pdf", samplePDF)
	req.Header.Set("Accept", "text/event-stream")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	body := resp.Body.String()
	if !strings.Contains(body, "event:failed") || !strings.Contains(body, "malformed_feedback") {
		t.Fatalf("expected failed event:\n%s", body)
	}
	if strings.Contains(body, "event:done") {
		t.Fatalf("unexpected done event:\n%s", body)
	}
}

func TestGetErrors(t *testing.T) {
	f := newFixture(textScorer(validFeedback))
	rec, err := f.orch.Analyze(context.Background(), acmeSubmission(), nil)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if err := f.blobs.Delete(context.Background(), rec.DocumentPath); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.records.Set(context.Background(), CanonicalKey("broken"), "{"); err != nil {
		t.Fatalf("set: %v", err)
	}
	router := newTestRouter(t, NewHandler(f.orch, f.retriever))
	token := bearer(t, "user-1")

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   string
	}{
		{name: "missing", path: "/api/v1/analyses/nope", wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{name: "corrupt", path: "/api/v1/analyses/broken", wantStatus: http.StatusUnprocessableEntity, wantCode: "record_corrupt"},
		{name: "incomplete", path: "/api/v1/analyses/" + rec.ID, wantStatus: http.StatusFailedDependency, wantCode: "record_incomplete"},
		{name: "missing document blob", path: "/api/v1/analyses/" + rec.ID + "/document", wantStatus: http.StatusNotFound, wantCode: "not_found"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("Authorization", token)
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, resp.Code, resp.Body.String())
			}
			env := decodeEnvelope(t, resp)
			if env.Error.Code != tt.wantCode {
				t.Fatalf("expected %s, got %s", tt.wantCode, env.Error.Code)
			}
			if tt.wantCode == "record_incomplete" {
				recBody, ok := env.Error.Details["record"].(map[string]any)
				if !ok || recBody["companyName"] != "Acme" {
					t.Fatalf("expected record in details, got %v", env.Error.Details)
				}
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+rec.ID+"/preview", nil)
	req.Header.Set("Authorization", token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("surviving preview should still be served, got %d", resp.Code)
	}
}
