package analysis

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"resumind-backend/internal/scoring"
	"resumind-backend/internal/shared/server/middleware"
	"resumind-backend/internal/shared/server/respond"
	"resumind-backend/internal/shared/util"
)

const maxUploadSize = 10 << 20 // 10MB

// Handler wires HTTP handlers to the pipeline and the retriever.
type Handler struct {
	Orchestrator *Orchestrator
	Retriever    *Retriever
	InFlight     *InFlight
	// SubmitLimit, when set, runs before submissions.
	SubmitLimit gin.HandlerFunc
}

// NewHandler constructs a Handler with a fresh in-flight guard.
func NewHandler(o *Orchestrator, r *Retriever) *Handler {
	return &Handler{Orchestrator: o, Retriever: r, InFlight: NewInFlight()}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	submit := []gin.HandlerFunc{middleware.RequireLogin()}
	if h.SubmitLimit != nil {
		submit = append(submit, h.SubmitLimit)
	}
	submit = append(submit, h.submit)

	rg.POST("/analyses", submit...)
	rg.GET("/analyses/:id", middleware.RequireLogin(), h.get)
	rg.GET("/analyses/:id/document", middleware.RequireLogin(), h.document)
	rg.GET("/analyses/:id/preview", middleware.RequireLogin(), h.preview)
}

// ResultPath is the client route that shows a finished analysis.
func ResultPath(id string) string {
	return "/resume/" + id
}

func (h *Handler) submit(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds 10MB", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	data, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	if len(data) > 0 && !isPDF(fileHeader.Filename, data) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "only PDF files are supported", nil)
		return
	}

	sub := Submission{
		CompanyName:    strings.TrimSpace(c.PostForm("companyName")),
		JobTitle:       strings.TrimSpace(c.PostForm("jobTitle")),
		JobDescription: strings.TrimSpace(c.PostForm("jobDescription")),
		Document:       data,
	}

	if !h.InFlight.Acquire(userID) {
		current, _ := h.InFlight.Current(userID)
		respond.Error(c, http.StatusConflict, "analysis_in_progress", "An analysis is already running", gin.H{"analysisId": current})
		return
	}
	defer h.InFlight.Release(userID)

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))

	if wantsEventStream(c) {
		h.submitStream(c, ctx, userID, sub)
		return
	}

	rec, err := h.Orchestrator.Analyze(ctx, sub, func(s Status) {
		h.track(c, userID, s)
	})
	if err != nil {
		writeAnalyzeError(c, err)
		return
	}

	respond.Created(c, gin.H{
		"id":       rec.ID,
		"record":   rec,
		"redirect": ResultPath(rec.ID),
	})
}

// submitStream runs the pipeline while writing each status as an SSE event.
// The final event is "done" with the result or "failed" with the error body.
func (h *Handler) submitStream(c *gin.Context, ctx context.Context, userID string, sub Submission) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	rec, err := h.Orchestrator.Analyze(ctx, sub, func(s Status) {
		h.track(c, userID, s)
		c.SSEvent("status", s)
		c.Writer.Flush()
	})
	if err != nil {
		status, body := analyzeErrorBody(err)
		c.SSEvent("failed", gin.H{"status": status, "error": body})
		c.Writer.Flush()
		return
	}
	c.SSEvent("done", gin.H{
		"id":       rec.ID,
		"record":   rec,
		"redirect": ResultPath(rec.ID),
	})
	c.Writer.Flush()
}

func (h *Handler) track(c *gin.Context, userID string, s Status) {
	if s.AnalysisID != "" {
		c.Set("analysisId", s.AnalysisID)
		h.InFlight.Bind(userID, s.AnalysisID)
	}
	c.Set("stage", string(s.Stage))
}

func (h *Handler) get(c *gin.Context) {
	out, ok := h.retrieve(c)
	if !ok {
		return
	}
	respond.OK(c, out.Record)
}

func (h *Handler) document(c *gin.Context) {
	out, ok := h.retrieveBlobs(c)
	if !ok {
		return
	}
	if out.Document == nil {
		respond.Error(c, http.StatusNotFound, "not_found", "resume file not available", nil)
		return
	}
	respond.Blob(c, "application/pdf", out.Document)
}

func (h *Handler) preview(c *gin.Context) {
	out, ok := h.retrieveBlobs(c)
	if !ok {
		return
	}
	if out.PreviewImage == nil {
		respond.Error(c, http.StatusNotFound, "not_found", "preview image not available", nil)
		return
	}
	respond.Blob(c, "image/png", out.PreviewImage)
}

// retrieve writes the error response itself and reports whether the caller
// may continue.
func (h *Handler) retrieve(c *gin.Context) (Retrieved, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return Retrieved{}, false
	}
	c.Set("analysisId", id)

	out, err := h.Retriever.Retrieve(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrCorrupt):
			respond.Error(c, http.StatusUnprocessableEntity, "record_corrupt", "stored analysis is unreadable", nil)
		case errors.Is(err, ErrIncomplete):
			respond.Error(c, http.StatusFailedDependency, "record_incomplete", util.SingleLine(err.Error(), maxReasonLen), gin.H{
				"record": out.Record,
			})
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return out, false
	}
	return out, true
}

// retrieveBlobs is retrieve for the blob routes: an incomplete record still
// serves whichever blob survived.
func (h *Handler) retrieveBlobs(c *gin.Context) (Retrieved, bool) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set("analysisId", id)
	out, err := h.Retriever.Retrieve(c.Request.Context(), id)
	if err == nil || errors.Is(err, ErrIncomplete) {
		return out, true
	}
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
	case errors.Is(err, ErrCorrupt):
		respond.Error(c, http.StatusUnprocessableEntity, "record_corrupt", "stored analysis is unreadable", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
	}
	return out, false
}

func writeAnalyzeError(c *gin.Context, err error) {
	status, body := analyzeErrorBody(err)
	respond.Error(c, status, body.Code, body.Message, body.Details)
}

func analyzeErrorBody(err error) (int, respond.ErrorBody) {
	body := respond.ErrorBody{Code: "internal_error", Message: "analysis failed"}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		body.Message = stageErr.Reason
		details := gin.H{"stage": stageErr.Stage}
		if stageErr.ID != "" {
			details["analysisId"] = stageErr.ID
		}
		body.Details = details
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidSubmission):
		status, body.Code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, ErrUploadFailed):
		status, body.Code = http.StatusBadGateway, "upload_failed"
	case errors.Is(err, ErrConversionFailed):
		status, body.Code = http.StatusUnprocessableEntity, "conversion_failed"
	case errors.Is(err, scoring.ErrNotConfigured):
		status, body.Code = http.StatusServiceUnavailable, "scorer_unavailable"
	case errors.Is(err, ErrScoringFailed):
		status, body.Code = http.StatusBadGateway, "scoring_failed"
	case errors.Is(err, ErrMalformedFeedback):
		status, body.Code = http.StatusBadGateway, "malformed_feedback"
	case errors.Is(err, ErrPersistFailed):
		status, body.Code = http.StatusInternalServerError, "persist_failed"
	case errors.Is(err, ErrCanceled):
		status, body.Code = http.StatusServiceUnavailable, "analysis_canceled"
	}
	return status, body
}

func wantsEventStream(c *gin.Context) bool {
	return strings.Contains(strings.ToLower(c.GetHeader("Accept")), "text/event-stream")
}

func isPDF(name string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return true
	}
	return http.DetectContentType(data) == "application/pdf"
}
