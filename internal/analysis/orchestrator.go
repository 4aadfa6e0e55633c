package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"resumind-backend/internal/convert"
	"resumind-backend/internal/scoring"
	"resumind-backend/internal/shared/metrics"
	"resumind-backend/internal/shared/storage/kv"
	"resumind-backend/internal/shared/storage/object"
	"resumind-backend/internal/shared/telemetry"
)

// Converter renders page one of a PDF.
type Converter interface {
	Convert(ctx context.Context, pdf []byte) (convert.Image, error)
}

// Orchestrator runs the analysis pipeline. It holds no per-run state, so one
// value serves concurrent submissions.
type Orchestrator struct {
	Blobs     object.Store
	Records   kv.Store
	Scorer    scoring.Scorer
	Converter Converter

	// Orphans, when set, receives the paths uploaded by a run that failed.
	Orphans OrphanReporter
	// NewID defaults to a random UUID.
	NewID func() string
	Now   func() time.Time
}

// run tracks one invocation.
type run struct {
	o        *Orchestrator
	ctx      context.Context
	io       context.Context
	observer Observer
	id       string
	started  time.Time
	last     time.Time
	uploaded []string
}

// Analyze drives a submission from IDLE to DONE or FAILED. Gateway calls use
// a context detached from ctx cancellation; a canceled ctx stops the run at
// the next stage boundary with nothing further persisted.
func (o *Orchestrator) Analyze(ctx context.Context, sub Submission, observer Observer) (Record, error) {
	now := o.now()
	r := &run{
		o:        o,
		ctx:      ctx,
		io:       context.WithoutCancel(ctx),
		observer: observer,
		started:  now,
		last:     now,
	}

	if len(sub.Document) == 0 {
		return Record{}, r.fail(StageIdle, ErrInvalidSubmission, "No file provided", nil)
	}
	metrics.IncAnalysisStarted()

	r.id = o.newID()
	r.enter(StageUploadingDocument)
	doc, err := o.Blobs.Upload(r.io, DocumentBlobName(r.id), "application/pdf", bytes.NewReader(sub.Document))
	if err != nil {
		return Record{}, r.fail(StageUploadingDocument, ErrUploadFailed, "Failed to upload file", err)
	}
	r.uploaded = append(r.uploaded, doc.Path)

	if err := r.boundary(StageConverting); err != nil {
		return Record{}, err
	}
	img, err := o.Converter.Convert(r.io, sub.Document)
	if err != nil {
		var convErr *convert.ConversionError
		if errors.As(err, &convErr) && convErr.Reason != "" {
			reason := sanitizeReason("Failed to convert PDF to image: "+convErr.Reason, nil)
			return Record{}, r.failReason(StageConverting, ErrConversionFailed, reason, err)
		}
		return Record{}, r.fail(StageConverting, ErrConversionFailed, "Failed to convert PDF to image", err)
	}

	if err := r.boundary(StageUploadingImage); err != nil {
		return Record{}, err
	}
	preview, err := o.Blobs.Upload(r.io, PreviewBlobName(r.id), img.ContentType, bytes.NewReader(img.Data))
	if err != nil {
		return Record{}, r.fail(StageUploadingImage, ErrUploadFailed, "Failed to upload image", err)
	}
	r.uploaded = append(r.uploaded, preview.Path)

	if err := r.boundary(StageScoring); err != nil {
		return Record{}, err
	}
	resp, err := o.Scorer.Feedback(r.io, doc.Path, scoring.PrepareInstructions(sub.JobTitle, sub.JobDescription))
	if err != nil {
		return Record{}, r.fail(StageScoring, ErrScoringFailed, "Failed to analyze resume", err)
	}

	if err := r.boundary(StageParsing); err != nil {
		return Record{}, err
	}
	text, ok := resp.Message.Content.FirstText()
	if !ok {
		return Record{}, r.fail(StageParsing, ErrMalformedFeedback, "Scorer returned no content", nil)
	}
	feedback, err := ParseFeedback(text)
	if err != nil {
		return Record{}, r.fail(StageParsing, ErrMalformedFeedback, "Failed to parse feedback", err)
	}

	if err := r.boundary(StagePersisting); err != nil {
		return Record{}, err
	}
	rec := Record{
		ID:               r.id,
		DocumentPath:     doc.Path,
		PreviewImagePath: preview.Path,
		CompanyName:      sub.CompanyName,
		JobTitle:         sub.JobTitle,
		JobDescription:   sub.JobDescription,
		Feedback:         &feedback,
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return Record{}, r.fail(StagePersisting, ErrPersistFailed, "Failed to encode record", err)
	}
	if err := o.Records.Set(r.io, CanonicalKey(r.id), string(payload)); err != nil {
		return Record{}, r.fail(StagePersisting, ErrPersistFailed, "Failed to save analysis", err)
	}

	r.enter(StageDone)
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(float64(o.now().Sub(r.started)) / float64(time.Millisecond))
	return rec, nil
}

func (o *Orchestrator) newID() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return uuid.NewString()
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// boundary checks for cancellation before entering next.
func (r *run) boundary(next Stage) error {
	if err := r.ctx.Err(); err != nil {
		return r.fail(next, ErrCanceled, "Analysis canceled", err)
	}
	r.enter(next)
	return nil
}

func (r *run) enter(stage Stage) {
	r.emit(stage, stage.Text(), nil)
}

func (r *run) emit(stage Stage, text string, extra map[string]any) {
	now := r.o.now()
	fields := map[string]any{
		"analysis_id":       r.id,
		"stage":             string(stage),
		"status_transition": text,
		"duration_ms":       now.Sub(r.last).Milliseconds(),
	}
	if reqID := requestIDFromContext(r.ctx); reqID != "" {
		fields["request_id"] = reqID
	}
	for k, v := range extra {
		fields[k] = v
	}
	if stage == StageFailed {
		telemetry.Error("analysis.status", fields)
	} else {
		telemetry.Info("analysis.status", fields)
	}
	r.last = now
	r.observer.notify(Status{AnalysisID: r.id, Stage: stage, Text: text, At: now})
}

func (r *run) fail(stage Stage, kind error, prefix string, cause error) error {
	return r.failReason(stage, kind, sanitizeReason(prefix, cause), cause)
}

func (r *run) failReason(stage Stage, kind error, reason string, cause error) error {
	stageErr := &StageError{ID: r.id, Stage: stage, Kind: kind, Reason: reason, Err: cause}
	r.emit(StageFailed, stageErr.StatusText(), map[string]any{"failed_stage": string(stage), "reason": reason})
	if stage != StageIdle {
		metrics.IncAnalysisFailed(string(stage))
	}
	r.reportOrphans(stage, reason)
	return stageErr
}

func (r *run) reportOrphans(stage Stage, reason string) {
	if r.o.Orphans == nil || len(r.uploaded) == 0 {
		return
	}
	report := OrphanReport{
		AnalysisID: r.id,
		RequestID:  requestIDFromContext(r.ctx),
		Stage:      stage,
		Reason:     reason,
		Paths:      append([]string(nil), r.uploaded...),
	}
	if err := r.o.Orphans.ReportOrphans(r.io, report); err != nil {
		telemetry.Error("analysis.orphans_report_failed", map[string]any{
			"analysis_id": r.id,
			"paths":       report.Paths,
			"error":       err.Error(),
		})
		return
	}
	telemetry.Info("analysis.orphans_reported", map[string]any{"analysis_id": r.id, "paths": report.Paths})
}
