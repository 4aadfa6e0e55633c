// Package workerproc parses orphan reports and deletes the blobs they name.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"resumind-backend/internal/queue"
	"resumind-backend/internal/shared/storage/kv"
	"resumind-backend/internal/shared/storage/object"
	"resumind-backend/internal/shared/telemetry"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingAnalysisID indicates a message missing the analysis id.
type ErrMissingAnalysisID struct {
	Meta MessageMeta
}

func (e ErrMissingAnalysisID) Error() string { return "missing analysis id" }

// ErrSweep indicates deletion failed after successful parsing. The message
// should stay on the queue for redelivery.
type ErrSweep struct {
	AnalysisID string
	Err        error
}

func (e ErrSweep) Error() string {
	if e.Err == nil {
		return "sweep orphans"
	}
	return "sweep orphans: " + e.Err.Error()
}

func (e ErrSweep) Unwrap() error { return e.Err }

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.OrphanMessage, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.OrphanMessage{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.OrphanMessage{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.AnalysisID) == "" {
		return msg, meta, ErrMissingAnalysisID{Meta: meta}
	}
	return msg, meta, nil
}

// IsUnrecoverable reports whether a parse error means the message can never succeed.
func IsUnrecoverable(err error) bool {
	switch err.(type) {
	case ErrEmptyBody, ErrDecode, ErrMissingAnalysisID:
		return true
	}
	return false
}

// Sweeper deletes blobs reported as orphaned.
type Sweeper struct {
	Blobs object.Store
	// Records, when set, is consulted so blobs of a persisted record are never removed.
	Records kv.Store
	// Key maps an analysis ID to its canonical record key.
	Key func(id string) string
}

// SweepResult summarizes one message.
type SweepResult struct {
	Deleted []string
	Skipped []string
}

// Sweep deletes every reported path scoped under the analysis ID.
func (s Sweeper) Sweep(ctx context.Context, msg queue.OrphanMessage) (SweepResult, error) {
	var res SweepResult
	if s.Blobs == nil {
		return res, ErrSweep{AnalysisID: msg.AnalysisID, Err: errors.New("object store not configured")}
	}

	if s.Records != nil && s.Key != nil {
		_, err := s.Records.Get(ctx, s.Key(msg.AnalysisID))
		switch {
		case err == nil:
			telemetry.Warn("worker.sweep.record_exists", map[string]any{"analysis_id": msg.AnalysisID})
			res.Skipped = append(res.Skipped, msg.Paths...)
			return res, nil
		case !errors.Is(err, kv.ErrNotFound):
			return res, ErrSweep{AnalysisID: msg.AnalysisID, Err: fmt.Errorf("check record: %w", err)}
		}
	}

	prefix := msg.AnalysisID + "/"
	for _, p := range msg.Paths {
		if !strings.HasPrefix(p, prefix) {
			res.Skipped = append(res.Skipped, p)
			continue
		}
		if err := s.Blobs.Delete(ctx, p); err != nil {
			return res, ErrSweep{AnalysisID: msg.AnalysisID, Err: fmt.Errorf("delete %s: %w", p, err)}
		}
		res.Deleted = append(res.Deleted, p)
	}
	return res, nil
}

// HandleMessage parses body and sweeps the blobs it names.
func HandleMessage(ctx context.Context, s Sweeper, body string) (queue.OrphanMessage, SweepResult, error) {
	msg, _, err := ParseMessage(body)
	if err != nil {
		return msg, SweepResult{}, err
	}
	res, err := s.Sweep(ctx, msg)
	return msg, res, err
}

// Outcome names the result of handling one message for metrics.
func Outcome(res SweepResult, err error) string {
	switch {
	case err != nil && IsUnrecoverable(err):
		return "unrecoverable"
	case err != nil:
		return "failed"
	case len(res.Deleted) > 0:
		return "deleted"
	default:
		return "skipped"
	}
}
