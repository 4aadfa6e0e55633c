package analysis

import (
	"errors"
	"fmt"
	"strings"

	"resumind-backend/internal/shared/util"
)

var (
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrUploadFailed      = errors.New("upload failed")
	ErrConversionFailed  = errors.New("conversion failed")
	ErrScoringFailed     = errors.New("scoring failed")
	ErrMalformedFeedback = errors.New("malformed feedback")
	ErrPersistFailed     = errors.New("persist failed")
	ErrCanceled          = errors.New("analysis canceled")

	ErrNotFound   = errors.New("record not found")
	ErrCorrupt    = errors.New("record corrupt")
	ErrIncomplete = errors.New("record incomplete")
)

const maxReasonLen = 500

// StageError is returned by Analyze when the pipeline reaches FAILED.
// errors.Is matches both Kind and the underlying cause.
type StageError struct {
	ID     string
	Stage  Stage
	Kind   error
	Reason string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("analysis %s failed at %s: %s", e.ID, e.Stage, e.Reason)
}

func (e *StageError) Unwrap() []error {
	out := []error{e.Kind}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// StatusText is the FAILED status line for this error.
func (e *StageError) StatusText() string {
	return "Error: " + e.Reason
}

// sanitizeReason renders a cause as one bounded line with any goroutine dump removed.
func sanitizeReason(prefix string, err error) string {
	msg := prefix
	if err != nil {
		cause := err.Error()
		if i := strings.Index(cause, "goroutine "); i >= 0 {
			cause = cause[:i]
		}
		if cause = strings.TrimSpace(cause); cause != "" {
			msg = prefix + ": " + cause
		}
	}
	return util.SingleLine(msg, maxReasonLen)
}
