package scoring

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"resumind-backend/internal/shared/telemetry"
	"resumind-backend/internal/shared/util"
)

const retryBaseDelay = 300 * time.Millisecond

type retrying struct {
	base  Scorer
	delay time.Duration
}

// WithRetry wraps base so transient failures are retried once.
func WithRetry(base Scorer) Scorer {
	if base == nil {
		return nil
	}
	return retrying{base: base, delay: retryBaseDelay}
}

func (r retrying) Feedback(ctx context.Context, documentPath, instructions string) (Response, error) {
	resp, err := r.base.Feedback(ctx, documentPath, instructions)
	if err == nil || !ShouldRetry(err) {
		return resp, err
	}

	telemetry.Warn("scoring.retry", map[string]any{
		"attempt":       1,
		"document_path": documentPath,
		"error":         util.SingleLine(err.Error(), 500),
	})
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	return r.base.Feedback(ctx, documentPath, instructions)
}

// ShouldRetry reports whether err looks transient (timeouts, 5xx, dropped connections).
func ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, ErrNotConfigured) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") || strings.Contains(msg, "unavailable") {
		return true
	}
	if strings.Contains(msg, "http status 429") || strings.Contains(msg, "resource_exhausted") {
		return true
	}
	if strings.Contains(msg, "timeout") {
		return true
	}
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "unexpected eof")
}
