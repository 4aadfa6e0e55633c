package workerproc

import (
	"context"
	"errors"
	"strings"
	"testing"

	"resumind-backend/internal/queue"
	kvmemory "resumind-backend/internal/shared/storage/kv/memory"
	"resumind-backend/internal/shared/storage/object"
	objmemory "resumind-backend/internal/shared/storage/object/memory"
)

func seed(t *testing.T, store *objmemory.Store, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if _, err := store.Upload(context.Background(), p, "", strings.NewReader("x")); err != nil {
			t.Fatalf("upload %s: %v", p, err)
		}
	}
}

func TestParseMessageErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want any
	}{
		{name: "empty", body: "  ", want: ErrEmptyBody{}},
		{name: "bad json", body: "{bad", want: ErrDecode{}},
		{name: "missing id", body: `{"paths":["a/b"]}`, want: ErrMissingAnalysisID{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseMessage(tt.body)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !IsUnrecoverable(err) {
				t.Fatalf("expected unrecoverable, got %T", err)
			}
		})
	}
}

func TestSweepDeletesScopedPaths(t *testing.T) {
	blobs := objmemory.New()
	seed(t, blobs, "abc/resume.pdf", "abc/preview.png", "other/resume.pdf")

	msg := queue.OrphanMessage{AnalysisID: "abc", Paths: []string{"abc/resume.pdf", "abc/preview.png", "other/resume.pdf"}}
	res, err := Sweeper{Blobs: blobs}.Sweep(context.Background(), msg)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(res.Deleted) != 2 || len(res.Skipped) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := blobs.Read(context.Background(), "abc/resume.pdf"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected blob removed")
	}
	if _, err := blobs.Read(context.Background(), "other/resume.pdf"); err != nil {
		t.Fatalf("unscoped blob must survive: %v", err)
	}
}

func TestSweepSkipsPersistedRecord(t *testing.T) {
	blobs := objmemory.New()
	seed(t, blobs, "abc/resume.pdf")
	records := kvmemory.New()
	_ = records.Set(context.Background(), "resume:abc", "{}")

	s := Sweeper{Blobs: blobs, Records: records, Key: func(id string) string { return "resume:" + id }}
	_, res, err := HandleMessage(context.Background(), s, `{"analysisId":"abc","paths":["abc/resume.pdf"]}`)
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(res.Deleted) != 0 {
		t.Fatalf("expected nothing deleted, got %v", res.Deleted)
	}
	if _, err := blobs.Read(context.Background(), "abc/resume.pdf"); err != nil {
		t.Fatalf("blob of persisted record must survive: %v", err)
	}
}

func TestSweepWithoutStore(t *testing.T) {
	_, err := Sweeper{}.Sweep(context.Background(), queue.OrphanMessage{AnalysisID: "x"})
	var sweepErr ErrSweep
	if !errors.As(err, &sweepErr) {
		t.Fatalf("expected ErrSweep, got %v", err)
	}
	if IsUnrecoverable(err) {
		t.Fatalf("sweep errors should be retried")
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		res  SweepResult
		err  error
		want string
	}{
		{name: "deleted", res: SweepResult{Deleted: []string{"a/resume.pdf"}}, want: "deleted"},
		{name: "skipped", res: SweepResult{Skipped: []string{"b/resume.pdf"}}, want: "skipped"},
		{name: "failed", err: ErrSweep{AnalysisID: "a", Err: errors.New("boom")}, want: "failed"},
		{name: "unrecoverable", err: ErrDecode{Err: errors.New("bad json")}, want: "unrecoverable"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Outcome(tt.res, tt.err); got != tt.want {
				t.Fatalf("Outcome = %q, want %q", got, tt.want)
			}
		})
	}
}
