package analysis

import (
	"context"
	"errors"
	"io"
	"sync"

	"resumind-backend/internal/convert"
	"resumind-backend/internal/scoring"
	"resumind-backend/internal/shared/storage/kv"
	kvmemory "resumind-backend/internal/shared/storage/kv/memory"
	"resumind-backend/internal/shared/storage/object"
	objmemory "resumind-backend/internal/shared/storage/object/memory"
)

const validFeedback = `{"overallScore":82,"ATS":{"score":75,"tips":["Use standard headings"]},"toneAndStyle":{"score":70,"tips":[]}}`

// samplePDF only needs the magic header; conversion is faked.
var samplePDF = []byte("%PDF-1.4\nfake body\n%%EOF")

type fakeConverter struct {
	img   convert.Image
	err   error
	calls int
}

func (f *fakeConverter) Convert(ctx context.Context, pdf []byte) (convert.Image, error) {
	f.calls++
	if f.err != nil {
		return convert.Image{}, f.err
	}
	if f.img.Data == nil {
		return convert.Image{Data: []byte("\x89PNG fake"), ContentType: convert.ContentType, Width: 10, Height: 10}, nil
	}
	return f.img, nil
}

type fakeScorer struct {
	resp  scoring.Response
	err   error
	calls int
	paths []string
	// hook runs inside Feedback, before returning.
	hook func()
	// ctxErr is ctx.Err() as seen after hook ran.
	ctxErr error
}

func (f *fakeScorer) Feedback(ctx context.Context, documentPath, instructions string) (scoring.Response, error) {
	f.calls++
	f.paths = append(f.paths, documentPath)
	if f.hook != nil {
		f.hook()
	}
	f.ctxErr = ctx.Err()
	if f.err != nil {
		return scoring.Response{}, f.err
	}
	return f.resp, nil
}

func textScorer(s string) *fakeScorer {
	return &fakeScorer{resp: scoring.Response{Message: scoring.Message{Role: "assistant", Content: scoring.TextContent(s)}}}
}

// failingBlobs fails uploads whose name matches failOn.
type failingBlobs struct {
	*objmemory.Store
	failOn string
}

func (f *failingBlobs) Upload(ctx context.Context, name, contentType string, r io.Reader) (object.Object, error) {
	if name == f.failOn {
		return object.Object{}, errors.New("bucket unavailable")
	}
	return f.Store.Upload(ctx, name, contentType, r)
}

type failingRecords struct {
	*kvmemory.Store
}

func (f failingRecords) Set(ctx context.Context, key, value string) error {
	return errors.New("connection reset")
}

type brokenRecords struct{}

func (brokenRecords) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("dial tcp: refused")
}

func (brokenRecords) Set(ctx context.Context, key, value string) error { return nil }

var _ kv.Store = brokenRecords{}

type captureReporter struct {
	mu      sync.Mutex
	reports []OrphanReport
}

func (c *captureReporter) ReportOrphans(ctx context.Context, r OrphanReport) error {
	c.mu.Lock()
	c.reports = append(c.reports, r)
	c.mu.Unlock()
	return nil
}

type fixture struct {
	blobs     *objmemory.Store
	records   *kvmemory.Store
	converter *fakeConverter
	scorer    *fakeScorer
	orphans   *captureReporter
	orch      *Orchestrator
	retriever *Retriever
}

func newFixture(scorer *fakeScorer) *fixture {
	f := &fixture{
		blobs:     objmemory.New(),
		records:   kvmemory.New(),
		converter: &fakeConverter{},
		scorer:    scorer,
		orphans:   &captureReporter{},
	}
	f.orch = &Orchestrator{
		Blobs:     f.blobs,
		Records:   f.records,
		Scorer:    f.scorer,
		Converter: f.converter,
		Orphans:   f.orphans,
	}
	f.retriever = &Retriever{Blobs: f.blobs, Records: f.records}
	return f
}

func acmeSubmission() Submission {
	return Submission{
		CompanyName:    "Acme",
		JobTitle:       "Engineer",
		JobDescription: "Build and run Go services.",
		Document:       samplePDF,
	}
}

type statusLog struct {
	statuses []Status
}

func (l *statusLog) observe(s Status) { l.statuses = append(l.statuses, s) }

func (l *statusLog) stages() []Stage {
	out := make([]Stage, 0, len(l.statuses))
	for _, s := range l.statuses {
		out = append(out, s.Stage)
	}
	return out
}

func (l *statusLog) last() Status {
	if len(l.statuses) == 0 {
		return Status{}
	}
	return l.statuses[len(l.statuses)-1]
}
