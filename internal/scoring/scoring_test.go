package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestContentUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantText string
		wantOK   bool
		wantList bool
	}{
		{name: "string", raw: `{"message":{"content":"{\"overallScore\":80}"}}`, wantText: `{"overallScore":80}`, wantOK: true},
		{name: "parts", raw: `{"message":{"content":[{"type":"text","text":"first"},{"text":"second"}]}}`, wantText: "first", wantOK: true, wantList: true},
		{name: "empty parts", raw: `{"message":{"content":[]}}`, wantOK: false, wantList: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var resp Response
			if err := json.Unmarshal([]byte(tt.raw), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.Message.Content.IsList() != tt.wantList {
				t.Fatalf("IsList = %v, want %v", resp.Message.Content.IsList(), tt.wantList)
			}
			got, ok := resp.Message.Content.FirstText()
			if ok != tt.wantOK || got != tt.wantText {
				t.Fatalf("FirstText = %q,%v want %q,%v", got, ok, tt.wantText, tt.wantOK)
			}
		})
	}
}

func TestContentRejectsObjects(t *testing.T) {
	var c Content
	if err := json.Unmarshal([]byte(`{"text":"x"}`), &c); err == nil {
		t.Fatalf("expected error for object content")
	}
}

func TestContentMarshalKeepsShape(t *testing.T) {
	data, err := json.Marshal(PartsContent(Part{Text: "a"}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `[{"text":"a"}]` {
		t.Fatalf("unexpected list encoding %s", data)
	}
	data, _ = json.Marshal(TextContent("b"))
	if string(data) != `"b"` {
		t.Fatalf("unexpected string encoding %s", data)
	}
}

func TestPrepareInstructionsEmbedsJob(t *testing.T) {
	got := PrepareInstructions(" Engineer ", "Build APIs in Go")
	for _, want := range []string{"The job title is: Engineer", "Build APIs in Go", "overallScore", "ATS", "JSON object"} {
		if !strings.Contains(got, want) {
			t.Fatalf("instructions missing %q", want)
		}
	}
}

type flakyScorer struct {
	errs  []error
	calls int
}

func (f *flakyScorer) Feedback(ctx context.Context, path, instr string) (Response, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return Response{}, err
		}
	}
	return Response{Message: Message{Content: TextContent("ok")}}, nil
}

func TestWithRetryRetriesTransientOnce(t *testing.T) {
	base := &flakyScorer{errs: []error{fmt.Errorf("openai http status 503: overloaded")}}
	s := retrying{base: base, delay: time.Millisecond}

	resp, err := s.Feedback(context.Background(), "p", "i")
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", base.calls)
	}
	if text, _ := resp.Message.Content.FirstText(); text != "ok" {
		t.Fatalf("unexpected content %q", text)
	}
}

func TestWithRetrySkipsPermanentErrors(t *testing.T) {
	base := &flakyScorer{errs: []error{errors.New("openai http status 401: bad key")}}
	s := retrying{base: base, delay: time.Millisecond}
	if _, err := s.Feedback(context.Background(), "p", "i"); err == nil {
		t.Fatalf("expected error")
	}
	if base.calls != 1 {
		t.Fatalf("expected no retry, got %d calls", base.calls)
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrNotConfigured, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, true},
		{errors.New("read tcp: connection reset by peer"), true},
		{errors.New("gemini: RESOURCE_EXHAUSTED"), true},
		{errors.New("invalid request"), false},
	}
	for _, tt := range tests {
		if got := ShouldRetry(tt.err); got != tt.want {
			t.Fatalf("ShouldRetry(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestUnconfigured(t *testing.T) {
	if _, err := (Unconfigured{}).Feedback(context.Background(), "", ""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
