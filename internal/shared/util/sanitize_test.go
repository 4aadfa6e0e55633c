package util

import (
	"strings"
	"testing"
)

func TestCleanObjectKey(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "simple", in: "abc/resume.pdf", want: "abc/resume.pdf"},
		{name: "double slash", in: "abc//preview.png", want: "abc/preview.png"},
		{name: "backslash", in: `abc/a\b.pdf`, want: "abc/a_b.pdf"},
		{name: "traversal", in: "../etc/passwd", wantErr: true},
		{name: "absolute", in: "/abc/resume.pdf", wantErr: true},
		{name: "empty", in: "  ", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanObjectKey(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestSingleLine(t *testing.T) {
	got := SingleLine("line one\n\tline two  ", 0)
	if got != "line one line two" {
		t.Fatalf("unexpected collapse: %q", got)
	}

	long := strings.Repeat("é", 10)
	got = SingleLine(long, 5)
	if len(got) > 5 || !strings.HasPrefix(long, got) {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
}
