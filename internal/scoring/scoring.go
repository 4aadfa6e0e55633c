// Package scoring defines the external résumé scorer capability and the
// response shape the analysis pipeline parses.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotConfigured is returned by scorers that have no provider behind them.
var ErrNotConfigured = errors.New("scorer is not configured")

// Scorer asks an AI model for feedback on the document stored at documentPath.
type Scorer interface {
	Feedback(ctx context.Context, documentPath, instructions string) (Response, error)
}

// Response is the scorer reply.
type Response struct {
	Message Message `json:"message"`
}

// Message carries the model output.
type Message struct {
	Role    string  `json:"role,omitempty"`
	Content Content `json:"content"`
}

// Part is one element of list-shaped content.
type Part struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

// Content is either a plain string or a list of parts.
type Content struct {
	Text  string
	Parts []Part
}

// TextContent builds string-shaped content.
func TextContent(s string) Content { return Content{Text: s} }

// PartsContent builds list-shaped content.
func PartsContent(parts ...Part) Content { return Content{Parts: parts} }

// IsList reports whether the content arrived as a list of parts.
func (c Content) IsList() bool { return c.Parts != nil }

// FirstText returns the string content, or the first part's text for list content.
func (c Content) FirstText() (string, bool) {
	if !c.IsList() {
		return c.Text, true
	}
	if len(c.Parts) == 0 {
		return "", false
	}
	return c.Parts[0].Text, true
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsList() {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = Content{}
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*c = Content{Text: s}
		return nil
	case '[':
		parts := []Part{}
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return err
		}
		*c = Content{Parts: parts}
		return nil
	default:
		return fmt.Errorf("content must be a string or a list of parts")
	}
}

// Unconfigured is a Scorer that always fails with ErrNotConfigured.
type Unconfigured struct{}

func (Unconfigured) Feedback(context.Context, string, string) (Response, error) {
	return Response{}, ErrNotConfigured
}
