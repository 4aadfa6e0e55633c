// Package gemini scores résumés with Google Gemini, sending the PDF inline.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"resumind-backend/internal/scoring"
	"resumind-backend/internal/shared/storage/object"
)

const defaultModel = "gemini-2.5-flash"

// generator is the subset of *genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements scoring.Scorer.
type Client struct {
	models    generator
	modelName string
	blobs     object.Store
}

// NewClient creates a client configured for the Gemini API backend.
func NewClient(ctx context.Context, apiKey, model string, blobs object.Store) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if blobs == nil {
		return nil, errors.New("object store is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newWithGenerator(client.Models, model, blobs), nil
}

func newWithGenerator(models generator, model string, blobs object.Store) *Client {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	return &Client{models: models, modelName: model, blobs: blobs}
}

// Feedback sends the document bytes and instructions and returns the
// candidate text as list-shaped content.
func (c *Client) Feedback(ctx context.Context, documentPath, instructions string) (scoring.Response, error) {
	data, err := object.ReadAll(ctx, c.blobs, documentPath)
	if err != nil {
		return scoring.Response{}, fmt.Errorf("read document %s: %w", documentPath, err)
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: "application/pdf", Data: data}},
			{Text: instructions},
		},
	}}
	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}

	resp, err := c.models.GenerateContent(ctx, c.modelName, contents, cfg)
	if err != nil {
		return scoring.Response{}, fmt.Errorf("gemini generate content: %w", err)
	}

	var parts []scoring.Part
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil || part.Thought {
					continue
				}
				if text := strings.TrimSpace(part.Text); text != "" {
					parts = append(parts, scoring.Part{Type: "text", Text: text})
				}
			}
			if len(parts) > 0 {
				break
			}
		}
	}
	if len(parts) == 0 {
		return scoring.Response{}, errors.New("gemini api returned empty response")
	}
	return scoring.Response{Message: scoring.Message{
		Role:    "assistant",
		Content: scoring.PartsContent(parts...),
	}}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.modelName }

var _ scoring.Scorer = (*Client)(nil)
