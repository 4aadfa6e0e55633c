// Package openai scores résumés with OpenAI chat completions over extracted PDF text.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"resumind-backend/internal/extract"
	"resumind-backend/internal/scoring"
	"resumind-backend/internal/shared/storage/object"
	"resumind-backend/internal/shared/telemetry"
)

const defaultModel = "gpt-4o-mini"

var apiURL = "https://api.openai.com/v1/chat/completions"

// Client implements scoring.Scorer.
type Client struct {
	apiKey     string
	model      string
	blobs      object.Store
	httpClient *http.Client
	text       func(context.Context, object.Store, string) (string, error)
}

// NewClient constructs a scorer reading documents from blobs.
func NewClient(apiKey, model string, blobs object.Store) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		blobs:      blobs,
		httpClient: &http.Client{Timeout: timeout},
		text:       extract.Text,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    *float32       `json:"temperature,omitempty"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Feedback extracts the document text and asks the model for JSON feedback.
func (c *Client) Feedback(ctx context.Context, documentPath, instructions string) (scoring.Response, error) {
	text, err := c.text(ctx, c.blobs, documentPath)
	if err != nil {
		return scoring.Response{}, err
	}

	temp := float32(0)
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: instructions},
			{Role: "user", Content: "Resume text:\n" + text},
		},
		Temperature:    &temp,
		ResponseFormat: responseFormat{Type: "json_object"},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return scoring.Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return scoring.Response{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return scoring.Response{}, fmt.Errorf("openai request timeout: %w", err)
		}
		return scoring.Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return scoring.Response{}, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode >= 300 {
			return scoring.Response{}, fmt.Errorf("openai http status %d", resp.StatusCode)
		}
		return scoring.Response{}, fmt.Errorf("openai response parse: %w", err)
	}
	if parsed.Error != nil {
		return scoring.Response{}, fmt.Errorf("openai http status %d: %s (%s)", resp.StatusCode, parsed.Error.Message, parsed.Error.Type)
	}
	if resp.StatusCode >= 300 {
		return scoring.Response{}, fmt.Errorf("openai http status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return scoring.Response{}, fmt.Errorf("openai response missing choices")
	}

	if parsed.Usage != nil {
		telemetry.Info("scoring.usage", map[string]any{
			"provider":          "openai",
			"model":             c.model,
			"prompt_tokens":     parsed.Usage.PromptTokens,
			"completion_tokens": parsed.Usage.CompletionTokens,
			"total_tokens":      parsed.Usage.TotalTokens,
		})
	}

	msg := parsed.Choices[0].Message
	return scoring.Response{Message: scoring.Message{
		Role:    msg.Role,
		Content: scoring.TextContent(msg.Content),
	}}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

var _ scoring.Scorer = (*Client)(nil)
