package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient summarizes through the Gemini API.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiClient creates a client. model "" means DefaultGeminiModel and
// baseURL "" means the public API endpoint.
func NewGeminiClient(apiKey, model, baseURL string, timeout time.Duration) (*GeminiClient, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model, timeout: timeout}, nil
}

// Summarize makes one GenerateContent call and joins the text parts of the
// first candidate.
func (g *GeminiClient) Summarize(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(Prompt(text)), nil)
	if err != nil {
		code := 0
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			code = apiErr.Code
		}
		return failure(code, fmt.Errorf("generate content: %w", err))
	}

	if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
		var out strings.Builder
		for _, part := range result.Candidates[0].Content.Parts {
			if part != nil && part.Text != "" {
				out.WriteString(part.Text)
			}
		}
		if out.Len() > 0 {
			return out.String(), nil
		}
	}

	return failure(0, errors.New("empty response from gemini"))
}
