// Package llm produces daily summaries from concatenated transcripts.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SentinelPrefix marks summary text that is really a failure description.
const SentinelPrefix = "LLM_ERROR: "

// PromptPrefix precedes the transcript text in every summary request.
const PromptPrefix = "Produce a concise summary based on the following content:\n"

// Summarizer turns a block of text into a summary.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// ProviderError reports a failed summary call. Sentinel holds the
// "LLM_ERROR: ..." text returned alongside it.
type ProviderError struct {
	StatusCode int
	Sentinel   string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return "llm: " + e.Err.Error()
	}
	return "llm: " + strings.TrimPrefix(e.Sentinel, SentinelPrefix)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsSentinel reports whether text is a failure description rather than a summary.
func IsSentinel(text string) bool {
	return strings.HasPrefix(text, SentinelPrefix)
}

// Prompt builds the request text for content.
func Prompt(content string) string {
	return PromptPrefix + content
}

// HTTPClient calls a chat-style completion endpoint that wraps its answer in
// an "output" field.
type HTTPClient struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
}

// NewHTTPClient creates a client for endpoint. model "" means "qwen".
func NewHTTPClient(endpoint, apiKey, model string, timeout time.Duration) *HTTPClient {
	if model == "" {
		model = "qwen"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		http:     &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []chatMessage `json:"messages"`
	} `json:"input"`
}

// Summarize sends one request. The serialized "output" field is returned when
// present, otherwise the whole body.
func (c *HTTPClient) Summarize(ctx context.Context, text string) (string, error) {
	var payload chatRequest
	payload.Model = c.model
	payload.Input.Messages = []chatMessage{{Role: "user", Content: Prompt(text)}}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return failure(0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return failure(0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		sentinel := fmt.Sprintf("%sHTTP %d - %s", SentinelPrefix, resp.StatusCode, string(respBody))
		return sentinel, &ProviderError{StatusCode: resp.StatusCode, Sentinel: sentinel}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(respBody, &fields); err == nil {
		if out, ok := fields["output"]; ok {
			return string(out), nil
		}
	}
	return string(respBody), nil
}

func failure(code int, err error) (string, error) {
	sentinel := SentinelPrefix + err.Error()
	return sentinel, &ProviderError{StatusCode: code, Sentinel: sentinel, Err: err}
}

// Options selects and configures a summarizer.
type Options struct {
	Provider string // "http" (default) | "gemini"
	Endpoint string // chat endpoint for http; optional base URL override for gemini
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// New builds the summarizer named by opts.Provider.
func New(opts Options) (Summarizer, error) {
	switch opts.Provider {
	case "", "http":
		if opts.Endpoint == "" {
			return nil, fmt.Errorf("llm endpoint is required")
		}
		return NewHTTPClient(opts.Endpoint, opts.APIKey, opts.Model, opts.Timeout), nil
	case "gemini":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("gemini api key is required")
		}
		g, err := NewGeminiClient(opts.APIKey, opts.Model, opts.Endpoint, opts.Timeout)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
}
