// Package asr sends audio to the NLS one-sentence recognition gateway.
package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// DefaultGateway is the Shanghai-region recognition endpoint.
const DefaultGateway = "https://nls-gateway-cn-shanghai.aliyuncs.com/stream/v1/asr"

// SentinelPrefix marks transcript text that is really a failure description.
const SentinelPrefix = "ASR_ERROR: "

const statusSuccess = 20000000

// TokenSource supplies the X-NLS-Token header value.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ProviderError reports a failed or rejected recognition call. Sentinel holds
// the "ASR_ERROR: ..." text returned alongside it.
type ProviderError struct {
	StatusCode int
	Sentinel   string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return "asr: " + e.Err.Error()
	}
	return "asr: " + strings.TrimPrefix(e.Sentinel, SentinelPrefix)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Client calls the recognition gateway. A zero Client is not usable; use New.
type Client struct {
	tokens  TokenSource
	appKey  string
	gateway string
	http    *http.Client
}

// New creates a client. gateway "" means DefaultGateway.
func New(tokens TokenSource, appKey, gateway string, timeout time.Duration) *Client {
	if gateway == "" {
		gateway = DefaultGateway
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		tokens:  tokens,
		appKey:  appKey,
		gateway: gateway,
		http:    &http.Client{Timeout: timeout},
	}
}

// TranscribeBuffer recognizes raw audio bytes in the given container format.
// Provider failures return the sentinel text and a *ProviderError; credential
// failures return "" and the credential error.
func (c *Client) TranscribeBuffer(ctx context.Context, audio []byte, format string) (string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("appkey", c.appKey)
	q.Set("format", format)
	q.Set("sample_rate", "16000")
	q.Set("enable_intermediate_result", "false")
	q.Set("enable_punctuation_prediction", "true")
	q.Set("enable_inverse_text_normalization", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gateway+"?"+q.Encode(), bytes.NewReader(audio))
	if err != nil {
		return failure(0, err)
	}
	req.Header.Set("X-NLS-Token", token)
	req.Header.Set("Content-Type", "application/octet-stream")

	return c.do(req)
}

type urlRequest struct {
	AppKey string `json:"appkey"`
	URL    string `json:"url"`
	Format string `json:"format"`
}

// TranscribeURL asks the gateway to fetch and recognize audio at audioURL.
// Only short clips (about a minute) are accepted by this endpoint.
func (c *Client) TranscribeURL(ctx context.Context, audioURL string) (string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}

	body, _ := json.Marshal(urlRequest{AppKey: c.appKey, URL: audioURL, Format: "wav"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gateway, bytes.NewReader(body))
	if err != nil {
		return failure(0, err)
	}
	req.Header.Set("X-NLS-Token", token)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return failure(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		sentinel := fmt.Sprintf("%sHTTP %d - %s", SentinelPrefix, resp.StatusCode, string(body))
		return sentinel, &ProviderError{StatusCode: resp.StatusCode, Sentinel: sentinel}
	}

	return interpret(body)
}

// interpret maps a 200 response body to transcript text. Bodies that are not
// JSON objects come back verbatim.
func interpret(body []byte) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return string(body), nil
	}

	if raw, ok := fields["result"]; ok {
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			return text, nil
		}
		return string(raw), nil
	}

	if raw, ok := fields["status"]; ok {
		var status int64
		if err := json.Unmarshal(raw, &status); err == nil && status != statusSuccess {
			msg := "unknown error"
			var m string
			if err := json.Unmarshal(fields["message"], &m); err == nil && m != "" {
				msg = m
			}
			sentinel := SentinelPrefix + msg
			return sentinel, &ProviderError{StatusCode: http.StatusOK, Sentinel: sentinel}
		}
	}

	if raw, ok := fields["data"]; ok {
		return string(raw), nil
	}

	return string(body), nil
}

func failure(code int, err error) (string, error) {
	sentinel := SentinelPrefix + err.Error()
	return sentinel, &ProviderError{StatusCode: code, Sentinel: sentinel, Err: err}
}

// IsSentinel reports whether text is a failure description rather than a transcript.
func IsSentinel(text string) bool {
	return strings.HasPrefix(text, SentinelPrefix)
}

// Format derives the gateway format parameter from a file name.
func Format(fileName string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if ext == "" {
		return "wav"
	}
	return ext
}
