package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
)

// maxEnvelopeSize caps how much of an upstream reply is read into memory.
const maxEnvelopeSize = 10 << 20

// Generator sends a prompt upstream and returns the raw response envelope.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) ([]byte, error)
}

// UpstreamError reports a transport-level failure talking to the generation API:
// the call could not be made, timed out, or came back with a non-2xx status.
type UpstreamError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Detail is the caller-safe description of the failure.
func (e *UpstreamError) Detail() string {
	var netErr net.Error
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("generation API returned status %d", e.StatusCode)
	case errors.Is(e.Err, context.DeadlineExceeded), errors.As(e.Err, &netErr) && netErr.Timeout():
		return "generation API timeout"
	default:
		return "generation API unavailable"
	}
}

// newUpstreamError strips the *url.Error wrapper so the request URL, which
// carries the API key, never ends up in a message.
func newUpstreamError(op string, status int, err error) *UpstreamError {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return &UpstreamError{Op: op, StatusCode: status, Err: err}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

// HTTPGenerator calls the Gemini REST endpoint directly, key in the query string.
type HTTPGenerator struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
}

func NewHTTPGenerator(cfg Config, client *http.Client) *HTTPGenerator {
	if client == nil {
		client = &http.Client{Timeout: cfg.UpstreamTimeout}
	}
	return &HTTPGenerator{
		baseURL: cfg.GeminiBaseURL,
		model:   cfg.GeminiModel,
		apiKey:  cfg.GeminiAPIKey,
		client:  client,
	}
}

func (g *HTTPGenerator) endpoint() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))
}

func (g *HTTPGenerator) GenerateContent(ctx context.Context, prompt string) ([]byte, error) {
	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, newUpstreamError("build request", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, newUpstreamError("call", 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeSize))
	if err != nil {
		return nil, newUpstreamError("read response", 0, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newUpstreamError("call", resp.StatusCode, errors.New(truncate(string(body), 512)))
	}

	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
