package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"google.golang.org/genai"
)

// SDKGenerator goes through the official genai client. The typed response is
// re-encoded so it passes through the same envelope validation as HTTPGenerator.
type SDKGenerator struct {
	client *genai.Client
	model  string
}

func NewSDKGenerator(ctx context.Context, cfg Config, httpClient *http.Client) (*SDKGenerator, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.UpstreamTimeout}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.GeminiAPIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.GeminiBaseURL + "/"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &SDKGenerator{client: client, model: cfg.GeminiModel}, nil
}

func (g *SDKGenerator) GenerateContent(ctx context.Context, prompt string) ([]byte, error) {
	res, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, newUpstreamError("call", apiErr.Code, errors.New(apiErr.Message))
		}
		return nil, newUpstreamError("call", 0, err)
	}

	body, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode genai response: %w", err)
	}
	return body, nil
}
