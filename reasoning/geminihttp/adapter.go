// Package geminihttp adapts the Gemini generateContent REST API to the
// reasoning provider contract.
package geminihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/glassboxlabs/glasstrace/agent"
	"github.com/glassboxlabs/glasstrace/reasoning"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultTimeout = 30 * time.Second
)

type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

type Adapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ reasoning.Provider = (*Adapter)(nil)

func New(cfg Config) (*Adapter, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("new provider adapter: api key is required")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Adapter{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}, nil
}

func (a *Adapter) Generate(ctx context.Context, req reasoning.ProviderRequest) (reasoning.ProviderResponse, error) {
	if strings.TrimSpace(req.Model) == "" {
		return reasoning.ProviderResponse{}, fmt.Errorf("provider request: model is required")
	}

	encoded, err := json.Marshal(buildRequest(req))
	if err != nil {
		return reasoning.ProviderResponse{}, fmt.Errorf("provider request encode: %w", err)
	}

	endpointURL := fmt.Sprintf(
		"%s/models/%s:generateContent?key=%s",
		a.baseURL,
		url.PathEscape(req.Model),
		url.QueryEscape(a.apiKey),
	)
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(encoded))
	if err != nil {
		return reasoning.ProviderResponse{}, fmt.Errorf("provider request build: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	response, err := a.httpClient.Do(httpRequest)
	if err != nil {
		return reasoning.ProviderResponse{}, fmt.Errorf("provider request execute: %w", err)
	}
	defer response.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(response.Body, 2<<20))
	if err != nil {
		return reasoning.ProviderResponse{}, fmt.Errorf("provider response read: %w", err)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return reasoning.ProviderResponse{}, fmt.Errorf(
			"provider response status=%d body=%s",
			response.StatusCode,
			string(bodyBytes),
		)
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return reasoning.ProviderResponse{}, fmt.Errorf("provider response decode: %w", err)
	}
	text, err := parsed.text()
	if err != nil {
		return reasoning.ProviderResponse{}, fmt.Errorf("provider response decode: %w", err)
	}

	return reasoning.ProviderResponse{
		Text: text,
		Usage: agent.TokenUsage{
			InputTokens:  parsed.UsageMetadata.PromptTokenCount,
			OutputTokens: parsed.UsageMetadata.CandidatesTokenCount,
		},
	}, nil
}

type generateContentRequest struct {
	SystemInstruction *content         `json:"system_instruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (r generateContentResponse) text() (string, error) {
	if len(r.Candidates) == 0 {
		return "", fmt.Errorf("no candidates")
	}
	parts := r.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return "", fmt.Errorf("candidate has no parts")
	}
	return parts[0].Text, nil
}

func buildRequest(req reasoning.ProviderRequest) generateContentRequest {
	out := generateContentRequest{
		Contents:         make([]content, 0, len(req.Contents)),
		GenerationConfig: generationConfig{Temperature: req.Temperature},
	}
	if req.SystemPrompt != "" {
		out.SystemInstruction = &content{Parts: []part{{Text: req.SystemPrompt}}}
	}
	for _, turn := range req.Contents {
		out.Contents = append(out.Contents, content{
			Role:  turn.Role,
			Parts: []part{{Text: turn.Text}},
		})
	}
	return out
}
