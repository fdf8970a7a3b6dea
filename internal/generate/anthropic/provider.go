// Package anthropic implements the generation backend over the Anthropic
// Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vipplay/articleforge/internal/config"
	"github.com/vipplay/articleforge/internal/generate/prompt"
	"github.com/vipplay/articleforge/pkg/models"
)

const (
	baseURL    = "https://api.anthropic.com/v1"
	apiVersion = "2023-06-01"
	maxTokens  = 8192
)

// Provider implements models.Generator using Anthropic.
type Provider struct {
	cfg    config.AnthropicConfig
	client *http.Client
}

func NewProvider(cfg config.AnthropicConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Minute},
	}
}

func (p *Provider) Name() string { return "anthropic" }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResponse, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: maxTokens,
		System:    prompt.System,
		Messages:  []message{{Role: "user", Content: prompt.Build(req)}},
	})
	if err != nil {
		return models.GenerationResponse{}, fmt.Errorf("encoding anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return models.GenerationResponse{}, fmt.Errorf("building anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.GenerationResponse{}, models.ErrGenerationTimeout
		}
		return models.GenerationResponse{}, fmt.Errorf("%w: %v", models.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.GenerationResponse{}, fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}
	if out.Error != nil {
		if resp.StatusCode >= 500 || out.Error.Type == "overloaded_error" {
			return models.GenerationResponse{}, fmt.Errorf("%w: %s", models.ErrBackendUnavailable, out.Error.Message)
		}
		return models.GenerationResponse{Success: false, Message: out.Error.Message}, nil
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	content := strings.TrimSpace(text.String())
	if content == "" {
		return models.GenerationResponse{Success: false, Message: "backend returned empty content"}, nil
	}

	return models.GenerationResponse{
		Success: true,
		Content: content,
		Message: "article generated",
		Metadata: map[string]any{
			"provider": "anthropic",
			"model":    p.cfg.Model,
		},
	}, nil
}

var _ models.Generator = (*Provider)(nil)
