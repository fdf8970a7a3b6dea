// Package openai implements the generation backend over the OpenAI chat
// completions API.
package openai

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

const baseURL = "https://api.openai.com/v1"

// Provider implements models.Generator using OpenAI.
type Provider struct {
	cfg    config.OpenAIConfig
	client *http.Client
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Minute},
	}
}

func (p *Provider) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *Provider) Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResponse, error) {
	body, err := json.Marshal(chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.Build(req)},
		},
	})
	if err != nil {
		return models.GenerationResponse{}, fmt.Errorf("encoding openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return models.GenerationResponse{}, fmt.Errorf("building openai request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.GenerationResponse{}, models.ErrGenerationTimeout
		}
		return models.GenerationResponse{}, fmt.Errorf("%w: %v", models.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.GenerationResponse{}, fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}
	if out.Error != nil {
		if resp.StatusCode >= 500 {
			return models.GenerationResponse{}, fmt.Errorf("%w: %s", models.ErrBackendUnavailable, out.Error.Message)
		}
		return models.GenerationResponse{Success: false, Message: out.Error.Message}, nil
	}
	if len(out.Choices) == 0 {
		return models.GenerationResponse{}, fmt.Errorf("%w: no choices in response", models.ErrInvalidResponse)
	}

	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return models.GenerationResponse{Success: false, Message: "backend returned empty content"}, nil
	}

	return models.GenerationResponse{
		Success: true,
		Content: content,
		Message: "article generated",
		Metadata: map[string]any{
			"provider": "openai",
			"model":    p.cfg.Model,
		},
	}, nil
}

var _ models.Generator = (*Provider)(nil)
