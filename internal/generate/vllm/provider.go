// Package vllm implements the generation backend over a vLLM server's
// OpenAI-compatible chat completions endpoint.
package vllm

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

// Provider implements models.Generator using vLLM.
type Provider struct {
	cfg    config.VLLMConfig
	client *http.Client
}

func NewProvider(cfg config.VLLMConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Minute},
	}
}

func (p *Provider) Name() string { return "vllm" }

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
		return models.GenerationResponse{}, fmt.Errorf("encoding vllm request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return models.GenerationResponse{}, fmt.Errorf("building vllm request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.GenerationResponse{}, models.ErrGenerationTimeout
		}
		return models.GenerationResponse{}, fmt.Errorf("%w: %v", models.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return models.GenerationResponse{}, fmt.Errorf("%w: vllm returned status %d", models.ErrBackendUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return models.GenerationResponse{Success: false, Message: fmt.Sprintf("vllm rejected request with status %d", resp.StatusCode)}, nil
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.GenerationResponse{}, fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
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
			"provider": "vllm",
			"model":    p.cfg.Model,
		},
	}, nil
}

var _ models.Generator = (*Provider)(nil)
