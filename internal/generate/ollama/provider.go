// Package ollama implements the generation backend over a local Ollama server.
package ollama

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

// Provider implements models.Generator using Ollama's /api/generate endpoint.
type Provider struct {
	cfg    config.OllamaConfig
	client *http.Client
}

func NewProvider(cfg config.OllamaConfig) *Provider {
	return &Provider{
		cfg: cfg,
		// Per-call deadlines come from the caller's context; the client
		// timeout is a backstop only.
		client: &http.Client{Timeout: 30 * time.Minute},
	}
}

func (p *Provider) Name() string { return "ollama" }

type generateRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

func (p *Provider) Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResponse, error) {
	body, err := json.Marshal(generateRequest{
		Model:  p.cfg.Model,
		System: prompt.System,
		Prompt: prompt.Build(req),
		Stream: false,
	})
	if err != nil {
		return models.GenerationResponse{}, fmt.Errorf("encoding ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return models.GenerationResponse{}, fmt.Errorf("building ollama request: %w", err)
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

	if resp.StatusCode != http.StatusOK {
		return models.GenerationResponse{}, fmt.Errorf("%w: ollama returned status %d", models.ErrInvalidResponse, resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.GenerationResponse{}, fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}
	if out.Error != "" {
		// The backend answered cleanly but declined to generate.
		return models.GenerationResponse{Success: false, Message: out.Error}, nil
	}

	content := strings.TrimSpace(out.Response)
	if content == "" {
		return models.GenerationResponse{Success: false, Message: "backend returned empty content"}, nil
	}

	return models.GenerationResponse{
		Success: true,
		Content: content,
		Message: "article generated",
		Metadata: map[string]any{
			"provider": "ollama",
			"model":    p.cfg.Model,
		},
	}, nil
}

var _ models.Generator = (*Provider)(nil)
