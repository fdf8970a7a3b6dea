package generate

import (
	"fmt"

	"github.com/vipplay/articleforge/internal/config"
	"github.com/vipplay/articleforge/internal/generate/anthropic"
	"github.com/vipplay/articleforge/internal/generate/mock"
	"github.com/vipplay/articleforge/internal/generate/ollama"
	"github.com/vipplay/articleforge/internal/generate/openai"
	"github.com/vipplay/articleforge/internal/generate/vllm"
	"github.com/vipplay/articleforge/pkg/models"
)

// NewGenerator constructs the configured generation backend.
// Called once at server startup.
func NewGenerator(cfg config.GenerationConfig) (models.Generator, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "vllm":
		return vllm.NewProvider(cfg.VLLM), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	case "mock":
		return mock.NewGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q: must be one of ollama, vllm, openai, anthropic, mock", cfg.Provider)
	}
}
