// Package mock provides generation backends for tests and for running the
// server without a real model behind it.
package mock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vipplay/articleforge/pkg/models"
)

// Generator satisfies models.Generator for testing.
type Generator struct {
	Name_        string
	GenerateFunc func(ctx context.Context, req models.GenerationRequest) (models.GenerationResponse, error)
}

func (g *Generator) Name() string { return g.Name_ }

func (g *Generator) Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResponse, error) {
	if g.GenerateFunc != nil {
		return g.GenerateFunc(ctx, req)
	}
	return models.GenerationResponse{Success: true, Message: "ok"}, nil
}

// NewGenerator returns a Generator producing deterministic article text.
func NewGenerator() *Generator {
	return &Generator{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, req models.GenerationRequest) (models.GenerationResponse, error) {
			topic := req.Topic
			if topic == "" {
				topic = strings.Join(req.Keywords, ", ")
			}
			wordCount := req.WordCount
			if wordCount <= 0 {
				wordCount = models.DefaultWordCount
			}
			var b strings.Builder
			fmt.Fprintf(&b, "# %s\n\n", topic)
			for b.Len() < wordCount*6 {
				fmt.Fprintf(&b, "This is simulated article content about %s. ", topic)
			}
			return models.GenerationResponse{
				Success: true,
				Content: strings.TrimSpace(b.String()),
				Message: "article generated",
				Metadata: map[string]any{
					"provider": "mock",
					"model":    "mock-v1",
				},
			}, nil
		},
	}
}

// NewFailingGenerator returns a Generator that always returns the given
// transport error.
func NewFailingGenerator(err error) *Generator {
	return &Generator{
		Name_: "mock-failing",
		GenerateFunc: func(_ context.Context, _ models.GenerationRequest) (models.GenerationResponse, error) {
			return models.GenerationResponse{}, err
		},
	}
}

// NewRejectingGenerator returns a Generator that answers cleanly but reports
// the generation as failed.
func NewRejectingGenerator(message string) *Generator {
	return &Generator{
		Name_: "mock-rejecting",
		GenerateFunc: func(_ context.Context, _ models.GenerationRequest) (models.GenerationResponse, error) {
			return models.GenerationResponse{Success: false, Message: message}, nil
		},
	}
}

// NewTimeoutGenerator returns a Generator that blocks until context is cancelled.
func NewTimeoutGenerator() *Generator {
	return &Generator{
		Name_: "mock-timeout",
		GenerateFunc: func(ctx context.Context, _ models.GenerationRequest) (models.GenerationResponse, error) {
			<-ctx.Done()
			return models.GenerationResponse{}, models.ErrGenerationTimeout
		},
	}
}

// NewSlowGenerator returns a Generator that succeeds after the given delay,
// or returns the context error if cancelled first.
func NewSlowGenerator(delay time.Duration) *Generator {
	inner := NewGenerator()
	return &Generator{
		Name_: "mock-slow",
		GenerateFunc: func(ctx context.Context, req models.GenerationRequest) (models.GenerationResponse, error) {
			select {
			case <-time.After(delay):
				return inner.Generate(ctx, req)
			case <-ctx.Done():
				return models.GenerationResponse{}, ctx.Err()
			}
		},
	}
}

// Compile-time check that Generator implements models.Generator.
var _ models.Generator = (*Generator)(nil)
