// Package models contains shared data models used across the articleforge codebase.
package models

import (
	"context"
	"errors"
)

// Sentinel errors returned by Generator implementations. A transport-level
// error never proves the backend did no work; callers that see one must
// reconcile against persisted output before declaring the job failed.
var (
	ErrBackendUnavailable = errors.New("generation backend unavailable")
	ErrGenerationTimeout  = errors.New("generation timed out")
	ErrInvalidResponse    = errors.New("generation backend returned invalid response")
)

// Generator is the core interface all generation backends must implement.
// Never call a specific backend directly — always inject this interface.
// The backend is stateless: it performs no durable bookkeeping of its own,
// so all job-lifecycle truth lives in the job store.
type Generator interface {
	// Generate produces one article for the given request. Implementations
	// must honor ctx cancellation; the caller bounds every call with a
	// deadline proportional to the requested work.
	Generate(ctx context.Context, req GenerationRequest) (GenerationResponse, error)
	// Name returns the backend identifier (e.g., "ollama", "openai").
	Name() string
}

// GenerationResponse is the backend's answer to one generation call.
// Success=false with a nil transport error is a well-formed backend-reported
// failure, distinct from a transport-level error returned alongside it.
type GenerationResponse struct {
	Success  bool           `json:"success"`
	Content  string         `json:"content,omitempty"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
