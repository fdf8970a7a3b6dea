// Package handler contains the HTTP handlers for the articleforge API.
// Handlers depend on narrow interfaces so tests can stand in fakes without
// the full orchestration stack.
package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vipplay/articleforge/internal/store"
	"github.com/vipplay/articleforge/pkg/models"
)

// Orchestrator is the slice of the orchestration service the job handlers use.
type Orchestrator interface {
	Submit(ctx context.Context, ownerID uuid.UUID, req models.GenerationRequest) (*models.GenerationJob, error)
	SubmitBulk(ctx context.Context, ownerID uuid.UUID, req models.GenerationRequest) (*models.GenerationJob, error)
	Get(ctx context.Context, ownerID, jobID uuid.UUID) (*models.GenerationJob, *models.JobResult, error)
	Status(ctx context.Context, ownerID, jobID uuid.UUID) (string, error)
	List(ctx context.Context, filter store.JobFilter) ([]*models.GenerationJob, int, error)
	Cancel(ctx context.Context, ownerID, jobID uuid.UUID) (*models.GenerationJob, error)
}

// jobView is the wire representation of a job.
type jobView struct {
	ID            uuid.UUID  `json:"id"`
	Kind          string     `json:"kind"`
	Status        string     `json:"status"`
	Mode          string     `json:"mode"`
	Progress      int        `json:"progress"`
	QueuePosition *int       `json:"queue_position,omitempty"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// jobDetailView adds the result artifact once one exists.
type jobDetailView struct {
	jobView
	Result *resultView `json:"result,omitempty"`
}

type resultView struct {
	Content        string               `json:"content,omitempty"`
	Units          []models.UnitOutcome `json:"units,omitempty"`
	CompletedCount int                  `json:"completed_count"`
	FailedCount    int                  `json:"failed_count"`
	Total          int                  `json:"total"`
	Provider       string               `json:"provider"`
	Metadata       map[string]any       `json:"metadata,omitempty"`
}

func toJobView(job *models.GenerationJob) jobView {
	v := jobView{
		ID:           job.ID,
		Kind:         job.Kind,
		Status:       job.Status,
		Mode:         job.Request.Mode,
		Progress:     job.Progress,
		ErrorMessage: job.ErrorMessage,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		CreatedAt:    job.CreatedAt,
	}
	// The advisory position only means something while the job waits.
	if job.Status == models.JobStatusQueued {
		pos := job.QueuePosition
		v.QueuePosition = &pos
	}
	return v
}

func toJobDetailView(job *models.GenerationJob, result *models.JobResult) jobDetailView {
	v := jobDetailView{jobView: toJobView(job)}
	if result != nil {
		v.Result = &resultView{
			Content:        result.Content,
			Units:          result.Units,
			CompletedCount: result.CompletedCount,
			FailedCount:    result.FailedCount,
			Total:          result.Total,
			Provider:       result.Provider,
			Metadata:       result.Metadata,
		}
	}
	return v
}

// generationRequestBody is the shared JSON shape for submissions.
type generationRequestBody struct {
	Mode             string            `json:"mode"`
	Topic            string            `json:"topic"`
	Keywords         []string          `json:"keywords"`
	Trend            *models.TrendSpec `json:"trend"`
	SpinSource       string            `json:"spin_source"`
	SpinAngle        string            `json:"spin_angle"`
	SpinIntensity    string            `json:"spin_intensity"`
	WordCount        int               `json:"word_count"`
	Tone             string            `json:"tone"`
	KeywordDensity   string            `json:"keyword_density"`
	ContentStructure string            `json:"content_structure"`
	SEOOptimization  bool              `json:"seo_optimization"`
	UseWebSearch     bool              `json:"use_web_search"`
}

func (b generationRequestBody) toModel() models.GenerationRequest {
	return models.GenerationRequest{
		Mode:             b.Mode,
		Topic:            b.Topic,
		Keywords:         b.Keywords,
		Trend:            b.Trend,
		SpinSource:       b.SpinSource,
		SpinAngle:        b.SpinAngle,
		SpinIntensity:    b.SpinIntensity,
		WordCount:        b.WordCount,
		Tone:             b.Tone,
		KeywordDensity:   b.KeywordDensity,
		ContentStructure: b.ContentStructure,
		SEOOptimization:  b.SEOOptimization,
		UseWebSearch:     b.UseWebSearch,
	}
}
