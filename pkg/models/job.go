package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)

const (
	JobKindSingle = "single"
	JobKindBulk   = "bulk"
)

// IsTerminalStatus reports whether a job in this status is finished.
// Terminal jobs are immutable except for late-arriving result artifacts.
func IsTerminalStatus(status string) bool {
	switch status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// GenerationJob tracks one submitted unit of generation work: a single article
// or one bulk batch. The API returns a job id on POST /api/v1/generate; the
// client polls GET /api/v1/jobs/{job_id} until the status is terminal.
type GenerationJob struct {
	ID            uuid.UUID         `db:"id"             json:"id"`
	OwnerID       uuid.UUID         `db:"owner_id"       json:"owner_id"`
	Kind          string            `db:"kind"           json:"kind"`
	Status        string            `db:"status"         json:"status"`
	Request       GenerationRequest `db:"request"        json:"request"`
	Progress      int               `db:"progress"       json:"progress"`
	QueuePosition int               `db:"queue_position" json:"queue_position"`
	ErrorMessage  *string           `db:"error_message"  json:"error_message,omitempty"`
	StartedAt     *time.Time        `db:"started_at"     json:"started_at,omitempty"`
	CompletedAt   *time.Time        `db:"completed_at"   json:"completed_at,omitempty"`
	CreatedAt     time.Time         `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at"     json:"updated_at"`
}

// UnitCount returns how many generation units this job expands to.
func (j *GenerationJob) UnitCount() int {
	if j.Kind == JobKindBulk {
		return len(j.Request.Topics)
	}
	return 1
}
