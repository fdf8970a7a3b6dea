package models

import (
	"time"

	"github.com/google/uuid"
)

// UnitOutcome records the individual result of one generation unit inside a
// bulk job. Failures stay here; they are never elevated to the aggregate
// error field unless every unit failed.
type UnitOutcome struct {
	Topic     string `json:"topic"`
	Success   bool   `json:"success"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
	WordCount int    `json:"word_count"`
}

// JobResult is the persisted output artifact for a completed job, keyed by
// job id. Its existence is the reconciliation evidence consulted when a
// backend call fails at the transport level: output found means the work
// actually finished.
type JobResult struct {
	JobID          uuid.UUID      `db:"job_id"          json:"job_id"`
	Content        string         `db:"content"         json:"content,omitempty"`
	Units          []UnitOutcome  `db:"units"           json:"units,omitempty"`
	CompletedCount int            `db:"completed_count" json:"completed_count"`
	FailedCount    int            `db:"failed_count"    json:"failed_count"`
	Total          int            `db:"total"           json:"total"`
	Provider       string         `db:"provider"        json:"provider"`
	Metadata       map[string]any `db:"metadata"        json:"metadata,omitempty"`
	CreatedAt      time.Time      `db:"created_at"      json:"created_at"`
}
