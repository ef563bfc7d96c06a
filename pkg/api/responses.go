package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/deepresearch/engine/pkg/config"
	"github.com/deepresearch/engine/pkg/models"
)

// JobStatusResponse is returned by POST /research and, stripped of the
// description/report fields, mirrors what GET /research/{job_id} returns
// for a job still in flight (spec.md §6).
type JobStatusResponse struct {
	JobID           uuid.UUID          `json:"job_id"`
	Status          config.JobStatus   `json:"status"`
	ProgressPercent int                `json:"progress_percent"`
	CurrentPhase    config.CurrentPhase `json:"current_phase"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       *time.Time         `json:"updated_at,omitempty"`
	Error           string             `json:"error,omitempty"`
}

// JobResultResponse is JobStatusResponse plus the enriched description and
// final report, returned by GET /research/{job_id}.
type JobResultResponse struct {
	JobStatusResponse
	Description string             `json:"description,omitempty"`
	Report      *models.ReportDraft `json:"report,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string        `json:"status"`
	Details HealthDetails `json:"details"`
}

// HealthDetails carries the build version reported by GET /health.
type HealthDetails struct {
	Version string `json:"version"`
}

// ReadyResponse is returned by GET /ready.
type ReadyResponse struct {
	Status  string       `json:"status"`
	Details ReadyDetails `json:"details"`
}

// ReadyDetails reports per-dependency health for GET /ready.
type ReadyDetails struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}
