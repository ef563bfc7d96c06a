// Package models defines the persisted entities of the research pipeline:
// Job, Task, Chunk and AgentLog (SPEC_FULL.md §3), plus the tagged JSON
// variants each phase handler produces or consumes (SPEC_FULL.md §9).
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/deepresearch/engine/pkg/config"
)

// Job is a single research report request (aka "research report" in
// SPEC_FULL.md §3).
type Job struct {
	ID             uuid.UUID          `db:"id" json:"job_id"`
	Idea           string             `db:"idea" json:"idea"`
	Description    *string            `db:"description" json:"description,omitempty"`
	Status         config.JobStatus   `db:"status" json:"status"`
	Report         *ReportDraft       `db:"report" json:"report,omitempty"`
	FinalCritique  *FinalCritique     `db:"final_critique" json:"final_critique,omitempty"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at" json:"updated_at"`
}

// FinalCritique is the output of the final-critique phase handler
// (SPEC_FULL.md §4.8.3 final_critique).
type FinalCritique struct {
	Approved      bool     `json:"approved"`
	Critique      string   `json:"critique"`
	RequiredEdits []string `json:"required_edits,omitempty"`
}

// NewJob constructs a pending Job for a freshly submitted idea.
func NewJob(idea string) *Job {
	now := timeNow()
	return &Job{
		ID:        uuid.New(),
		Idea:      idea,
		Status:    config.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// timeNow is indirected so tests can observe deterministic timestamps if
// ever needed without reaching for a clock interface the rest of the
// teacher's codebase doesn't use either.
func timeNow() time.Time { return time.Now().UTC() }
