package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/deepresearch/engine/pkg/config"
)

// Task is a single research subquestion within a Job (SPEC_FULL.md §3).
type Task struct {
	ID              uuid.UUID             `db:"id" json:"id"`
	JobID           uuid.UUID             `db:"job_id" json:"job_id"`
	Title           string                `db:"title" json:"title"`
	Status          config.TaskStatus     `db:"status" json:"status"`
	Result          *string               `db:"result" json:"result,omitempty"`
	Feedback        *string               `db:"feedback" json:"feedback,omitempty"`
	Hypotheses      *HypothesisSet        `db:"hypotheses" json:"hypotheses,omitempty"`
	EvidenceRating  *EvidenceRating       `db:"evidence_rating" json:"evidence_rating,omitempty"`
	Contradictions  *ContradictionReport  `db:"contradictions" json:"contradictions,omitempty"`
	RejectionCount  int                   `db:"rejection_count" json:"rejection_count"`
	CreatedAt       time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time             `db:"updated_at" json:"updated_at"`
}

// NewTask constructs a pending Task for one planner-emitted subquestion.
func NewTask(jobID uuid.UUID, title string) *Task {
	now := timeNow()
	return &Task{
		ID:        uuid.New(),
		JobID:     jobID,
		Title:     title,
		Status:    config.TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HypothesisSet is the parsed output of the hypothesis agent. A parse
// failure is represented by Raw being non-empty and Items being nil — the
// soft-signal handler contract (SPEC_FULL.md §4.8.1) advances the task
// regardless.
type HypothesisSet struct {
	Items []string `json:"items,omitempty"`
	Raw   string   `json:"raw,omitempty"`
}

// EvidenceRating is the parsed output of the evidence-scoring agent.
type EvidenceRating struct {
	Score     float64 `json:"score,omitempty"`
	Rationale string  `json:"rationale,omitempty"`
	Raw       string  `json:"raw,omitempty"`
}

// ContradictionReport is the parsed output of the contradiction-finding agent.
type ContradictionReport struct {
	Contradictions []string `json:"contradictions,omitempty"`
	Raw            string   `json:"raw,omitempty"`
}

// CriticVerdict is the parsed output of the review (critic) agent.
type CriticVerdict struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback,omitempty"`
}

// PlanTaskList is the parsed output of the planner agent: a flat list of
// subquestion titles, one Task per entry.
type PlanTaskList struct {
	Titles []string `json:"titles"`
}
