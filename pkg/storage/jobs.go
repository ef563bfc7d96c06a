package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/deepresearch/engine/pkg/config"
	"github.com/deepresearch/engine/pkg/models"
)

// ErrNotFound is returned by single-row lookups that match no row.
var ErrNotFound = errors.New("storage: not found")

type jobRow struct {
	ID            uuid.UUID       `db:"id"`
	Idea          string          `db:"idea"`
	Description   sql.NullString  `db:"description"`
	Status        string          `db:"status"`
	Report        json.RawMessage `db:"report"`
	FinalCritique json.RawMessage `db:"final_critique"`
	CreatedAt     sql.NullTime    `db:"created_at"`
	UpdatedAt     sql.NullTime    `db:"updated_at"`
}

func (r *jobRow) toModel() (*models.Job, error) {
	job := &models.Job{
		ID:        r.ID,
		Idea:      r.Idea,
		Status:    config.JobStatus(r.Status),
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
	if r.Description.Valid {
		job.Description = &r.Description.String
	}
	if len(r.Report) > 0 {
		var report models.ReportDraft
		if err := json.Unmarshal(r.Report, &report); err != nil {
			return nil, fmt.Errorf("unmarshal report: %w", err)
		}
		job.Report = &report
	}
	if len(r.FinalCritique) > 0 {
		var critique models.FinalCritique
		if err := json.Unmarshal(r.FinalCritique, &critique); err != nil {
			return nil, fmt.Errorf("unmarshal final_critique: %w", err)
		}
		job.FinalCritique = &critique
	}
	return job, nil
}

// CreateJob inserts a new job row.
func (s *Store) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, idea, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.Idea, job.Description, string(job.Status), job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob fetches a job by id.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var row jobRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, idea, description, status, report, final_critique, created_at, updated_at
		FROM jobs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select job: %w", err)
	}
	return row.toModel()
}

// UpdateJobStatus sets a job's status unconditionally (used by the enrich,
// aggregate and final-critique handlers; the supervisor uses CASJobStatus).
func (s *Store) UpdateJobStatus(ctx context.Context, id uuid.UUID, status config.JobStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = $1, updated_at = now() WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// SetJobDescription persists the enricher agent's expanded description.
func (s *Store) SetJobDescription(ctx context.Context, id uuid.UUID, description string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET description = $1, updated_at = now() WHERE id = $2`, description, id)
	if err != nil {
		return fmt.Errorf("update job description: %w", err)
	}
	return nil
}

// CASJobStatus performs a compare-and-set transition: it succeeds only if
// the job's current status matches from. Returns whether this caller won
// the race.
func (s *Store) CASJobStatus(ctx context.Context, id uuid.UUID, from, to config.JobStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
		string(to), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("cas job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// SetJobReport persists the final structured (or fallback plain-text) report.
func (s *Store) SetJobReport(ctx context.Context, id uuid.UUID, report *models.ReportDraft) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE jobs SET report = $1, updated_at = now() WHERE id = $2`, raw, id)
	if err != nil {
		return fmt.Errorf("update job report: %w", err)
	}
	return nil
}

// SetJobFinalCritique persists the final-critic verdict.
func (s *Store) SetJobFinalCritique(ctx context.Context, id uuid.UUID, critique *models.FinalCritique) error {
	raw, err := json.Marshal(critique)
	if err != nil {
		return fmt.Errorf("marshal final critique: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE jobs SET final_critique = $1, updated_at = now() WHERE id = $2`, raw, id)
	if err != nil {
		return fmt.Errorf("update job final critique: %w", err)
	}
	return nil
}
