package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/deepresearch/engine/pkg/config"
	"github.com/deepresearch/engine/pkg/models"
)

type taskRow struct {
	ID             uuid.UUID       `db:"id"`
	JobID          uuid.UUID       `db:"job_id"`
	Title          string          `db:"title"`
	Status         string          `db:"status"`
	Result         sql.NullString  `db:"result"`
	Feedback       sql.NullString  `db:"feedback"`
	Hypotheses     json.RawMessage `db:"hypotheses"`
	EvidenceRating json.RawMessage `db:"evidence_rating"`
	Contradictions json.RawMessage `db:"contradictions"`
	RejectionCount int             `db:"rejection_count"`
	CreatedAt      sql.NullTime    `db:"created_at"`
	UpdatedAt      sql.NullTime    `db:"updated_at"`
}

func (r *taskRow) toModel() (*models.Task, error) {
	task := &models.Task{
		ID:             r.ID,
		JobID:          r.JobID,
		Title:          r.Title,
		Status:         config.TaskStatus(r.Status),
		RejectionCount: r.RejectionCount,
		CreatedAt:      r.CreatedAt.Time,
		UpdatedAt:      r.UpdatedAt.Time,
	}
	if r.Result.Valid {
		task.Result = &r.Result.String
	}
	if r.Feedback.Valid {
		task.Feedback = &r.Feedback.String
	}
	if len(r.Hypotheses) > 0 {
		var v models.HypothesisSet
		if err := json.Unmarshal(r.Hypotheses, &v); err != nil {
			return nil, fmt.Errorf("unmarshal hypotheses: %w", err)
		}
		task.Hypotheses = &v
	}
	if len(r.EvidenceRating) > 0 {
		var v models.EvidenceRating
		if err := json.Unmarshal(r.EvidenceRating, &v); err != nil {
			return nil, fmt.Errorf("unmarshal evidence_rating: %w", err)
		}
		task.EvidenceRating = &v
	}
	if len(r.Contradictions) > 0 {
		var v models.ContradictionReport
		if err := json.Unmarshal(r.Contradictions, &v); err != nil {
			return nil, fmt.Errorf("unmarshal contradictions: %w", err)
		}
		task.Contradictions = &v
	}
	return task, nil
}

// CreateTasks inserts the planner-emitted task rows for a job, one
// statement per row, inside a single transaction it opens via WithTx — the
// planner handler batches all of a job's tasks together.
func (s *Store) CreateTasks(ctx context.Context, tasks []*models.Task) error {
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, t := range tasks {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO tasks (id, job_id, title, status, rejection_count, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				t.ID, t.JobID, t.Title, string(t.Status), t.RejectionCount, t.CreatedAt, t.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("insert task %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// GetTask fetches a task by id.
func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var row taskRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, job_id, title, status, result, feedback, hypotheses,
		       evidence_rating, contradictions, rejection_count, created_at, updated_at
		FROM tasks WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select task: %w", err)
	}
	return row.toModel()
}

// ListTasksByJob returns every task belonging to a job, ordered by creation.
func (s *Store) ListTasksByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Task, error) {
	var rows []taskRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, job_id, title, status, result, feedback, hypotheses,
		       evidence_rating, contradictions, rejection_count, created_at, updated_at
		FROM tasks WHERE job_id = $1 ORDER BY created_at ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("select tasks by job: %w", err)
	}
	tasks := make([]*models.Task, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// CASTaskStatus performs the compare-and-set status transition that
// serializes concurrent supervisor re-entry for a single task.
func (s *Store) CASTaskStatus(ctx context.Context, id uuid.UUID, from, to config.TaskStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
		string(to), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("cas task status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// CASTaskRejectedWithFeedback performs a plain status+feedback CAS, used by
// the research handler when the researcher agent itself fails: the task
// goes straight to REJECTED with a system-error feedback, outside the
// bounded-rejection counter (that counter only governs the supervisor's
// decision on an already-REJECTED task — see CASTaskRejected).
func (s *Store) CASTaskRejectedWithFeedback(ctx context.Context, id uuid.UUID, from config.TaskStatus, feedback string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = $1, feedback = $2, updated_at = now() WHERE id = $3 AND status = $4`,
		string(config.TaskStatusRejected), feedback, id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("cas task rejected with feedback: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// CASTaskRejected performs the bounded-rejection transition: it moves a
// task from the review-complete state to either back into research (with
// the rejection counter incremented and feedback recorded) or, once
// rejectionCount has reached maxRejections, straight to the
// APPROVED_DEGRADED terminal status.
func (s *Store) CASTaskRejected(ctx context.Context, id uuid.UUID, from config.TaskStatus, feedback string, maxRejections int) (toStatus config.TaskStatus, won bool, err error) {
	err = s.WithTx(ctx, func(tx *sqlx.Tx) error {
		var current struct {
			Status         string `db:"status"`
			RejectionCount int    `db:"rejection_count"`
		}
		if getErr := tx.GetContext(ctx, &current, `
			SELECT status, rejection_count FROM tasks WHERE id = $1 FOR UPDATE`, id); getErr != nil {
			return fmt.Errorf("select task for update: %w", getErr)
		}
		if config.TaskStatus(current.Status) != from {
			won = false
			return nil
		}

		nextCount := current.RejectionCount + 1
		if nextCount >= maxRejections {
			toStatus = config.TaskStatusApprovedDegraded
		} else {
			toStatus = config.TaskStatusResearchingRetry
		}

		_, execErr := tx.ExecContext(ctx, `
			UPDATE tasks SET status = $1, feedback = $2, rejection_count = $3, updated_at = now()
			WHERE id = $4`, string(toStatus), feedback, nextCount, id)
		if execErr != nil {
			return fmt.Errorf("update rejected task: %w", execErr)
		}
		won = true
		return nil
	})
	return toStatus, won, err
}

// SetTaskResult persists a task's research result text.
func (s *Store) SetTaskResult(ctx context.Context, id uuid.UUID, result string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET result = $1, updated_at = now() WHERE id = $2`, result, id)
	if err != nil {
		return fmt.Errorf("update task result: %w", err)
	}
	return nil
}

// SetTaskHypotheses persists the hypothesis agent's parsed (or raw-fallback) output.
func (s *Store) SetTaskHypotheses(ctx context.Context, id uuid.UUID, v *models.HypothesisSet) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal hypotheses: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE tasks SET hypotheses = $1, updated_at = now() WHERE id = $2`, raw, id)
	if err != nil {
		return fmt.Errorf("update task hypotheses: %w", err)
	}
	return nil
}

// SetTaskEvidenceRating persists the scoring agent's parsed output.
func (s *Store) SetTaskEvidenceRating(ctx context.Context, id uuid.UUID, v *models.EvidenceRating) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal evidence rating: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE tasks SET evidence_rating = $1, updated_at = now() WHERE id = $2`, raw, id)
	if err != nil {
		return fmt.Errorf("update task evidence rating: %w", err)
	}
	return nil
}

// SetTaskContradictions persists the contradiction-finding agent's parsed output.
func (s *Store) SetTaskContradictions(ctx context.Context, id uuid.UUID, v *models.ContradictionReport) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal contradictions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE tasks SET contradictions = $1, updated_at = now() WHERE id = $2`, raw, id)
	if err != nil {
		return fmt.Errorf("update task contradictions: %w", err)
	}
	return nil
}

// AllTasksTerminal reports whether every task for a job has reached a
// success terminal status (APPROVED or APPROVED_DEGRADED), which gates the
// supervisor's transition into aggregation.
func (s *Store) AllTasksTerminal(ctx context.Context, jobID uuid.UUID) (bool, error) {
	tasks, err := s.ListTasksByJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if len(tasks) == 0 {
		return false, nil
	}
	for _, t := range tasks {
		if !t.Status.IsTerminalSuccess() {
			return false, nil
		}
	}
	return true, nil
}
