package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/deepresearch/engine/pkg/models"
)

// SaveAgentLog inserts a single conversation-turn record. Callers treat
// failures here as non-fatal to the agent run that produced them.
func (s *Store) SaveAgentLog(ctx context.Context, log *models.AgentLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_logs (id, job_id, agent_name, role, content, tool_calls, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		log.ID, log.JobID, log.AgentName, string(log.Role), log.Content, log.ToolCalls, log.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert agent log: %w", err)
	}
	return nil
}

// ListAgentLogsByJob returns a job's conversation trace in chronological order.
func (s *Store) ListAgentLogsByJob(ctx context.Context, jobID uuid.UUID) ([]*models.AgentLog, error) {
	var logs []*models.AgentLog
	err := s.db.SelectContext(ctx, &logs, `
		SELECT id, job_id, agent_name, role, content, tool_calls, timestamp
		FROM agent_logs WHERE job_id = $1 ORDER BY timestamp ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("select agent logs by job: %w", err)
	}
	return logs, nil
}
