package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AgentLogRole mirrors the conversation roles an AgentLog entry records.
type AgentLogRole string

const (
	AgentLogRoleUser      AgentLogRole = "user"
	AgentLogRoleAssistant AgentLogRole = "assistant"
	AgentLogRoleTool      AgentLogRole = "tool"
)

// AgentLog is a single observed turn of an agent conversation
// (SPEC_FULL.md §3). Persisted best-effort by the agent runner — log
// failures never abort the turn that produced them.
type AgentLog struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	JobID     uuid.UUID       `db:"job_id" json:"job_id"`
	AgentName string          `db:"agent_name" json:"agent_name"`
	Role      AgentLogRole    `db:"role" json:"role"`
	Content   string          `db:"content" json:"content"`
	ToolCalls json.RawMessage `db:"tool_calls" json:"tool_calls,omitempty"`
	Timestamp time.Time       `db:"timestamp" json:"timestamp"`
}

// NewAgentLog constructs an AgentLog entry ready for insertion.
func NewAgentLog(jobID uuid.UUID, agentName string, role AgentLogRole, content string, toolCalls json.RawMessage) *AgentLog {
	return &AgentLog{
		ID:        uuid.New(),
		JobID:     jobID,
		AgentName: agentName,
		Role:      role,
		Content:   content,
		ToolCalls: toolCalls,
		Timestamp: timeNow(),
	}
}
