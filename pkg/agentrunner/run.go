package agentrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/deepresearch/engine/pkg/llm"
	"github.com/deepresearch/engine/pkg/metrics"
	"github.com/deepresearch/engine/pkg/models"
)

// toolTimeout and runMetrics are configured once at process startup via
// Configure. Every phase handler builds its own Agent/Run call without a
// config or metrics dependency, so these ambient concerns are threaded in
// here rather than through every one of the nine handler constructors.
var (
	toolTimeout time.Duration
	runMetrics  *metrics.Metrics
)

// Configure sets the per-tool-call deadline and the metrics sink used by
// every subsequent Run call. Call once during startup; safe to leave
// unconfigured (no timeout, no-op metrics).
func Configure(callTimeout time.Duration, m *metrics.Metrics) {
	toolTimeout = callTimeout
	runMetrics = m
}

// LogStore persists conversation turns. Implemented by pkg/storage.Store.
// Failures here are logged, never propagated — a broken log sink must not
// abort a running agent.
type LogStore interface {
	SaveAgentLog(ctx context.Context, log *models.AgentLog) error
}

// Run drives an Agent through its tool-calling loop against provider for a
// single input, returning the model's final text content. Tool calls are
// dispatched to the agent's registered tools by name; the turn loop ends
// when the model replies with no tool calls, or after MaxTurns, or after
// two consecutive provider failures.
func Run(ctx context.Context, provider llm.Provider, logs LogStore, jobID uuid.UUID, agent Agent, input string) (string, error) {
	logger := slog.With("job_id", jobID, "agent", agent.Name)

	messages := []llm.Message{{Role: llm.RoleUser, Content: input}}
	appendLog(ctx, logs, logger, jobID, agent.Name, models.AgentLogRoleUser, input, nil)

	state := newTurnState(MaxTurns)

	for !state.done() {
		resp, err := provider.Generate(ctx, llm.Request{
			SystemPrompt: agent.SystemPrompt,
			Messages:     messages,
			Tools:        agent.toolDefinitions(),
			MaxTokens:    agent.MaxTokens,
		})
		if err != nil {
			state.recordFailure()
			logger.WarnContext(ctx, "agent generate call failed", "error", err, "turn", state.current)
			if state.shouldAbort() {
				runMetrics.ObserveAgentRun(agent.Name, "error")
				return "", fmt.Errorf("agent %s: aborting after consecutive failures: %w", agent.Name, err)
			}
			continue
		}
		state.recordSuccess()

		if len(resp.ToolCalls) == 0 {
			appendLog(ctx, logs, logger, jobID, agent.Name, models.AgentLogRoleAssistant, resp.Content, nil)
			runMetrics.ObserveAgentRun(agent.Name, "ok")
			return resp.Content, nil
		}

		toolCallsJSON, _ := json.Marshal(resp.ToolCalls)
		appendLog(ctx, logs, logger, jobID, agent.Name, models.AgentLogRoleAssistant, resp.Content, toolCallsJSON)

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})

		for _, call := range resp.ToolCalls {
			result := dispatchToolCall(ctx, agent, call, logger)
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
			appendLog(ctx, logs, logger, jobID, agent.Name, models.AgentLogRoleTool, result, nil)
		}
	}

	runMetrics.ObserveAgentRun(agent.Name, "exhausted")
	return "", fmt.Errorf("agent %s: exceeded %d turns without a final answer", agent.Name, MaxTurns)
}

func dispatchToolCall(ctx context.Context, agent Agent, call llm.ToolCall, logger *slog.Logger) string {
	tool, ok := agent.toolByName(call.Name)
	if !ok {
		return fmt.Sprintf("error: unknown tool %q", call.Name)
	}

	if toolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, toolTimeout)
		defer cancel()
	}

	result, err := tool.Call(ctx, call.Arguments)
	if err != nil {
		logger.WarnContext(ctx, "tool call failed", "tool", call.Name, "error", err)
		return fmt.Sprintf("error: %v", err)
	}
	return result
}

func appendLog(ctx context.Context, logs LogStore, logger *slog.Logger, jobID uuid.UUID, agentName string, role models.AgentLogRole, content string, toolCalls json.RawMessage) {
	if logs == nil {
		return
	}
	entry := models.NewAgentLog(jobID, agentName, role, content, toolCalls)
	// Best-effort: log failures never abort the agent turn that produced them.
	go func() {
		if err := logs.SaveAgentLog(context.WithoutCancel(ctx), entry); err != nil {
			logger.Warn("failed to persist agent log", "error", err)
		}
	}()
}
