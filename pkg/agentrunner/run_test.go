package agentrunner_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepresearch/engine/pkg/agentrunner"
	"github.com/deepresearch/engine/pkg/llm"
	"github.com/deepresearch/engine/pkg/models"
)

type scriptedProvider struct {
	responses []*llm.Response
	call      int
}

func (p *scriptedProvider) Generate(_ context.Context, _ llm.Request) (*llm.Response, error) {
	r := p.responses[p.call]
	p.call++
	return r, nil
}

func (p *scriptedProvider) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, nil
}

type fakeTool struct {
	name   string
	result string
}

func (t *fakeTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{Name: t.name}
}

func (t *fakeTool) Call(_ context.Context, _ string) (string, error) {
	return t.result, nil
}

type noopLogStore struct{}

func (noopLogStore) SaveAgentLog(_ context.Context, _ *models.AgentLog) error { return nil }

func TestRun_ReturnsFinalAnswerWithNoTools(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{{Content: "the answer"}}}
	agent := agentrunner.Agent{Name: "planner", SystemPrompt: "plan things"}

	out, err := agentrunner.Run(context.Background(), provider, noopLogStore{}, uuid.New(), agent, "do the thing")
	require.NoError(t, err)
	assert.Equal(t, "the answer", out)
}

func TestRun_DispatchesToolCallThenReturnsFinalAnswer(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "1", Name: "web_search", Arguments: `{"query":"x"}`}}},
		{Content: "final answer after searching"},
	}}
	searchTool := &fakeTool{name: "web_search", result: "search results here"}
	agent := agentrunner.Agent{Name: "researcher"}
	agent.Tools = append(agent.Tools, searchTool)

	out, err := agentrunner.Run(context.Background(), provider, noopLogStore{}, uuid.New(), agent, "research x")
	require.NoError(t, err)
	assert.Equal(t, "final answer after searching", out)
}
