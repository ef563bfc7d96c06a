// Package agentrunner implements the sequential tool-calling agent loop
// shared by every phase handler (SPEC_FULL.md §4.6). Agents are plain value
// types plus a single Run function — composition over inheritance.
package agentrunner

import (
	"github.com/deepresearch/engine/pkg/llm"
	"github.com/deepresearch/engine/pkg/tools"
)

// MaxTurns bounds the tool-call loop so a misbehaving model can't run
// forever; each turn is one Generate call plus, if the model asked for
// tools, one round of tool execution.
const MaxTurns = 5

// Agent is a named role with a system prompt and the tools it may call.
// Agents are constructed fresh per invocation — never shared or mutated
// across jobs.
type Agent struct {
	Name         string
	SystemPrompt string
	Tools        []tools.Tool
	MaxTokens    int
}

func (a Agent) toolByName(name string) (tools.Tool, bool) {
	for _, t := range a.Tools {
		if t.Definition().Name == name {
			return t, true
		}
	}
	return nil, false
}

func (a Agent) toolDefinitions() []llm.ToolDefinition {
	if len(a.Tools) == 0 {
		return nil
	}
	defs := make([]llm.ToolDefinition, len(a.Tools))
	for i, t := range a.Tools {
		defs[i] = t.Definition()
	}
	return defs
}
