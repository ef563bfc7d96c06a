// Package tools implements the concrete tool adapters agents can call:
// web_search (Tavily-shaped) and rag_search (backed by pkg/rag).
package tools

import (
	"context"

	"github.com/deepresearch/engine/pkg/llm"
)

// Tool is the common interface the agent runner dispatches tool calls
// through (SPEC_FULL.md §4.4/§4.6).
type Tool interface {
	// Definition describes this tool to the LLM provider.
	Definition() llm.ToolDefinition
	// Call executes the tool with the model-supplied JSON arguments and
	// returns the text result handed back to the model.
	Call(ctx context.Context, argumentsJSON string) (string, error)
}
