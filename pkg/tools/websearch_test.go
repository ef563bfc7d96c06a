package tools_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deepresearch/engine/pkg/tools"
)

func TestWebSearch_Definition(t *testing.T) {
	tool := tools.NewWebSearch("fake-key", nil)
	def := tool.Definition()
	assert.Equal(t, "web_search", def.Name)
	assert.Contains(t, def.ParametersSchema, "deep_search")
}
