package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMProviderRegistry_Default(t *testing.T) {
	reg := NewLLMProviderRegistry(map[string]*LLMProviderConfig{
		"default": {Backend: LLMBackendAnthropic, APIKey: "sk-ant-test"},
	})

	p, err := reg.Default()
	require.NoError(t, err)
	assert.Equal(t, LLMBackendAnthropic, p.Backend)
	assert.Equal(t, 1, reg.Len())
}

func TestLLMProviderRegistry_NotFound(t *testing.T) {
	reg := NewLLMProviderRegistry(nil)
	_, err := reg.Get("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLLMProviderNotFound)

	_, err = reg.Default()
	require.Error(t, err)
}
