package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReportDraft_Structured(t *testing.T) {
	raw := `{"summary":"s","key_findings":["a","b"],"details":{"x":1}}`
	d, err := ParseReportDraft(raw)
	require.NoError(t, err)
	assert.Equal(t, "s", d.Summary)
	assert.Equal(t, []string{"a", "b"}, d.KeyFindings)
	assert.False(t, d.IsPlainText())
}

func TestParseReportDraft_InvalidJSONFallsBackToPlainText(t *testing.T) {
	_, err := ParseReportDraft("not json")
	require.Error(t, err)

	d := PlainTextReport("not json")
	assert.True(t, d.IsPlainText())
	assert.Equal(t, "not json", d.Content)
}

func TestErrorReport(t *testing.T) {
	d := ErrorReport("boom")
	assert.Equal(t, "boom", d.Error)
	assert.False(t, d.IsPlainText())
}
