package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deepresearch/engine/pkg/models"
)

func TestFlattenReportForIndex_IncludesSummaryKeyFindingsAndDetailsSections(t *testing.T) {
	draft := &models.ReportDraft{
		Summary:     "cats will not replace cars",
		KeyFindings: []string{"cats cannot drive", "no cat-sized steering wheels exist"},
		Details: map[string]any{
			"Mobility":  "cars cover distances cats cannot",
			"Economics": "the feline transport market is nonexistent",
		},
	}

	flattened := flattenReportForIndex(draft)

	assert.Contains(t, flattened, "cats will not replace cars")
	assert.Contains(t, flattened, "cats cannot drive")
	assert.Contains(t, flattened, "no cat-sized steering wheels exist")
	assert.Contains(t, flattened, "Section: Mobility\ncars cover distances cats cannot")
	assert.Contains(t, flattened, "Section: Economics\nthe feline transport market is nonexistent")
}

func TestFlattenReportForIndex_PlainTextDraftIndexesContentVerbatim(t *testing.T) {
	draft := models.PlainTextReport("raw unparsed reporter output")
	assert.Equal(t, "raw unparsed reporter output", flattenReportForIndex(draft))
}

func TestFlattenReportForIndex_EmptyDraftYieldsEmptyString(t *testing.T) {
	assert.Empty(t, flattenReportForIndex(&models.ReportDraft{}))
}
