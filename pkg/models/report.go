package models

import "encoding/json"

// ReportDraft is the structured research report produced by the aggregate
// handler, or its plain_text fallback when the reporter agent's output
// fails to parse as the structured shape (SPEC_FULL.md §3, §9).
type ReportDraft struct {
	Summary     string         `json:"summary,omitempty"`
	KeyFindings []string       `json:"key_findings,omitempty"`
	Details     map[string]any `json:"details,omitempty"`

	// Plain-text fallback shape.
	Content string `json:"content,omitempty"`
	Format  string `json:"format,omitempty"`

	// Error shape used when aggregation itself fails (SPEC_FULL.md §7).
	Error string `json:"error,omitempty"`
}

// IsPlainText reports whether this draft is the unstructured fallback.
func (d *ReportDraft) IsPlainText() bool {
	return d != nil && d.Format == "plain_text"
}

// PlainTextReport wraps unparseable reporter output as the documented
// plain_text fallback shape.
func PlainTextReport(content string) *ReportDraft {
	return &ReportDraft{Content: content, Format: "plain_text"}
}

// ErrorReport wraps an aggregation failure as the documented error shape.
func ErrorReport(message string) *ReportDraft {
	return &ReportDraft{Error: message}
}

// ParseReportDraft attempts to parse reporter agent output as a structured
// ReportDraft; callers fall back to PlainTextReport on error.
func ParseReportDraft(raw string) (*ReportDraft, error) {
	var d ReportDraft
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, err
	}
	return &d, nil
}
