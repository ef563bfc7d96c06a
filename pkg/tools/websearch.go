package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deepresearch/engine/pkg/llm"
)

const (
	tavilyEndpoint       = "https://api.tavily.com/search"
	webSearchTruncateLen = 5000
	deepSearchMaxQueries = 4
)

// WebSearch calls a Tavily-shaped search API (SPEC_FULL.md §4.4, grounded
// on the original implementation's tavily_search tool). When DeepSearch is
// requested it first asks the LLM to expand the query into several
// sub-queries, searches each, and merges/dedupes the results by URL.
type WebSearch struct {
	apiKey     string
	httpClient *http.Client
	llm        llm.Provider // used only for deep_search sub-query expansion
}

// NewWebSearch constructs a WebSearch tool. provider may be nil if deep
// search expansion is never requested.
func NewWebSearch(apiKey string, provider llm.Provider) *WebSearch {
	return &WebSearch{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		llm:        provider,
	}
}

// Definition implements Tool.
func (w *WebSearch) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "web_search",
		Description: "Search the web for current events and broad research. Best for information not already in the internal database.",
		ParametersSchema: `{
			"type": "object",
			"properties": {
				"query": {"type": "string"},
				"max_results": {"type": "integer", "default": 5},
				"deep_search": {"type": "boolean", "default": false}
			},
			"required": ["query"]
		}`,
	}
}

type webSearchArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
	DeepSearch bool   `json:"deep_search"`
}

type tavilyResult struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	RawContent string  `json:"raw_content"`
	Score      float64 `json:"score"`
}

type tavilyResponse struct {
	Answer  string         `json:"answer"`
	Results []tavilyResult `json:"results"`
}

// Call implements Tool.
func (w *WebSearch) Call(ctx context.Context, argumentsJSON string) (string, error) {
	var args webSearchArgs
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return "", fmt.Errorf("parse web_search arguments: %w", err)
	}
	if args.MaxResults <= 0 {
		args.MaxResults = 5
	}

	var resp *tavilyResponse
	var err error
	if args.DeepSearch {
		resp, err = w.deepSearch(ctx, args.Query, args.MaxResults)
	} else {
		resp, err = w.search(ctx, args.Query, args.MaxResults)
	}
	if err != nil {
		return "", err
	}

	return formatTavilyResponse(resp), nil
}

func (w *WebSearch) search(ctx context.Context, query string, maxResults int) (*tavilyResponse, error) {
	body, err := json.Marshal(map[string]any{
		"api_key":         w.apiKey,
		"query":           query,
		"search_depth":    "advanced",
		"max_results":     maxResults,
		"include_answer":  true,
		"include_raw_content": false,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call tavily: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tavily response: %w", err)
	}
	if httpResp.StatusCode >= 400 {
		return nil, fmt.Errorf("tavily returned status %d: %s", httpResp.StatusCode, string(raw))
	}

	var tr tavilyResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("unmarshal tavily response: %w", err)
	}
	return &tr, nil
}

// deepSearch expands query into several sub-queries via the LLM, searches
// each, and merges the deduplicated-by-URL results.
func (w *WebSearch) deepSearch(ctx context.Context, query string, maxResults int) (*tavilyResponse, error) {
	queries := []string{query}
	if w.llm != nil {
		if expanded, err := w.expandQuery(ctx, query); err == nil && len(expanded) > 0 {
			queries = expanded
		}
	}
	if len(queries) > deepSearchMaxQueries {
		queries = queries[:deepSearchMaxQueries]
	}

	resultsPerQuery := maxResults / len(queries)
	if resultsPerQuery < 2 {
		resultsPerQuery = 2
	}

	answer := ""
	seen := make(map[string]bool)
	merged := make([]tavilyResult, 0, maxResults*2)

	for _, q := range queries {
		resp, err := w.search(ctx, q, resultsPerQuery)
		if err != nil {
			continue
		}
		if answer == "" && resp.Answer != "" {
			answer = resp.Answer
		}
		for _, r := range resp.Results {
			if seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			merged = append(merged, r)
		}
	}

	if len(merged) > maxResults*2 {
		merged = merged[:maxResults*2]
	}

	return &tavilyResponse{Answer: answer, Results: merged}, nil
}

func (w *WebSearch) expandQuery(ctx context.Context, query string) ([]string, error) {
	resp, err := w.llm.Generate(ctx, llm.Request{
		SystemPrompt: "You are a research assistant. Generate 3 distinct, specific search queries to comprehensively research the user's topic. Output ONLY the queries, one per line.",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: query}},
	})
	if err != nil {
		return nil, err
	}

	var queries []string
	for _, line := range strings.Split(resp.Content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			queries = append(queries, trimmed)
		}
	}

	hasOriginal := false
	for _, q := range queries {
		if q == query {
			hasOriginal = true
			break
		}
	}
	if !hasOriginal {
		queries = append([]string{query}, queries...)
	}
	return queries, nil
}

func formatTavilyResponse(resp *tavilyResponse) string {
	var sb strings.Builder
	if resp.Answer != "" {
		sb.WriteString(resp.Answer)
		sb.WriteString("\n\n")
	}
	for i, r := range resp.Results {
		content := r.RawContent
		if content == "" {
			content = r.Content
		}
		if len(content) > webSearchTruncateLen {
			content = content[:webSearchTruncateLen] + "...(truncated)"
		}
		fmt.Fprintf(&sb, "--- Result %d: %s (%s) ---\n%s\n\n", i+1, r.Title, r.URL, content)
	}
	return sb.String()
}
