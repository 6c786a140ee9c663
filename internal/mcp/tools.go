package mcp

// SearchInput defines the input schema for the search tool, mirroring
// ragquery.Query's caller-facing fields.
type SearchInput struct {
	Query               string `json:"query" jsonschema:"the natural-language or code-shaped search query"`
	CurrentFile         string `json:"current_file,omitempty" jsonschema:"path of the file the caller is editing, used for proximity and import-overlap ranking"`
	CurrentLanguage     string `json:"current_language,omitempty" jsonschema:"language of the current file"`
	RepositoryFilter    string `json:"repository_filter,omitempty" jsonschema:"restrict results to one repository"`
	Intent              string `json:"intent,omitempty" jsonschema:"explicit intent override: implement, debug, understand, refactor, test, document"`
	Limit               int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Detail              string `json:"detail,omitempty" jsonschema:"result detail level: full, compact, ultra"`
	BM25Only            bool   `json:"bm25_only,omitempty" jsonschema:"skip vector and semantic retrieval, keyword search only"`
	DisableCache        bool   `json:"disable_cache,omitempty" jsonschema:"bypass the result cache for this query"`
	IncludeDependencies bool   `json:"include_dependencies,omitempty" jsonschema:"widen retrieval to include files importing or imported by strong matches"`
	IncludeTimings      bool   `json:"include_timings,omitempty" jsonschema:"include per-stage timing breakdown in the response"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	QueryID string               `json:"query_id"`
	Results []SearchResultOutput `json:"results"`
	Timings *TimingsOutput       `json:"timings,omitempty"`
	Reason  string               `json:"reason,omitempty" jsonschema:"set to no_results when results is empty"`
}

// SearchResultOutput is one ranked result rendered for an MCP client.
type SearchResultOutput struct {
	ResultID     string  `json:"result_id"`
	Repository   string  `json:"repository,omitempty"`
	FilePath     string  `json:"file_path"`
	FunctionName string  `json:"function_name,omitempty"`
	ClassName    string  `json:"class_name,omitempty"`
	Language     string  `json:"language,omitempty"`
	Snippet      string  `json:"snippet"`
	StartLine    int     `json:"start_line"`
	EndLine      int     `json:"end_line"`
	Score        float64 `json:"score"`
	Explanation  string  `json:"explanation,omitempty"`
}

// TimingsOutput mirrors ragquery.StageTimings for wire transport.
type TimingsOutput struct {
	ClassifyMS float64 `json:"classify_ms"`
	EnhanceMS  float64 `json:"enhance_ms"`
	RetrieveMS float64 `json:"retrieve_ms"`
	RankMS     float64 `json:"rank_ms"`
	TotalMS    float64 `json:"total_ms"`
}

// FeedbackInput defines the input schema for the submit_feedback tool.
type FeedbackInput struct {
	QueryID  string `json:"query_id" jsonschema:"the query_id returned alongside the result being reported on"`
	ResultID string `json:"result_id" jsonschema:"the result_id the feedback applies to"`
	Rank     int    `json:"rank" jsonschema:"1-based position of the result in the response that was shown"`
	Outcome  string `json:"outcome" jsonschema:"click, copy, no_click, explicit_positive, or explicit_negative"`
}

// FeedbackOutput defines the output schema for the submit_feedback tool.
type FeedbackOutput struct {
	Accepted bool `json:"accepted"`
}
