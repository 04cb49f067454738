package mcp

// SearchInput is the input schema of the search tool.
type SearchInput struct {
	Query      string `json:"query" jsonschema:"the question or keywords to search the documentation for"`
	NumResults int    `json:"num_results,omitempty" jsonschema:"number of results to return, default 5"`
	Mode       string `json:"mode,omitempty" jsonschema:"ranking mode: hybrid (default), lexical or semantic"`
}

// SearchOutput is the structured result of the search tool.
type SearchOutput struct {
	Query    string         `json:"query"`
	Mode     string         `json:"mode" jsonschema:"mode actually served; lexical when vectors are unavailable"`
	Results  []SearchResult `json:"results"`
	Warnings []string       `json:"warnings,omitempty"`
}

// SearchResult is one ranked chunk.
type SearchResult struct {
	Rank     int     `json:"rank"`
	ID       string  `json:"id" jsonschema:"chunk id, source@offset"`
	Filename string  `json:"filename"`
	Category string  `json:"category,omitempty"`
	Topic    string  `json:"topic,omitempty"`
	Score    float64 `json:"score"`
	Source   string  `json:"source" jsonschema:"lexical, semantic or fused"`
	Snippet  string  `json:"snippet"`
}

// IndexStatusInput is the (empty) input of the index_status tool.
type IndexStatusInput struct{}

// IndexStatusOutput is the result of the index_status tool.
type IndexStatusOutput struct {
	DocsDir     string `json:"docs_dir"`
	Documents   int    `json:"documents"`
	Chunks      int    `json:"chunks"`
	ChunkSize   int    `json:"chunk_size"`
	StepSize    int    `json:"step_size"`
	LastIngest  string `json:"last_ingest,omitempty"`
	Vectors     int    `json:"vectors"`
	Model       string `json:"model,omitempty"`
	Dimensions  int    `json:"dimensions"`
	VectorState string `json:"vector_state" jsonschema:"consistent, stale or disabled"`
	Semantic    bool   `json:"semantic" jsonschema:"true when semantic ranking is being served"`
	Backend     string `json:"backend"`
}
