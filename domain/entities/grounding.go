package entities

// GroundingChunk is one web source returned with a grounded reply
type GroundingChunk struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// GroundingSupport maps a reply segment to the chunks backing it
type GroundingSupport struct {
	Text             string    `json:"text"`
	SourceIndices    []int     `json:"source_indices"`
	ConfidenceScores []float64 `json:"confidence_scores"`
}

// GroundingMetadata is the search evidence attached to a model reply
type GroundingMetadata struct {
	Chunks               []GroundingChunk
	Supports             []GroundingSupport
	SearchEntryPointHTML string
	WebSearchQueries     []string
}

// GroundingSource is a citation shown to the user
type GroundingSource struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// GroundingResult is the outcome of a web-search-grounded call
type GroundingResult struct {
	Grounded             bool               `json:"grounded"`
	Guidance             string             `json:"grounded_guidance"`
	Sources              []GroundingSource  `json:"sources"`
	SourcesSummary       string             `json:"sources_summary"`
	Chunks               []GroundingChunk   `json:"grounding_chunks,omitempty"`
	Supports             []GroundingSupport `json:"grounding_supports,omitempty"`
	SearchEntryPointHTML string             `json:"search_entry_point_html,omitempty"`
	Confidence           float64            `json:"confidence"`
	Disclaimer           *string            `json:"disclaimer"`
}
