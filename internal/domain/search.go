package domain

// Relevance is the tier derived from a similarity score.
type Relevance string

const (
	RelevanceHigh   Relevance = "high"
	RelevanceMedium Relevance = "medium"
	RelevanceLow    Relevance = "low"
)

// SearchResult is a raw hit from the vector index.
type SearchResult struct {
	Chunk Chunk
	Score float32
}

// ScoredResult is a SearchResult labelled with its relevance tier.
type ScoredResult struct {
	Chunk     Chunk
	Score     float32
	Relevance Relevance
}

// RetrievalResult is the outcome of one retrieve call.
type RetrievalResult struct {
	Results []ScoredResult
	// TotalFound is the number of hits the index returned before filtering.
	TotalFound    int
	FilteredCount int
	MinScoreUsed  float64
}

// AggregatedContext is the bounded context assembled from ranked results.
type AggregatedContext struct {
	Context    string
	Sources    []string
	Scores     []float32
	ChunkCount int
	Metadata   ContextMetadata
}

type ContextMetadata struct {
	TotalChars   int     `json:"total_chars"`
	AvgScore     float64 `json:"avg_score"`
	SourcesCount int     `json:"sources_count"`
}
