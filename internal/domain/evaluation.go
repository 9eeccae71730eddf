package domain

// EvaluationQuery is a labelled query. ExpectedSources is treated as a set.
type EvaluationQuery struct {
	Query           string   `json:"query" yaml:"query"`
	ExpectedSources []string `json:"expected_sources" yaml:"expected_sources"`
}

// QueryEvaluation holds the metrics of a single evaluation query.
type QueryEvaluation struct {
	Query            string   `json:"query"`
	Recall           float64  `json:"recall"`
	Precision        float64  `json:"precision"`
	AvgSimilarity    float64  `json:"avg_similarity"`
	ReciprocalRank   float64  `json:"reciprocal_rank"`
	RetrievedSources []string `json:"retrieved_sources"`
	MatchedSources   []string `json:"matched_sources"`
	MissingSources   []string `json:"missing_sources"`
}

// EvaluationReport aggregates an evaluation run.
type EvaluationReport struct {
	TotalQueries  int               `json:"total_queries"`
	K             int               `json:"k"`
	AvgRecall     float64           `json:"avg_recall"`
	AvgPrecision  float64           `json:"avg_precision"`
	AvgSimilarity float64           `json:"avg_similarity"`
	HitRate       float64           `json:"hit_rate"`
	MRR           float64           `json:"mrr"`
	Details       []QueryEvaluation `json:"details"`
}
