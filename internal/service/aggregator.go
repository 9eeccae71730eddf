package service

import (
	"strings"

	"github.com/cloo-solutions/ragcore/internal/domain"
)

// ContextSeparator joins chunk texts in an aggregated context.
const ContextSeparator = "\n\n---\n\n"

// Aggregator assembles ranked results into a bounded context string.
type Aggregator struct {
	separator string
}

func NewAggregator() *Aggregator {
	return &Aggregator{separator: ContextSeparator}
}

// Aggregate concatenates whole chunks in rank order. It stops at the first
// chunk that, with its separator, would push the context past maxLength
// characters; later, smaller chunks are not considered.
func (a *Aggregator) Aggregate(results []domain.ScoredResult, maxLength int) (*domain.AggregatedContext, error) {
	if maxLength <= 0 {
		return nil, domain.InvalidParameterError("max context length must be positive, got %d", maxLength)
	}

	sepLen := len([]rune(a.separator))
	out := &domain.AggregatedContext{
		Sources: []string{},
		Scores:  []float32{},
	}

	var sb strings.Builder
	seen := make(map[string]struct{})
	total := 0
	var scoreSum float64

	for _, r := range results {
		add := len([]rune(r.Chunk.Text))
		if out.ChunkCount > 0 {
			add += sepLen
		}
		if total+add > maxLength {
			break
		}
		if out.ChunkCount > 0 {
			sb.WriteString(a.separator)
		}
		sb.WriteString(r.Chunk.Text)
		total += add

		out.ChunkCount++
		out.Scores = append(out.Scores, r.Score)
		scoreSum += float64(r.Score)

		src := r.Chunk.Metadata.Source
		if _, ok := seen[src]; !ok {
			seen[src] = struct{}{}
			out.Sources = append(out.Sources, src)
		}
	}

	out.Context = sb.String()
	out.Metadata = domain.ContextMetadata{
		TotalChars:   total,
		SourcesCount: len(out.Sources),
	}
	if out.ChunkCount > 0 {
		out.Metadata.AvgScore = scoreSum / float64(out.ChunkCount)
	}
	return out, nil
}
