package embedding

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/cloo-solutions/ragcore/internal/domain"
)

const (
	// HashModelName is recorded in index headers built with HashEmbedder.
	HashModelName = "hashing-bow-v1"

	bigramWeight = 0.5
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// HashEmbedder is a deterministic bag-of-words embedder. Unigrams and bigrams
// are hashed into a fixed number of buckets with a sign bit, weighted by
// sublinear term frequency and L2-normalized. It needs no model download,
// which makes it the default for offline ingestion and tests.
type HashEmbedder struct {
	dimension int
	model     string
	stopwords map[string]struct{}
}

// NewHashEmbedder creates a HashEmbedder producing vectors of the given
// dimension. An empty model name defaults to HashModelName.
func NewHashEmbedder(dimension int, model string) *HashEmbedder {
	if model == "" {
		model = HashModelName
	}
	return &HashEmbedder{
		dimension: dimension,
		model:     model,
		stopwords: defaultStopwords(),
	}
}

func (e *HashEmbedder) Dimension() int    { return e.dimension }
func (e *HashEmbedder) ModelName() string { return e.model }

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.EmbeddingError("embedding cancelled", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.InvalidParameterError("text cannot be empty")
	}
	if e.dimension <= 0 {
		return nil, domain.ConfigurationError("embedding dimension must be positive, got %d", e.dimension)
	}
	return e.vector(text), nil
}

func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// vector never returns the zero vector: text made only of stopwords falls
// back to its unfiltered words, and text without words to character
// trigrams.
func (e *HashEmbedder) vector(text string) []float32 {
	tokens := e.features(text)
	weights := make(map[uint64]float64, len(tokens)*2)
	for i, tok := range tokens {
		weights[xxhash.Sum64String(tok)]++
		if i > 0 {
			weights[xxhash.Sum64String(tokens[i-1]+" "+tok)] += bigramWeight
		}
	}

	vec := make([]float32, e.dimension)
	dim := uint64(e.dimension)
	for h, tf := range weights {
		w := 1 + math.Log(tf)
		if tf < 1 {
			w = tf
		}
		if h>>63 == 1 {
			w = -w
		}
		vec[h%dim] += float32(w)
	}
	if isZero(vec) {
		// Opposite-signed features cancelled out in every bucket.
		vec[xxhash.Sum64String(text)%dim] = 1
	}
	return Normalize(vec)
}

func (e *HashEmbedder) features(text string) []string {
	lower := strings.ToLower(text)
	raw := tokenPattern.FindAllString(lower, -1)
	if tokens := e.dropStopwords(raw); len(tokens) > 0 {
		return tokens
	}
	if len(raw) > 0 {
		return raw
	}
	return charTrigrams(strings.Join(strings.Fields(lower), " "))
}

func (e *HashEmbedder) dropStopwords(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		if _, stop := e.stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func charTrigrams(s string) []string {
	runes := []rune(s)
	if len(runes) <= 3 {
		return []string{s}
	}
	out := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		out = append(out, string(runes[i:i+3]))
	}
	return out
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for", "from", "in", "is", "it",
		"of", "on", "or", "that", "the", "this", "to", "was", "with",
		"le", "la", "les", "de", "des", "du", "un", "une", "et", "en", "est", "pour",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
