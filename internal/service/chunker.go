package service

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/cloo-solutions/ragcore/internal/domain"
)

// CharsPerToken is the fixed character-to-token ratio used for sizing.
const CharsPerToken = 4

// ChunkConfig controls chunking. ChunkSize and Overlap are in tokens;
// SnapTolerance is the fraction of the window searched backwards for a
// paragraph or sentence boundary.
type ChunkConfig struct {
	ChunkSize     int
	Overlap       int
	SnapTolerance float64
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ChunkSize:     300,
		Overlap:       50,
		SnapTolerance: 0.10,
	}
}

func (c ChunkConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return domain.ChunkingError("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.Overlap < 0 {
		return domain.ChunkingError("overlap must not be negative, got %d", c.Overlap)
	}
	if c.ChunkSize <= c.Overlap {
		return domain.ChunkingError("chunk size %d must be greater than overlap %d", c.ChunkSize, c.Overlap)
	}
	if c.SnapTolerance < 0 || c.SnapTolerance >= 1 {
		return domain.ChunkingError("snap tolerance must be in [0, 1), got %g", c.SnapTolerance)
	}
	return nil
}

// Chunker splits documents into overlapping windows.
type Chunker struct {
	cfg ChunkConfig
}

func NewChunker(cfg ChunkConfig) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

func (c *Chunker) Config() ChunkConfig { return c.cfg }

// Chunk splits doc into chunks. Consecutive chunks share exactly
// Overlap*CharsPerToken characters, so the normalized text can be rebuilt by
// dropping that prefix from every chunk after the first.
func (c *Chunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(NormalizeText(doc.Text))
	if len(runes) == 0 {
		return []domain.Chunk{}, nil
	}

	spans := c.split(runes)
	chunks := make([]domain.Chunk, len(spans))
	for i, sp := range spans {
		text := string(runes[sp.start:sp.end])
		chars := sp.end - sp.start
		chunks[i] = domain.Chunk{
			ID:         domain.ChunkID(doc.ID, i),
			Text:       text,
			TokenCount: (chars + CharsPerToken - 1) / CharsPerToken,
			Metadata: domain.ChunkMetadata{
				Source:      doc.SourceName,
				ChunkIndex:  i,
				TotalChunks: len(spans),
				FileType:    doc.FileType,
				StartChar:   sp.start,
				EndChar:     sp.end,
				CharCount:   chars,
				Extra:       copyMetadata(doc.Metadata),
			},
		}
	}
	return chunks, nil
}

type span struct{ start, end int }

func (c *Chunker) split(runes []rune) []span {
	n := len(runes)
	window := c.cfg.ChunkSize * CharsPerToken
	overlap := c.cfg.Overlap * CharsPerToken

	// A cut must land past start+overlap or the walk would not advance.
	tol := int(c.cfg.SnapTolerance * float64(window))
	if limit := window - overlap - 1; tol > limit {
		tol = limit
	}
	if tol < 0 {
		tol = 0
	}

	spans := make([]span, 0, n/(window-overlap)+1)
	start := 0
	for {
		end := start + window
		if end >= n {
			spans = append(spans, span{start, n})
			return spans
		}
		cut := findCut(runes, end-tol, end)
		spans = append(spans, span{start, cut})
		start = cut - overlap
	}
}

// findCut returns the right-most paragraph break in [lo, hi], else the
// right-most sentence break, else hi. hi must be < len(runes).
func findCut(runes []rune, lo, hi int) int {
	if lo < 2 {
		lo = 2
	}
	for p := hi; p >= lo; p-- {
		if runes[p-1] == '\n' && runes[p-2] == '\n' {
			return p
		}
	}
	for p := hi; p >= lo; p-- {
		switch runes[p-1] {
		case '.', '!', '?', ';':
			if unicode.IsSpace(runes[p]) {
				return p
			}
		}
	}
	return hi
}

var (
	newlines   = strings.NewReplacer("\r\n", "\n", "\r", "\n")
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// NormalizeText unifies line endings, strips trailing whitespace from every
// line and collapses runs of blank lines to a single blank line.
func NormalizeText(text string) string {
	text = newlines.Replace(text)
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRightFunc(l, unicode.IsSpace)
	}
	text = blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text)
}

// TextStats is a cheap size estimate for a text before chunking.
type TextStats struct {
	Chars           int `json:"chars"`
	EstimatedTokens int `json:"estimated_tokens"`
	EstimatedChunks int `json:"estimated_chunks"`
	ChunkSize       int `json:"chunk_size"`
	Overlap         int `json:"overlap"`
}

func (c *Chunker) Stats(text string) TextStats {
	chars := len([]rune(NormalizeText(text)))
	tokens := chars / CharsPerToken
	est := 1
	if c.cfg.ChunkSize > 0 && tokens/c.cfg.ChunkSize > 1 {
		est = tokens / c.cfg.ChunkSize
	}
	return TextStats{
		Chars:           chars,
		EstimatedTokens: tokens,
		EstimatedChunks: est,
		ChunkSize:       c.cfg.ChunkSize,
		Overlap:         c.cfg.Overlap,
	}
}

func copyMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
