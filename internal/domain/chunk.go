package domain

import "fmt"

// ChunkMetadata describes where a chunk came from.
type ChunkMetadata struct {
	Source      string            `json:"source"`
	ChunkIndex  int               `json:"chunk_index"`
	TotalChunks int               `json:"total_chunks"`
	FileType    FileType          `json:"file_type,omitempty"`
	StartChar   int               `json:"start_char"`
	EndChar     int               `json:"end_char"`
	CharCount   int               `json:"char_count"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Chunk is the atomic retrieval unit. Chunks are never mutated after the
// chunker emits them.
type Chunk struct {
	ID         string        `json:"id"`
	Text       string        `json:"text"`
	TokenCount int           `json:"token_count"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// ChunkID derives the stable identifier of the i-th chunk of a document.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// IndexEntry pairs a chunk with its embedding.
type IndexEntry struct {
	Chunk  Chunk
	Vector []float32
}

// IndexHeader is recorded alongside a persisted index and checked on load.
type IndexHeader struct {
	Dimension      int    `json:"dimension"`
	EntryCount     int    `json:"entry_count"`
	EmbeddingModel string `json:"embedding_model_name"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// ChunkPage is one page of an index listing. Generation identifies the index
// contents the page was read from.
type ChunkPage struct {
	Chunks     []Chunk
	Total      int
	Generation uint64
}

// IndexStats summarises the served index.
type IndexStats struct {
	Entries    int    `json:"entries"`
	Sources    int    `json:"sources"`
	Dimension  int    `json:"dimension"`
	Model      string `json:"embedding_model"`
	Generation uint64 `json:"generation"`
}
