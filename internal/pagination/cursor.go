package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
)

// Cursor represents a decoded pagination cursor. Generation pins the index
// version the page was read from, so a cursor from before a re-ingest is
// detected instead of silently skipping or repeating chunks.
type Cursor struct {
	Offset     int
	Generation uint64
}

// PageResult represents a paginated result set
type PageResult[T any] struct {
	Items   []T    `json:"items"`
	Total   int    `json:"total"`
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

var (
	ErrInvalidCursor = errors.New("invalid cursor format")
	ErrStaleCursor   = errors.New("cursor refers to a previous index generation")
)

// EncodeCursor creates a base64-encoded cursor for the given offset
func EncodeCursor(offset int, generation uint64) string {
	raw := strconv.Itoa(offset) + "|" + strconv.FormatUint(generation, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor decodes a cursor. An empty cursor yields nil.
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return nil, ErrInvalidCursor
	}

	offset, err := strconv.Atoi(parts[0])
	if err != nil || offset < 0 {
		return nil, ErrInvalidCursor
	}
	generation, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{Offset: offset, Generation: generation}, nil
}

// Check rejects a cursor issued against another generation. A nil cursor
// always passes.
func (c *Cursor) Check(generation uint64) error {
	if c == nil || c.Generation == generation {
		return nil
	}
	return ErrStaleCursor
}

// NewPage builds a page starting at offset. The next cursor is set only when
// items remain past this page.
func NewPage[T any](items []T, offset, total int, generation uint64) PageResult[T] {
	page := PageResult[T]{Items: items, Total: total}
	if items == nil {
		page.Items = []T{}
	}
	next := offset + len(items)
	if len(items) > 0 && next < total {
		page.Cursor = EncodeCursor(next, generation)
		page.HasMore = true
	}
	return page
}
