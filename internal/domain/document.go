package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FileType is the format a document was extracted from.
type FileType string

const (
	FileTypeTXT FileType = "txt"
	FileTypeMD  FileType = "md"
)

// FileTypeFromPath infers the file type from an extension. ok is false for
// unsupported extensions.
func FileTypeFromPath(path string) (FileType, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return FileTypeTXT, true
	case ".md", ".markdown":
		return FileTypeMD, true
	}
	return "", false
}

// Document is a unit of already-extracted plain text handed to the chunker.
type Document struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	SourceName string            `json:"source_name"`
	FileType   FileType          `json:"file_type,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("document ID is required")
	}
	if strings.TrimSpace(d.SourceName) == "" {
		return fmt.Errorf("document SourceName is required")
	}
	return nil
}
