// Package loader reads plain-text corpora from disk.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/ragcore/internal/domain"
)

// DirectorySource loads every .txt and .md file under a root directory.
type DirectorySource struct {
	root   string
	logger *slog.Logger
}

// NewDirectorySource creates a DirectorySource rooted at root.
func NewDirectorySource(root string, logger *slog.Logger) *DirectorySource {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectorySource{root: root, logger: logger}
}

// Root returns the directory being read.
func (s *DirectorySource) Root() string { return s.root }

// Load walks the root recursively. Files with other extensions are skipped.
// Documents are returned sorted by source name; blank files are skipped.
func (s *DirectorySource) Load(ctx context.Context) ([]domain.Document, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return nil, domain.DocumentLoadError(s.root, err)
	}
	if !info.IsDir() {
		return nil, domain.DocumentLoadError(s.root, fmt.Errorf("not a directory"))
	}

	var docs []domain.Document
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return domain.DocumentLoadError(path, walkErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		fileType, ok := domain.FileTypeFromPath(path)
		if !ok {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return domain.DocumentLoadError(path, err)
		}
		doc, err := LoadFile(path, filepath.ToSlash(rel), fileType)
		if err != nil {
			return err
		}
		if strings.TrimSpace(doc.Text) == "" {
			s.logger.Warn("skipping empty document", "source", doc.SourceName)
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].SourceName < docs[j].SourceName })
	s.logger.Info("documents loaded", "root", s.root, "count", len(docs))
	return docs, nil
}

// LoadFile reads a single file as a Document named sourceName.
func LoadFile(path, sourceName string, fileType domain.FileType) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, domain.DocumentLoadError(path, err)
	}
	if !utf8.Valid(data) {
		return domain.Document{}, domain.DocumentLoadError(path, fmt.Errorf("file is not valid UTF-8"))
	}
	return domain.Document{
		ID:         sourceName,
		Text:       string(data),
		SourceName: sourceName,
		FileType:   fileType,
		Metadata:   map[string]string{"path": path},
	}, nil
}
