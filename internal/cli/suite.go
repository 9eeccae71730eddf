package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cloo-solutions/ragcore/internal/domain"
)

// Suite is an evaluation file: labelled queries and an optional depth.
type Suite struct {
	K       int                      `json:"k,omitempty" yaml:"k,omitempty"`
	Queries []domain.EvaluationQuery `json:"queries" yaml:"queries"`
}

// LoadSuite reads an evaluation suite. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON. A bare list of queries is
// accepted in both formats.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	yamlFile := ext == ".yaml" || ext == ".yml"

	suite, err := parseSuite(data, yamlFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse suite %s: %w", path, err)
	}
	if len(suite.Queries) == 0 {
		return nil, fmt.Errorf("suite %s has no queries", path)
	}
	for i, q := range suite.Queries {
		if strings.TrimSpace(q.Query) == "" {
			return nil, fmt.Errorf("suite %s: query %d is empty", path, i)
		}
	}
	return suite, nil
}

func parseSuite(data []byte, yamlFile bool) (*Suite, error) {
	trimmed := bytes.TrimSpace(data)

	if yamlFile {
		var suite Suite
		if err := yaml.Unmarshal(trimmed, &suite); err == nil && len(suite.Queries) > 0 {
			return &suite, nil
		}
		var queries []domain.EvaluationQuery
		if err := yaml.Unmarshal(trimmed, &queries); err != nil {
			return nil, err
		}
		return &Suite{Queries: queries}, nil
	}

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var queries []domain.EvaluationQuery
		if err := json.Unmarshal(trimmed, &queries); err != nil {
			return nil, err
		}
		return &Suite{Queries: queries}, nil
	}
	var suite Suite
	if err := json.Unmarshal(trimmed, &suite); err != nil {
		return nil, err
	}
	return &suite, nil
}

// PrintReport writes a human readable evaluation summary.
func PrintReport(w io.Writer, report *domain.EvaluationReport, verbose bool) {
	fmt.Fprintf(w, "Queries:        %d (k=%d)\n", report.TotalQueries, report.K)
	fmt.Fprintf(w, "Recall@k:       %.3f\n", report.AvgRecall)
	fmt.Fprintf(w, "Precision@k:    %.3f\n", report.AvgPrecision)
	fmt.Fprintf(w, "Avg similarity: %.3f\n", report.AvgSimilarity)
	fmt.Fprintf(w, "Hit rate:       %.3f\n", report.HitRate)
	fmt.Fprintf(w, "MRR:            %.3f\n", report.MRR)

	if !verbose {
		return
	}
	for _, d := range report.Details {
		fmt.Fprintf(w, "\n%q\n", d.Query)
		fmt.Fprintf(w, "  recall=%.2f precision=%.2f rr=%.2f sim=%.3f\n",
			d.Recall, d.Precision, d.ReciprocalRank, d.AvgSimilarity)
		if len(d.MatchedSources) > 0 {
			fmt.Fprintf(w, "  matched: %s\n", strings.Join(d.MatchedSources, ", "))
		}
		if len(d.MissingSources) > 0 {
			fmt.Fprintf(w, "  missing: %s\n", strings.Join(d.MissingSources, ", "))
		}
	}
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
