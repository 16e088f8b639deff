package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"sjsage522/dealworker/internal/scraper"
	"sjsage522/dealworker/logger"
)

const (
	UncategorizedFile = "property_results.json"
	CategorizedFile   = "property_results2.json"
	SnapshotFile      = "search_results.html"
)

// JSONFileSink writes each record list to its own JSON file
type JSONFileSink struct {
	dir string
	log *logger.Logger
}

// Ensure JSONFileSink implements Sink and SnapshotWriter
var (
	_ Sink           = (*JSONFileSink)(nil)
	_ SnapshotWriter = (*JSONFileSink)(nil)
)

// NewJSONFileSink creates a sink writing into dir
func NewJSONFileSink(dir string) (*JSONFileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &JSONFileSink{dir: dir, log: logger.ForSink("json")}, nil
}

func (s *JSONFileSink) Name() string {
	return "json"
}

// Store overwrites both result files
func (s *JSONFileSink) Store(ctx context.Context, uncategorized, categorized []scraper.Record) error {
	if err := s.writeRecords(UncategorizedFile, uncategorized); err != nil {
		return err
	}
	if err := s.writeRecords(CategorizedFile, categorized); err != nil {
		return err
	}

	s.log.Info().
		Str("dir", s.dir).
		Int("uncategorized", len(uncategorized)).
		Int("categorized", len(categorized)).
		Msg("Results written")
	return nil
}

// WriteSnapshot keeps the page markup for selector debugging
func (s *JSONFileSink) WriteSnapshot(ctx context.Context, html string) error {
	return s.writeFile(SnapshotFile, func(f *os.File) error {
		_, err := f.WriteString(html)
		return err
	})
}

func (s *JSONFileSink) writeRecords(name string, records []scraper.Record) error {
	if records == nil {
		records = []scraper.Record{}
	}
	return s.writeFile(name, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "    ")
		return enc.Encode(records)
	})
}

// writeFile replaces name atomically so readers never see a partial file
func (s *JSONFileSink) writeFile(name string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
