package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github/itish2003/repair-agent/models"

	"github.com/tmc/langchaingo/textsplitter"
)

// ErrNoDocuments is returned when an ingestion pass finds nothing to index.
var ErrNoDocuments = errors.New("no valid documents found for indexing")

// Indexer is the ingestion capability exposed to the HTTP layer.
type Indexer interface {
	BuildIndex(ctx context.Context) (*models.IngestReport, error)
}

// IndexingService converts the guides directory into indexed summaries:
// each JSON guide becomes one summarized document keyed by filename, and
// supplemental manuals (.txt/.md/.pdf) are chunked and indexed verbatim.
type IndexingService struct {
	index      VectorIndex
	embedder   Embedder
	summarizer Summarizer
	guidesDir  string
	collection string
}

// NewIndexingService creates the ingestion service.
func NewIndexingService(index VectorIndex, embedder Embedder, summarizer Summarizer, guidesDir, collection string) *IndexingService {
	return &IndexingService{
		index:      index,
		embedder:   embedder,
		summarizer: summarizer,
		guidesDir:  guidesDir,
		collection: collection,
	}
}

// BuildIndex scans the guides directory and commits all entries to the
// index in a single bulk insert at the end of the pass. Individual file
// failures are skipped and logged, never retried within the pass.
func (s *IndexingService) BuildIndex(ctx context.Context) (*models.IngestReport, error) {
	log.Printf("INDEXER: starting ingestion pass over %s", s.guidesDir)

	dirEntries, err := os.ReadDir(s.guidesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read guides directory %s: %w", s.guidesDir, err)
	}

	report := &models.IngestReport{Collection: s.collection}
	var entries []IndexEntry

	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		path := filepath.Join(s.guidesDir, de.Name())

		switch {
		case strings.HasSuffix(de.Name(), ".json"):
			entry, err := s.processGuide(ctx, path)
			if err != nil {
				log.Printf("INDEXER: skipping guide %s: %v", de.Name(), err)
				report.FilesSkipped++
				continue
			}
			entries = append(entries, entry)
			report.GuidesIndexed++
		case isManualFile(path):
			chunks, err := s.processManual(path)
			if err != nil {
				log.Printf("INDEXER: skipping manual %s: %v", de.Name(), err)
				report.FilesSkipped++
				continue
			}
			entries = append(entries, chunks...)
			report.ManualChunks += len(chunks)
		}
	}

	if len(entries) == 0 {
		log.Printf("INDEXER WARN: no valid documents found in %s", s.guidesDir)
		return report, ErrNoDocuments
	}

	vectors, entries, failed := s.embedEntries(ctx, entries)
	report.FilesSkipped += failed

	if len(entries) == 0 {
		return report, ErrNoDocuments
	}
	if err := s.index.AddDocuments(ctx, entries, vectors); err != nil {
		return nil, fmt.Errorf("failed to commit index entries: %w", err)
	}

	log.Printf("INDEXER: ingestion finished: %d guides, %d manual chunks, %d skipped",
		report.GuidesIndexed, report.ManualChunks, report.FilesSkipped)
	return report, nil
}

// ReindexGuide replaces the indexed entry for a single guide file. Used by
// the directory watcher on create/write events.
func (s *IndexingService) ReindexGuide(ctx context.Context, path string) error {
	filename := filepath.Base(path)
	if err := s.index.DeleteByFilename(ctx, filename); err != nil {
		return fmt.Errorf("failed to delete old entry for %s: %w", filename, err)
	}

	entry, err := s.processGuide(ctx, path)
	if err != nil {
		return err
	}
	vector, err := s.embedder.Embed(ctx, entry.Text)
	if err != nil {
		return fmt.Errorf("failed to embed summary for %s: %w", filename, err)
	}
	return s.index.AddDocuments(ctx, []IndexEntry{entry}, [][]float32{vector})
}

// RemoveGuide drops a deleted guide from the index.
func (s *IndexingService) RemoveGuide(ctx context.Context, path string) error {
	return s.index.DeleteByFilename(ctx, filepath.Base(path))
}

func (s *IndexingService) processGuide(ctx context.Context, path string) (IndexEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return IndexEntry{}, fmt.Errorf("read failed: %w", err)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return IndexEntry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	filename := filepath.Base(path)
	title := ExtractTitle(data)
	log.Printf("INDEXER: extracted title %q from %s", title, filename)

	jsonText, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return IndexEntry{}, fmt.Errorf("re-marshal failed: %w", err)
	}

	summary, err := s.summarizer.Summarize(ctx, string(jsonText))
	if err != nil {
		return IndexEntry{}, fmt.Errorf("summary generation failed: %w", err)
	}

	return IndexEntry{
		Text: summary,
		Metadata: map[string]interface{}{
			"filename": filename,
			"title":    title,
			"source":   "guide",
		},
	}, nil
}

func (s *IndexingService) processManual(path string) ([]IndexEntry, error) {
	text, err := ExtractTextFromFile(path)
	if err != nil {
		return nil, err
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(1000),
		textsplitter.WithChunkOverlap(100),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("chunking failed: %w", err)
	}

	filename := filepath.Base(path)
	title := strings.TrimSuffix(filename, filepath.Ext(filename))
	entries := make([]IndexEntry, 0, len(chunks))
	for i, chunk := range chunks {
		entries = append(entries, IndexEntry{
			Text: chunk,
			Metadata: map[string]interface{}{
				"filename": filename,
				"title":    title,
				"source":   "manual",
				"chunk":    i,
			},
		})
	}
	return entries, nil
}

// embedEntries embeds every entry, dropping (and counting) the ones whose
// embedding fails so a single bad entry cannot abort the bulk commit.
func (s *IndexingService) embedEntries(ctx context.Context, entries []IndexEntry) ([][]float32, []IndexEntry, int) {
	vectors := make([][]float32, 0, len(entries))
	kept := make([]IndexEntry, 0, len(entries))
	failed := 0
	for _, entry := range entries {
		vector, err := s.embedder.Embed(ctx, entry.Text)
		if err != nil {
			log.Printf("INDEXER: skipping entry %v: embedding failed: %v", entry.Metadata["filename"], err)
			failed++
			continue
		}
		vectors = append(vectors, vector)
		kept = append(kept, entry)
	}
	return vectors, kept, failed
}
