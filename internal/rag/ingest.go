package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
)

// ingestableExtensions are the file types AddDirectory picks up. Anything
// else is counted as skipped, not failed.
var ingestableExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".txt":      true,
	".text":     true,
}

// IngestReport summarizes one directory ingestion. A non-zero error count
// does not mean the batch failed; only an all-errors batch does.
type IngestReport struct {
	BatchID     string        `json:"batch_id"`
	FilesFound  int           `json:"files_found"`
	Succeeded   int           `json:"succeeded"`
	Skipped     int           `json:"skipped"`
	Errors      int           `json:"errors"`
	ChunksAdded int           `json:"chunks_added"`
	Duration    time.Duration `json:"duration"`

	// FailedFiles maps each failing path to its error text.
	FailedFiles map[string]string `json:"failed_files,omitempty"`
}

// AddDirectory walks dir recursively and ingests every supported file,
// honoring the directory's .gitignore. Files are processed by a bounded
// worker pool; one corrupt file is counted and skipped, never fatal to the
// batch. Cancellation stops scheduling new files; already-written documents
// stay indexed since re-ingestion is idempotent.
func (s *System) AddDirectory(ctx context.Context, dir string) (*IngestReport, error) {
	start := time.Now()
	report := &IngestReport{
		BatchID:     uuid.New().String(),
		FailedFiles: make(map[string]string),
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve directory: %w", err)
	}

	var gitIgnore *ignore.GitIgnore
	if _, err := os.Stat(filepath.Join(absDir, ".gitignore")); err == nil {
		// A malformed .gitignore disables matching rather than failing the run.
		gitIgnore, _ = ignore.CompileIgnoreFile(filepath.Join(absDir, ".gitignore"))
	}

	var files []string
	walkErr := filepath.Walk(absDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			report.Errors++
			return nil
		}
		rel, err := filepath.Rel(absDir, path)
		if err != nil {
			report.Errors++
			return nil
		}
		if gitIgnore != nil && gitIgnore.MatchesPath(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			report.Skipped++
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if !ingestableExtensions[strings.ToLower(filepath.Ext(path))] {
			report.Skipped++
			return nil
		}
		files = append(files, path)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", absDir, walkErr)
	}
	report.FilesFound = len(files)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, path := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			written, err := s.AddDocumentFromFile(gctx, path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Errors++
				report.FailedFiles[path] = err.Error()
				s.logger.Warn("file ingestion failed", "path", path, "error", err)
				return nil // contain per-file failures
			}
			report.Succeeded++
			report.ChunksAdded += written
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		report.Duration = time.Since(start)
		return report, err
	}

	report.Duration = time.Since(start)
	s.logger.Info("directory ingested",
		"batch_id", report.BatchID,
		"dir", absDir,
		"found", report.FilesFound,
		"succeeded", report.Succeeded,
		"skipped", report.Skipped,
		"errors", report.Errors,
		"chunks", report.ChunksAdded)

	if report.FilesFound > 0 && report.Succeeded == 0 && report.Errors == report.FilesFound {
		return report, fmt.Errorf("all %d files failed to ingest", report.FilesFound)
	}
	return report, nil
}
