package search

import (
	"context"
	"time"

	"github.com/standardbeagle/codesearch/internal/algorithm"
	"github.com/standardbeagle/codesearch/internal/core"
	"github.com/standardbeagle/codesearch/internal/debug"
	"github.com/standardbeagle/codesearch/internal/progress"
	"github.com/standardbeagle/codesearch/internal/types"
)

// FilePathResult lists the files whose relative path matches a pattern.
// Spans are positions inside the relative path; MaxResults caps files.
type FilePathResult struct {
	Tree           *ResultTree
	HitCount       int
	TotalFileCount int
	CapReached     bool
	Duration       time.Duration
}

// SearchFilePaths matches q.Pattern against the project-relative path of
// every candidate file using the same algorithms as content search.
func (e *Engine) SearchFilePaths(ctx context.Context, q Query, db *core.FileDatabase) (*FilePathResult, error) {
	start := time.Now()

	filter, err := ParsePathFilter(q.FilePathPattern)
	if err != nil {
		return nil, err
	}
	alg, err := e.cache.Get(q.AlgorithmOptions())
	if err != nil {
		return nil, err
	}

	tracker := progress.New(q.MaxResults)
	stop := tracker.Bind(ctx)
	defer stop()

	// The tracker counts files here; each scan gets its own unbounded one.
	scanner := algorithm.NewScanner(alg)
	spans := make(fileSpans)
	for _, f := range candidateFiles(db, filter, q.IncludeSymLinks) {
		if tracker.ShouldEndProcessing() {
			break
		}
		name := []byte(f.RelPath)
		found := scanner.ScanAll(name, 0, len(name), 0, progress.New(types.NoResultLimit))
		if len(found) > 0 {
			spans[f.ID] = found
			tracker.AddResults(1)
		}
	}

	res := &FilePathResult{
		Tree:           buildResultTree(ResultTreeName, db, spans),
		HitCount:       len(spans),
		TotalFileCount: db.FileCount(),
		CapReached:     tracker.CapReached(),
		Duration:       time.Since(start),
	}
	debug.LogSearch("file paths %q: %d of %d files\n", q.Pattern, res.HitCount, res.TotalFileCount)
	return res, nil
}
