package search

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/codesearch/internal/algorithm"
	"github.com/standardbeagle/codesearch/internal/core"
	"github.com/standardbeagle/codesearch/internal/debug"
	cserrors "github.com/standardbeagle/codesearch/internal/errors"
	"github.com/standardbeagle/codesearch/internal/progress"
	"github.com/standardbeagle/codesearch/internal/types"
)

// ResultTreeName labels the root of every result tree.
const ResultTreeName = "Search results"

// Options configures an Engine.
type Options struct {
	// Parallelism is the number of partitions per query and the size of the
	// shared worker pool (0 = runtime.NumCPU()).
	Parallelism        int
	AlgorithmCacheSize int
}

// Engine runs queries against FileDatabase snapshots. One Engine is shared
// by all callers; its worker pool bounds total scan concurrency.
type Engine struct {
	pool     *WorkerPool
	cache    *algorithm.Cache
	registry *Registry
}

// NewEngine creates a search engine.
func NewEngine(opts Options) *Engine {
	return &Engine{
		pool:     NewWorkerPool(opts.Parallelism),
		cache:    algorithm.NewCache(opts.AlgorithmCacheSize),
		registry: NewRegistry(),
	}
}

// Parallelism returns the partition count used per query.
func (e *Engine) Parallelism() int {
	return e.pool.Size()
}

// Registry returns the per-client query registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Result is the outcome of one query.
type Result struct {
	Tree              *ResultTree
	HitCount          int
	SearchedFileCount int
	TotalFileCount    int

	// SkippedPieces counts pieces never scanned because the query ended early.
	SkippedPieces int
	// PieceErrors holds the pieces that failed to scan and were skipped.
	PieceErrors []error

	CapReached bool
	Cancelled  bool
	Duration   time.Duration
}

// Err returns a CancelledError when the query was cancelled before it
// finished. Reaching the result cap is not an error.
func (r *Result) Err() error {
	if r.Cancelled {
		return cserrors.NewCancelledError("search", r.HitCount)
	}
	return nil
}

// Execute runs q against db with a fresh tracker capped at q.MaxResults.
func (e *Engine) Execute(ctx context.Context, q Query, db *core.FileDatabase) (*Result, error) {
	return e.ExecuteTracked(ctx, q, db, progress.New(q.MaxResults))
}

// ExecuteTracked runs q against db sharing the caller's tracker, which may
// be cancelled from another goroutine. Cancelling ctx cancels the tracker.
//
// Pattern and filter errors are returned before any piece is scanned. A
// cancelled query still returns every match found before it stopped.
func (e *Engine) ExecuteTracked(ctx context.Context, q Query, db *core.FileDatabase, tracker *progress.Tracker) (*Result, error) {
	start := time.Now()

	filter, err := ParsePathFilter(q.FilePathPattern)
	if err != nil {
		return nil, err
	}
	alg, err := e.cache.Get(q.AlgorithmOptions())
	if err != nil {
		return nil, err
	}

	candidates := candidateFiles(db, filter, q.IncludeSymLinks)
	if len(candidates) == 0 && filter != nil && q.RequireFileMatch {
		return nil, cserrors.NewInvalidQueryError("file_path_pattern", cserrors.ErrNoMatchingFiles)
	}

	stop := tracker.Bind(ctx)
	defer stop()

	pieces := make([]core.ContentPiece, 0, len(candidates))
	for _, f := range candidates {
		pieces = append(pieces, db.FilePieces(f.ID)...)
	}

	partitions := max(1, min(e.pool.Size(), len(pieces)))
	ranges := core.PartitionPieces(pieces, partitions)
	core.LogPiecePartitions(pieces, ranges)

	outcomes := e.scanPartitions(ctx, alg, pieces, ranges, tracker)
	if ctx.Err() != nil {
		tracker.Cancel()
	}

	spans := make(fileSpans)
	searched := make(map[types.FileID]struct{})
	res := &Result{TotalFileCount: db.FileCount()}
	for _, out := range outcomes {
		for _, m := range out.matches {
			spans[m.file] = append(spans[m.file], m.spans...)
		}
		for _, id := range out.scanned {
			searched[id] = struct{}{}
		}
		res.SkippedPieces += out.skipped
		res.PieceErrors = append(res.PieceErrors, out.errs...)
	}

	res.Tree = buildResultTree(ResultTreeName, db, spans)
	res.HitCount = res.Tree.HitCount()
	res.SearchedFileCount = len(searched)
	res.CapReached = tracker.CapReached()
	res.Cancelled = tracker.IsCancelled()
	res.Duration = time.Since(start)

	debug.LogSearch("%q: %d hits in %d/%d files, %d partitions, %d skipped pieces, %d errors, %v\n",
		q.Pattern, res.HitCount, res.SearchedFileCount, res.TotalFileCount,
		partitions, res.SkippedPieces, len(res.PieceErrors), res.Duration)
	return res, nil
}

// ExecuteForClient runs q as the client's current query, cancelling the
// client's previous query if it is still running. When superseded is true a
// newer query replaced this one and the result should be discarded.
func (e *Engine) ExecuteForClient(ctx context.Context, clientID string, q Query, db *core.FileDatabase) (res *Result, superseded bool, err error) {
	tracker := e.registry.Begin(clientID, q.MaxResults)
	res, err = e.ExecuteTracked(ctx, q, db, tracker)
	superseded = e.registry.Finish(clientID, tracker)
	if superseded {
		debug.LogSearch("query %q of client %s superseded\n", q.Pattern, clientID)
	}
	return res, superseded, err
}

// pieceMatches are the spans one piece produced.
type pieceMatches struct {
	file  types.FileID
	spans []types.FilePositionSpan
}

// taskOutcome is what one scan task hands back for aggregation.
type taskOutcome struct {
	matches []pieceMatches
	scanned []types.FileID // consecutive duplicates removed
	skipped int
	errs    []error
}

// scanPartitions runs one task per non-empty range and waits for all.
// Tasks never fail the group: errors are recorded per piece.
func (e *Engine) scanPartitions(ctx context.Context, alg algorithm.Algorithm, pieces []core.ContentPiece, ranges []core.Range, tracker *progress.Tracker) []taskOutcome {
	outcomes := make([]taskOutcome, len(ranges))

	var g errgroup.Group
	for i, r := range ranges {
		if r.Count == 0 {
			continue
		}
		g.Go(func() error {
			if err := e.pool.Acquire(ctx); err != nil {
				outcomes[i].skipped = r.Count
				return nil
			}
			defer e.pool.Release()
			outcomes[i] = scanPieces(alg, pieces[r.Start:r.End()], tracker)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// scanPieces scans pieces in order with a single scratch buffer, checking
// the tracker before each piece.
func scanPieces(alg algorithm.Algorithm, pieces []core.ContentPiece, tracker *progress.Tracker) taskOutcome {
	var out taskOutcome
	scanner := algorithm.NewScanner(alg)

	for i, piece := range pieces {
		if tracker.ShouldEndProcessing() {
			out.skipped += len(pieces) - i
			break
		}

		id := piece.File.ID
		if n := len(out.scanned); n == 0 || out.scanned[n-1] != id {
			out.scanned = append(out.scanned, id)
		}

		spans, err := scanPiece(scanner, piece, tracker)
		if err != nil {
			out.errs = append(out.errs, err)
			debug.LogSearch("%v\n", err)
			continue
		}
		if len(spans) > 0 {
			out.matches = append(out.matches, pieceMatches{file: id, spans: spans})
		}
	}
	return out
}

// scanPiece isolates a failing piece so sibling pieces and tasks continue.
func scanPiece(scanner *algorithm.Scanner, piece core.ContentPiece, tracker *progress.Tracker) (spans []types.FilePositionSpan, err error) {
	defer func() {
		if r := recover(); r != nil {
			spans = nil
			err = cserrors.NewPieceError(piece.File.Path(), int64(piece.Offset), fmt.Errorf("panic: %v", r))
		}
	}()
	return scanner.ScanAll(piece.File.Contents, piece.Offset, piece.Length, 0, tracker), nil
}
