// Package extract turns match spans into display snippets located by line
// and column.
package extract

import (
	"context"
	"fmt"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/codesearch/internal/core"
	"github.com/standardbeagle/codesearch/internal/debug"
	cserrors "github.com/standardbeagle/codesearch/internal/errors"
	"github.com/standardbeagle/codesearch/internal/types"
)

// positionsPerTask is the chunk size for parallel extraction.
const positionsPerTask = 64

// Options configures a Service.
type Options struct {
	// CacheSize is the number of line indexes kept (0 = default).
	CacheSize int
	// Parallelism bounds concurrent chunks per request (0 = unbounded).
	Parallelism int
}

// Service builds snippets for match positions. Line indexes are cached per
// file content hash, so repeated requests on one file scan it only once.
type Service struct {
	lines       *lru.Cache[uint64, *core.LineIndex]
	parallelism int
}

// NewService creates an extract service.
func NewService(opts Options) *Service {
	size := opts.CacheSize
	if size <= 0 {
		size = types.DefaultExtractCacheSize
	}
	cache, _ := lru.New[uint64, *core.LineIndex](size)
	return &Service{lines: cache, parallelism: opts.Parallelism}
}

// Extract returns one snippet per position, in input order. fileName is
// resolved with FileDatabase.FileByPath. A maxExtractLength <= 0 selects
// types.DefaultMaxExtractLength.
//
// Each snippet is the line enclosing the span's start, without its line
// terminator. Lines longer than maxExtractLength are cut to a window around
// the span on UTF-8 boundaries. Line and column are 0-based, columns count
// bytes. Positions outside the file are clamped to it.
func (s *Service) Extract(ctx context.Context, db *core.FileDatabase, fileName string, positions []types.FilePositionSpan, maxExtractLength int) ([]types.FileExtract, error) {
	file := db.FileByPath(fileName)
	if file == nil {
		return nil, cserrors.NewFileError("extract", fileName, fmt.Errorf("file is not in the database"))
	}
	if maxExtractLength <= 0 {
		maxExtractLength = types.DefaultMaxExtractLength
	}

	idx := s.lineIndex(file)
	out := make([]types.FileExtract, len(positions))

	g, gctx := errgroup.WithContext(ctx)
	if s.parallelism > 0 {
		g.SetLimit(s.parallelism)
	}
	for start := 0; start < len(positions); start += positionsPerTask {
		end := min(start+positionsPerTask, len(positions))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				out[i] = extractOne(file.Contents, idx, positions[i], maxExtractLength)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	debug.LogExtract("%s: %d extracts\n", file.Path(), len(out))
	return out, nil
}

func (s *Service) lineIndex(f *core.FileEntry) *core.LineIndex {
	if idx, ok := s.lines.Get(f.Hash); ok {
		return idx
	}
	idx := core.NewLineIndex(f.Contents)
	s.lines.Add(f.Hash, idx)
	return idx
}

// CachedFiles returns the number of cached line indexes.
func (s *Service) CachedFiles() int {
	return s.lines.Len()
}

func extractOne(content []byte, idx *core.LineIndex, span types.FilePositionSpan, maxLen int) types.FileExtract {
	pos := max(0, min(int(span.Position), len(content)))
	spanEnd := max(pos, min(pos+int(span.Length), len(content)))

	line, _ := idx.Locate(pos)
	lineStart, lineEnd := idx.LineBounds(line, content)
	if pos > lineEnd {
		// position on a line terminator
		pos = lineEnd
	}

	start, end := lineStart, lineEnd
	if end-start > maxLen {
		start, end = window(lineStart, lineEnd, pos, min(spanEnd, lineEnd), maxLen)
		start = snapForward(content, start, lineEnd)
		end = snapBackward(content, end, start)
	}

	return types.FileExtract{
		Text:         string(content[start:end]),
		Offset:       start,
		Length:       end - start,
		LineNumber:   line,
		ColumnNumber: pos - lineStart,
	}
}

// window picks maxLen bytes of [lineStart, lineEnd) centred on the span,
// keeping the span's start visible.
func window(lineStart, lineEnd, spanStart, spanEnd, maxLen int) (int, int) {
	spanLen := spanEnd - spanStart
	start := spanStart - max(0, (maxLen-spanLen)/2)
	start = max(lineStart, min(start, lineEnd-maxLen))
	start = min(start, spanStart)
	return start, start + maxLen
}

// snapForward moves i to the next rune start, staying below limit.
func snapForward(content []byte, i, limit int) int {
	for i < limit && !utf8.RuneStart(content[i]) {
		i++
	}
	return i
}

// snapBackward moves i back to a rune start so no rune is cut.
func snapBackward(content []byte, i, floor int) int {
	if i >= len(content) {
		return len(content)
	}
	for i > floor && !utf8.RuneStart(content[i]) {
		i--
	}
	return i
}
