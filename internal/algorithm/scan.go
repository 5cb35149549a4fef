package algorithm

import (
	"github.com/standardbeagle/codesearch/internal/progress"
	"github.com/standardbeagle/codesearch/internal/types"
)

// Scanner owns the per-task scratch state for one compiled algorithm. A scan
// task creates one Scanner and reuses it for every piece it is assigned, so
// the scratch buffer is allocated once per task.
type Scanner struct {
	alg    Algorithm
	params SearchParams
}

// NewScanner allocates the scratch buffer alg asks for.
func NewScanner(alg Algorithm) *Scanner {
	s := &Scanner{alg: alg}
	if n := alg.BufferSize(); n > 0 {
		s.params.Scratch = make([]byte, n)
	}
	return s
}

// ScanAll reports every match starting in buf[start:start+length], in
// ascending non-overlapping order, with positions shifted by base. Literal
// matches may run up to PatternLength()-1 bytes past the window so a match
// straddling two pieces is found exactly once, by the piece it starts in.
// Regexes read the rune before the window and on to the end of its last
// line for the same reason.
//
// After each match the tracker is credited and consulted; once it says to
// stop, the algorithm's scan state is dropped and the matches found so far
// are returned.
func (s *Scanner) ScanAll(buf []byte, start, length, base int, tracker *progress.Tracker) []types.FilePositionSpan {
	end := start + length
	limit := end
	if m := s.alg.PatternLength(); m > 0 {
		limit = min(len(buf), end+m-1)
	}

	p := &s.params
	p.Reset(buf, start, end, limit)

	var spans []types.FilePositionSpan
	for {
		s.alg.Search(p)
		if p.MatchStart < 0 {
			return spans
		}
		spans = append(spans, types.FilePositionSpan{
			Position: int32(base + p.MatchStart),
			Length:   int32(p.MatchLength),
		})
		p.Cursor = p.MatchStart + max(p.MatchLength, 1)

		tracker.AddResults(1)
		if tracker.ShouldEndProcessing() {
			s.alg.CancelSearch(p)
			return spans
		}
	}
}

// ScanAll is a convenience wrapper that scans one window with a fresh
// scratch buffer.
func ScanAll(alg Algorithm, buf []byte, start, length, base int, tracker *progress.Tracker) []types.FilePositionSpan {
	return NewScanner(alg).ScanAll(buf, start, length, base, tracker)
}
