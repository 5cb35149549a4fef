// Package algorithm implements the pattern matchers used to scan content
// pieces: ASCII and Unicode literals, an ASCII case-folding wrapper, a
// whole-word wrapper and a regular expression matcher.
//
// An Algorithm is compiled once per query and shared read-only by every scan
// task. Per-scan state lives in SearchParams, which each task owns together
// with its scratch buffer.
package algorithm

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	cserrors "github.com/standardbeagle/codesearch/internal/errors"
)

// Kind identifies an algorithm variant.
type Kind int

const (
	KindASCIILiteral Kind = iota
	KindCaseFold
	KindUnicodeLiteral
	KindWholeWord
	KindRegex
)

func (k Kind) String() string {
	switch k {
	case KindASCIILiteral:
		return "ascii-literal"
	case KindCaseFold:
		return "ascii-case-fold"
	case KindUnicodeLiteral:
		return "unicode-literal"
	case KindWholeWord:
		return "whole-word"
	case KindRegex:
		return "regex"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Options are the query flags that select and compile an algorithm.
type Options struct {
	Pattern   string
	MatchCase bool
	WholeWord bool
	Regex     bool
}

// SearchParams carries one scan's buffers and cursor across Search calls.
//
// Text is the whole file so that whole-word checks can look past the scanned
// window. Matches must start in [Start, End). Literal matches finish at or
// before Limit; regexes read on to the end of the line holding End-1.
// Search leaves the next match in MatchStart/MatchLength, or MatchStart = -1
// when there is none.
type SearchParams struct {
	Text    []byte
	Start   int
	End     int
	Limit   int
	Cursor  int
	Scratch []byte

	MatchStart  int
	MatchLength int

	// case folding window: Text[foldStart:foldEnd] lowered into Scratch
	foldStart int
	foldEnd   int

	// end of the regex search input, computed on first use
	horizon int
}

// Reset prepares params for a new window, keeping the scratch buffer.
func (p *SearchParams) Reset(text []byte, start, end, limit int) {
	*p = SearchParams{
		Text:       text,
		Start:      start,
		End:        end,
		Limit:      limit,
		Cursor:     start,
		Scratch:    p.Scratch,
		MatchStart: -1,
	}
}

// Algorithm is a compiled pattern matcher. Implementations are immutable and
// safe for concurrent use with distinct SearchParams.
type Algorithm interface {
	Kind() Kind
	// PatternLength is the byte length of a literal pattern, 0 for regexes.
	PatternLength() int
	// BufferSize is the scratch buffer size a scan task must provide.
	BufferSize() int
	// Search finds the next match at or after p.Cursor.
	Search(p *SearchParams)
	// CancelSearch drops any state held in p for an abandoned scan.
	CancelSearch(p *SearchParams)
}

// Compile selects and builds the algorithm for opts. An empty pattern is an
// InvalidQueryError, a malformed regex a PatternError.
func Compile(opts Options) (Algorithm, error) {
	if opts.Pattern == "" {
		return nil, cserrors.NewInvalidQueryError("pattern", cserrors.ErrEmptyPattern)
	}

	var alg Algorithm
	switch {
	case opts.Regex:
		re, err := compileRegex(opts.Pattern, opts.MatchCase)
		if err != nil {
			return nil, cserrors.NewPatternError(opts.Pattern, err)
		}
		alg = re
	case isASCII(opts.Pattern) && opts.MatchCase:
		alg = newASCIILiteral([]byte(opts.Pattern))
	case isASCII(opts.Pattern):
		alg = newCaseFold(opts.Pattern)
	case opts.MatchCase:
		if !utf8.ValidString(opts.Pattern) {
			return nil, cserrors.NewPatternError(opts.Pattern, fmt.Errorf("pattern is not valid UTF-8"))
		}
		alg = newUnicodeLiteral([]byte(opts.Pattern))
	default:
		re, err := compileRegex(regexp.QuoteMeta(opts.Pattern), false)
		if err != nil {
			return nil, cserrors.NewPatternError(opts.Pattern, err)
		}
		alg = re
	}

	if opts.WholeWord {
		alg = newWholeWord(alg)
	}
	return alg, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
