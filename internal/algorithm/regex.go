package algorithm

import (
	"bytes"
	"regexp"
	"unicode/utf8"
)

// regexLookahead bounds how far a match starting inside the window may run
// past it when the window ends in the middle of a line.
const regexLookahead = 64 * 1024

// regex delegates matching to the standard library engine. Patterns are
// compiled in multi-line mode so ^ and $ match at line breaks.
//
// Matches are found one at a time from the cursor. The engine sees the rune
// before the cursor, so ^, \b and \B are evaluated as they would be on the
// whole file, and it sees past the window up to the end of the current line
// (at most regexLookahead bytes), so a match crossing a piece cut is found
// by the piece it starts in.
type regex struct {
	re *regexp.Regexp
	// after finds the leftmost match that starts after the first rune of
	// its input; group 1 is the match.
	after *regexp.Regexp
}

func compileRegex(pattern string, matchCase bool) (*regex, error) {
	flags := "(?m)"
	if !matchCase {
		flags = "(?mi)"
	}
	re, err := regexp.Compile(flags + pattern)
	if err != nil {
		return nil, err
	}
	after, err := regexp.Compile(flags + `\A(?s:.)(?s:.*?)(` + pattern + `)`)
	if err != nil {
		return nil, err
	}
	return &regex{re: re, after: after}, nil
}

func (r *regex) Kind() Kind         { return KindRegex }
func (r *regex) PatternLength() int { return 0 }
func (r *regex) BufferSize() int    { return 0 }

func (r *regex) Search(p *SearchParams) {
	p.MatchStart = -1
	if p.horizon == 0 {
		p.horizon = lineHorizon(p.Text, p.End)
	}

	for origin := p.Cursor; origin < p.End; {
		start, end, ok := r.find(p.Text, origin, p.horizon)
		if !ok || start >= p.End {
			return
		}
		if start == end {
			// empty-width matches are not reported
			_, size := utf8.DecodeRune(p.Text[start:])
			origin = start + max(size, 1)
			continue
		}
		p.MatchStart = start
		p.MatchLength = end - start
		return
	}
}

// find returns the leftmost match in text[:hi] starting at or after origin.
func (r *regex) find(text []byte, origin, hi int) (int, int, bool) {
	if origin == 0 {
		loc := r.re.FindIndex(text[:hi])
		if loc == nil {
			return 0, 0, false
		}
		return loc[0], loc[1], true
	}

	_, size := utf8.DecodeLastRune(text[:origin])
	from := origin - size
	loc := r.re.FindIndex(text[from:hi])
	if loc == nil {
		return 0, 0, false
	}
	if from+loc[0] >= origin {
		return from + loc[0], from + loc[1], true
	}

	// The leftmost match starts on the context rune, which the window does
	// not own. Skip that rune explicitly.
	loc = r.after.FindSubmatchIndex(text[from:hi])
	if loc == nil || loc[2] < 0 {
		return 0, 0, false
	}
	return from + loc[2], from + loc[3], true
}

func (r *regex) CancelSearch(p *SearchParams) {
	p.horizon = 0
}

// lineHorizon returns the end of the line holding text[end-1], newline
// included, but no more than regexLookahead bytes past end.
func lineHorizon(text []byte, end int) int {
	if end <= 0 || end >= len(text) || text[end-1] == '\n' {
		return min(max(end, 0), len(text))
	}
	limit := min(len(text), end+regexLookahead)
	if i := bytes.IndexByte(text[end:limit], '\n'); i >= 0 {
		return end + i + 1
	}
	return limit
}
