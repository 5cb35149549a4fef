package algorithm

// asciiLiteral is a case-sensitive Boyer-Moore-Horspool matcher.
type asciiLiteral struct {
	pattern []byte
	skip    [256]int
}

func newASCIILiteral(pattern []byte) *asciiLiteral {
	a := &asciiLiteral{pattern: pattern}
	m := len(pattern)
	for i := range a.skip {
		a.skip[i] = m
	}
	for i := 0; i < m-1; i++ {
		a.skip[pattern[i]] = m - 1 - i
	}
	return a
}

func (a *asciiLiteral) Kind() Kind         { return KindASCIILiteral }
func (a *asciiLiteral) PatternLength() int { return len(a.pattern) }
func (a *asciiLiteral) BufferSize() int    { return 0 }

func (a *asciiLiteral) Search(p *SearchParams) {
	p.MatchStart = a.index(p.Text, p.Cursor, p.End, p.Limit)
	p.MatchLength = len(a.pattern)
}

func (a *asciiLiteral) CancelSearch(p *SearchParams) {}

// index returns the first i in [from, end) with text[i:i+m] == pattern and
// i+m <= limit, or -1.
func (a *asciiLiteral) index(text []byte, from, end, limit int) int {
	m := len(a.pattern)
	last := m - 1
	for i := from; i < end && i+m <= limit; {
		j := last
		for j >= 0 && text[i+j] == a.pattern[j] {
			j--
		}
		if j < 0 {
			return i
		}
		i += a.skip[text[i+last]]
	}
	return -1
}
