package algorithm

import "bytes"

const minFoldBlock = 64 * 1024

// caseFold matches an ASCII pattern ignoring ASCII case. Text is lowered one
// block at a time into the scan's scratch buffer and searched there with the
// lowered pattern. Consecutive blocks overlap by PatternLength()-1 bytes.
type caseFold struct {
	lower *asciiLiteral
}

func newCaseFold(pattern string) *caseFold {
	return &caseFold{lower: newASCIILiteral(bytes.ToLower([]byte(pattern)))}
}

func (c *caseFold) Kind() Kind         { return KindCaseFold }
func (c *caseFold) PatternLength() int { return len(c.lower.pattern) }

func (c *caseFold) BufferSize() int {
	return max(minFoldBlock, 4*len(c.lower.pattern))
}

func (c *caseFold) Search(p *SearchParams) {
	m := len(c.lower.pattern)
	p.MatchLength = m
	for {
		if p.Cursor >= p.End || p.Cursor+m > p.Limit {
			p.MatchStart = -1
			return
		}
		if p.foldEnd <= p.foldStart || p.Cursor < p.foldStart || p.Cursor+m > p.foldEnd {
			p.foldStart = p.Cursor
			p.foldEnd = min(p.Limit, p.Cursor+len(p.Scratch))
			foldASCII(p.Scratch, p.Text[p.foldStart:p.foldEnd])
		}

		block := p.Scratch[:p.foldEnd-p.foldStart]
		if i := c.lower.index(block, p.Cursor-p.foldStart, p.End-p.foldStart, len(block)); i >= 0 {
			p.MatchStart = p.foldStart + i
			return
		}
		if p.foldEnd >= p.Limit {
			p.MatchStart = -1
			return
		}
		// every start before foldEnd-m+1 has been tried
		p.Cursor = p.foldEnd - m + 1
	}
}

func (c *caseFold) CancelSearch(p *SearchParams) {
	p.foldStart, p.foldEnd = 0, 0
}

// foldASCII writes src lowered into dst, which must be at least as long.
func foldASCII(dst, src []byte) {
	for i, b := range src {
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		dst[i] = b
	}
}
