package algorithm

import "bytes"

// unicodeLiteral matches a case-sensitive UTF-8 pattern byte for byte.
type unicodeLiteral struct {
	pattern []byte
}

func newUnicodeLiteral(pattern []byte) *unicodeLiteral {
	return &unicodeLiteral{pattern: pattern}
}

func (u *unicodeLiteral) Kind() Kind         { return KindUnicodeLiteral }
func (u *unicodeLiteral) PatternLength() int { return len(u.pattern) }
func (u *unicodeLiteral) BufferSize() int    { return 0 }

func (u *unicodeLiteral) Search(p *SearchParams) {
	p.MatchStart = -1
	p.MatchLength = len(u.pattern)
	if p.Cursor >= p.End || p.Cursor+len(u.pattern) > p.Limit {
		return
	}
	i := bytes.Index(p.Text[p.Cursor:p.Limit], u.pattern)
	if i >= 0 && p.Cursor+i < p.End {
		p.MatchStart = p.Cursor + i
	}
}

func (u *unicodeLiteral) CancelSearch(p *SearchParams) {}
