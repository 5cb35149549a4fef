package algorithm

import (
	"unicode"
	"unicode/utf8"
)

// wholeWord filters another algorithm's matches to those not glued to a
// word character. A match edge that is itself a word character must be
// preceded (or followed) by a non-word character or the file boundary.
// Neighbours are read from the whole file, not just the scanned window.
type wholeWord struct {
	inner Algorithm
}

func newWholeWord(inner Algorithm) *wholeWord {
	return &wholeWord{inner: inner}
}

func (w *wholeWord) Kind() Kind         { return KindWholeWord }
func (w *wholeWord) PatternLength() int { return w.inner.PatternLength() }
func (w *wholeWord) BufferSize() int    { return w.inner.BufferSize() }

func (w *wholeWord) Search(p *SearchParams) {
	for {
		w.inner.Search(p)
		if p.MatchStart < 0 {
			return
		}
		if isWordBoundaryMatch(p.Text, p.MatchStart, p.MatchStart+p.MatchLength) {
			return
		}
		p.Cursor = p.MatchStart + 1
	}
}

func (w *wholeWord) CancelSearch(p *SearchParams) {
	w.inner.CancelSearch(p)
}

// IsWordRune reports whether r is a letter, a digit or an underscore.
func IsWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isWordBoundaryMatch(text []byte, start, end int) bool {
	if start >= end {
		return false
	}
	first, _ := utf8.DecodeRune(text[start:end])
	if IsWordRune(first) && start > 0 {
		if before, _ := utf8.DecodeLastRune(text[:start]); IsWordRune(before) {
			return false
		}
	}
	last, _ := utf8.DecodeLastRune(text[start:end])
	if IsWordRune(last) && end < len(text) {
		if after, _ := utf8.DecodeRune(text[end:]); IsWordRune(after) {
			return false
		}
	}
	return true
}
