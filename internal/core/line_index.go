package core

import (
	"bytes"
	"sort"
)

// LineIndex maps byte offsets to 0-based line numbers. It is built with one
// pass over the content and is read-only afterwards, so it can be shared
// between goroutines.
//
// Usage:
//
//	idx := NewLineIndex(content)
//	line, lineStart := idx.Locate(offset)
//	start, end := idx.LineBounds(line, content) // end excludes \n and \r\n
type LineIndex struct {
	starts []int // starts[i] = offset of the first byte of line i
	size   int
}

// NewLineIndex scans content once and records every line start.
// Content ending with a newline has an empty final line.
func NewLineIndex(content []byte) *LineIndex {
	starts := make([]int, 1, CountLines(content)+1)
	for pos := 0; pos < len(content); {
		i := bytes.IndexByte(content[pos:], '\n')
		if i < 0 {
			break
		}
		pos += i + 1
		starts = append(starts, pos)
	}
	return &LineIndex{starts: starts, size: len(content)}
}

// LineCount returns the number of lines, counting an empty trailing line.
func (li *LineIndex) LineCount() int {
	return len(li.starts)
}

// Locate returns the line containing offset and that line's start offset.
// Offsets outside the content are clamped.
func (li *LineIndex) Locate(offset int) (line, lineStart int) {
	offset = max(0, min(offset, li.size))
	line = sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset }) - 1
	return line, li.starts[line]
}

// LineBounds returns the [start, end) byte range of a line without its
// line terminator.
func (li *LineIndex) LineBounds(line int, content []byte) (start, end int) {
	if line < 0 || line >= len(li.starts) {
		return 0, 0
	}
	start = li.starts[line]
	if line+1 < len(li.starts) {
		end = li.starts[line+1] - 1 // drop \n
	} else {
		end = li.size
	}
	if end > start && content[end-1] == '\r' {
		end--
	}
	return start, end
}

// CountLines counts lines in content without allocating. A trailing newline
// does not start a new counted line; empty content has zero lines.
func CountLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	newlines := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		return newlines + 1
	}
	return newlines
}
