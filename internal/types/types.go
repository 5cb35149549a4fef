package types

import (
	"fmt"
	"math"
)

// Common system-wide constants
const (
	// File size limits
	DefaultMaxFileSize = 10 * 1024 * 1024 // 10MB per file
	// Rationale: Prevents memory exhaustion from large
	// generated files while covering 99.9% of source files.

	DefaultMaxFileCount = 100000 // Maximum files loaded into a single snapshot

	// MaxSearchableFileSize is the largest file a snapshot accepts. Match
	// positions are int32 byte offsets, so anything at or past 2 GiB cannot be
	// addressed and is rejected instead of being truncated.
	MaxSearchableFileSize = math.MaxInt32

	// Piece sizing
	DefaultMaxPieceSize = 100 * 1024 // 100KB per content piece
	// Rationale: Large enough that per-piece overhead is negligible,
	// small enough that one huge file spreads over several workers.

	// Search limits
	DefaultMaxResults = 10000

	// NoResultLimit disables the result cap when used as MaxResults.
	NoResultLimit = 0

	DefaultMaxExtractLength = 250

	// Cache sizes
	DefaultExtractCacheSize   = 256 // line indexes kept across extract requests
	DefaultAlgorithmCacheSize = 64  // compiled search algorithms

	// Binary detection
	BinaryPreCheckBytes = 512 // Number of bytes sniffed for NUL bytes
)

// FileID is the dense index of a file inside one database snapshot.
// IDs are only meaningful for the snapshot that assigned them.
type FileID uint32

// FilePositionSpan is one match: a byte position in a file and its length.
type FilePositionSpan struct {
	Position int32 `json:"position"`
	Length   int32 `json:"length"`
}

// End returns the offset one past the last byte of the span.
func (s FilePositionSpan) End() int {
	return int(s.Position) + int(s.Length)
}

func (s FilePositionSpan) String() string {
	return fmt.Sprintf("%d:%d", s.Position, s.Length)
}

// FileExtract is a display snippet located by line and column.
// Offset and Length address the extracted text in the file; LineNumber
// and ColumnNumber are 0-based and count bytes.
type FileExtract struct {
	Text         string `json:"text"`
	Offset       int    `json:"offset"`
	Length       int    `json:"length"`
	LineNumber   int    `json:"line_number"`
	ColumnNumber int    `json:"column_number"`
}
