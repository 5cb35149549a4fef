package search

import (
	"github.com/standardbeagle/codesearch/internal/algorithm"
)

// Query is one search request. A MaxResults of types.NoResultLimit (0)
// disables the result cap.
type Query struct {
	Pattern         string `json:"pattern"`
	Regex           bool   `json:"regex,omitempty"`
	MatchCase       bool   `json:"match_case,omitempty"`
	WholeWord       bool   `json:"whole_word,omitempty"`
	FilePathPattern string `json:"file_path_pattern,omitempty"`
	MaxResults      int    `json:"max_results,omitempty"`

	// IncludeSymLinks also searches files reached through symbolic links.
	IncludeSymLinks bool `json:"include_symlinks,omitempty"`

	// RequireFileMatch makes a FilePathPattern that selects no file an
	// InvalidQueryError instead of an empty result.
	RequireFileMatch bool `json:"require_file_match,omitempty"`
}

// AlgorithmOptions returns the flags that select the matcher.
func (q Query) AlgorithmOptions() algorithm.Options {
	return algorithm.Options{
		Pattern:   q.Pattern,
		MatchCase: q.MatchCase,
		WholeWord: q.WholeWord,
		Regex:     q.Regex,
	}
}
