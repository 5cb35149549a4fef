package search

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/codesearch/internal/core"
	cserrors "github.com/standardbeagle/codesearch/internal/errors"
)

// PathFilter selects files by their project-relative path. The source form
// is a ';' separated list of doublestar globs such as "*.cc;*.h;!third_party/**".
// A glob without '/' is matched against the file name only. Globs starting
// with '!' exclude. With no include glob every file not excluded matches.
type PathFilter struct {
	includes []string
	excludes []string
}

// ParsePathFilter compiles a filter. An empty source returns nil, which
// matches everything.
func ParsePathFilter(source string) (*PathFilter, error) {
	f := &PathFilter{}
	for _, part := range strings.Split(source, ";") {
		part = strings.TrimSpace(part)
		exclude := strings.HasPrefix(part, "!")
		part = strings.TrimSpace(strings.TrimPrefix(part, "!"))
		if part == "" {
			continue
		}
		part = strings.ReplaceAll(part, "\\", "/")
		if !doublestar.ValidatePattern(part) {
			return nil, cserrors.NewInvalidQueryError("file_path_pattern", fmt.Errorf("invalid glob %q", part))
		}
		if exclude {
			f.excludes = append(f.excludes, part)
		} else {
			f.includes = append(f.includes, part)
		}
	}
	if len(f.includes) == 0 && len(f.excludes) == 0 {
		return nil, nil
	}
	return f, nil
}

// Match reports whether a slash separated relative path passes the filter.
func (f *PathFilter) Match(relPath string) bool {
	if f == nil {
		return true
	}
	for _, pattern := range f.excludes {
		if matchGlob(pattern, relPath) {
			return false
		}
	}
	if len(f.includes) == 0 {
		return true
	}
	for _, pattern := range f.includes {
		if matchGlob(pattern, relPath) {
			return true
		}
	}
	return false
}

func matchGlob(pattern, relPath string) bool {
	target := relPath
	if !strings.Contains(pattern, "/") {
		target = path.Base(relPath)
	}
	matched, _ := doublestar.Match(pattern, target)
	return matched
}

// candidateFiles returns the files a query may scan, in database order.
func candidateFiles(db *core.FileDatabase, filter *PathFilter, includeSymLinks bool) []*core.FileEntry {
	files := db.Files()
	if filter == nil && includeSymLinks {
		return files
	}
	out := make([]*core.FileEntry, 0, len(files))
	for _, f := range files {
		if f.ViaSymlink && !includeSymLinks {
			continue
		}
		if filter.Match(f.RelPath) {
			out = append(out, f)
		}
	}
	return out
}
