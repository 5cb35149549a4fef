package search

import (
	"sort"

	"github.com/standardbeagle/codesearch/internal/core"
	"github.com/standardbeagle/codesearch/internal/types"
)

// ResultTree groups matches by project, then by file.
type ResultTree struct {
	Name     string            `json:"name"`
	Projects []*ProjectMatches `json:"projects"`
}

// ProjectMatches holds the matching files of one project in database order.
type ProjectMatches struct {
	Name  string         `json:"name"`
	Root  string         `json:"root"`
	Files []*FileMatches `json:"files"`
}

// FileMatches holds one file's match spans in ascending position order.
type FileMatches struct {
	Name    string                   `json:"name"`
	RelPath string                   `json:"rel_path"`
	Path    string                   `json:"path"`
	Spans   []types.FilePositionSpan `json:"spans"`
}

// HitCount returns the number of spans in the tree.
func (t *ResultTree) HitCount() int {
	n := 0
	for _, p := range t.Projects {
		for _, f := range p.Files {
			n += len(f.Spans)
		}
	}
	return n
}

// FileCount returns the number of files with at least one span.
func (t *ResultTree) FileCount() int {
	n := 0
	for _, p := range t.Projects {
		n += len(p.Files)
	}
	return n
}

// fileSpans collects spans per file ID as tasks report them.
type fileSpans map[types.FileID][]types.FilePositionSpan

// buildResultTree walks the database in file order so grouping follows
// project order, then path order. Spans of a file may arrive from several
// tasks and are sorted by position.
func buildResultTree(name string, db *core.FileDatabase, spans fileSpans) *ResultTree {
	tree := &ResultTree{Name: name, Projects: []*ProjectMatches{}}
	if len(spans) == 0 {
		return tree
	}

	ids := make([]types.FileID, 0, len(spans))
	for id := range spans {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var current *ProjectMatches
	var currentProject *core.Project
	for _, id := range ids {
		list := spans[id]
		if len(list) == 0 {
			continue
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Position < list[j].Position })

		f := db.File(id)
		if f.Project != currentProject {
			currentProject = f.Project
			current = &ProjectMatches{Name: f.Project.Name, Root: f.Project.Root}
			tree.Projects = append(tree.Projects, current)
		}
		current.Files = append(current.Files, &FileMatches{
			Name:    f.Name(),
			RelPath: f.RelPath,
			Path:    f.Path(),
			Spans:   list,
		})
	}
	return tree
}
