// Testing infrastructure for FileDatabase - provides a fluent builder for
// in-memory snapshots without disk I/O.
package core

import "fmt"

// MockFile is one file of an in-memory fixture.
type MockFile struct {
	Project string
	Path    string // project-relative, slash separated
	Content []byte

	ViaSymlink bool
}

// DatabaseFixture builds FileDatabase snapshots for tests.
//
// Example usage:
//
//	db := NewDatabaseFixture().
//		WithFile("a.cpp", "foo bar foo").
//		WithFile("b.cpp", "foo").
//		Build()
type DatabaseFixture struct {
	projects     []string
	roots        map[string]string
	files        []MockFile
	maxPieceSize int
}

// DefaultFixtureProject is the project files are added to when none is named.
const DefaultFixtureProject = "test"

// NewDatabaseFixture creates an empty fixture rooted at /test.
func NewDatabaseFixture() *DatabaseFixture {
	return &DatabaseFixture{roots: make(map[string]string)}
}

// WithProject declares a project. Projects are grouped in declaration order.
func (b *DatabaseFixture) WithProject(name, root string) *DatabaseFixture {
	if _, ok := b.roots[name]; !ok {
		b.projects = append(b.projects, name)
	}
	b.roots[name] = root
	return b
}

// WithFile adds a file to the default project
func (b *DatabaseFixture) WithFile(path, content string) *DatabaseFixture {
	return b.WithProjectFile(DefaultFixtureProject, path, []byte(content))
}

// WithFileBytes adds a file with byte content to the default project
func (b *DatabaseFixture) WithFileBytes(path string, content []byte) *DatabaseFixture {
	return b.WithProjectFile(DefaultFixtureProject, path, content)
}

// WithProjectFile adds a file to a named project, declaring it if needed.
func (b *DatabaseFixture) WithProjectFile(project, path string, content []byte) *DatabaseFixture {
	if _, ok := b.roots[project]; !ok {
		b.WithProject(project, "/"+project)
	}
	b.files = append(b.files, MockFile{Project: project, Path: path, Content: content})
	return b
}

// WithSymlinkedFile adds a file to the default project as if reached through a symlink
func (b *DatabaseFixture) WithSymlinkedFile(path, content string) *DatabaseFixture {
	b.WithFile(path, content)
	b.files[len(b.files)-1].ViaSymlink = true
	return b
}

// WithMaxPieceSize overrides the piece size, handy for exercising piece boundaries.
func (b *DatabaseFixture) WithMaxPieceSize(n int) *DatabaseFixture {
	b.maxPieceSize = n
	return b
}

// Build creates the snapshot. It panics on invalid fixtures.
func (b *DatabaseFixture) Build() *FileDatabase {
	builder := NewBuilder(BuildOptions{MaxPieceSize: b.maxPieceSize})
	projects := make(map[string]*Project, len(b.projects))
	for _, name := range b.projects {
		projects[name] = builder.AddProject(name, b.roots[name])
	}
	for _, f := range b.files {
		add := builder.AddFile
		if f.ViaSymlink {
			add = builder.AddLinkedFile
		}
		if err := add(projects[f.Project], f.Path, f.Content); err != nil {
			panic(fmt.Sprintf("invalid fixture: %v", err))
		}
	}
	return builder.Build()
}
