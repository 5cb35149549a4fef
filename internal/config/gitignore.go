package config

import (
	"bufio"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// GitignoreParser matches slash-separated project-relative paths against the
// rules of one or more .gitignore files. Rules are translated to doublestar
// globs when they are added. The last matching rule decides, so a later
// "!pattern" re-includes a path.
type GitignoreParser struct {
	rules []gitignoreRule
}

type gitignoreRule struct {
	glob    string
	negate  bool
	dirOnly bool
}

func NewGitignoreParser() *GitignoreParser {
	return &GitignoreParser{}
}

// LoadGitignore loads <rootPath>/.gitignore. A missing file is not an error.
func (gp *GitignoreParser) LoadGitignore(rootPath string) error {
	return gp.LoadGitignoreAt(rootPath, "")
}

// LoadGitignoreAt loads <rootPath>/<relDir>/.gitignore; its rules only apply
// below relDir.
func (gp *GitignoreParser) LoadGitignoreAt(rootPath, relDir string) error {
	f, err := os.Open(filepath.Join(rootPath, filepath.FromSlash(relDir), ".gitignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	return gp.parse(f, relDir)
}

func (gp *GitignoreParser) parse(r io.Reader, base string) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		gp.addRule(scanner.Text(), base)
	}
	return scanner.Err()
}

// AddPattern adds one rule relative to the project root.
func (gp *GitignoreParser) AddPattern(line string) {
	gp.addRule(line, "")
}

// Len returns the number of rules loaded.
func (gp *GitignoreParser) Len() int {
	return len(gp.rules)
}

func (gp *GitignoreParser) addRule(line, base string) {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	var rule gitignoreRule
	if strings.HasPrefix(line, "!") {
		rule.negate = true
		line = line[1:]
	} else if strings.HasPrefix(line, `\`) {
		// \# and \! escape a literal first character
		line = line[1:]
	}

	if strings.HasSuffix(line, "/") {
		rule.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if line == "" {
		return
	}

	// A slash anywhere but the end anchors the pattern to its .gitignore
	anchored := strings.Contains(line, "/")
	line = strings.TrimPrefix(line, "/")
	if !anchored {
		line = "**/" + line
	}
	if base != "" && base != "." {
		line = path.Join(base, line)
	}
	if !doublestar.ValidatePattern(line) {
		return
	}

	rule.glob = line
	gp.rules = append(gp.rules, rule)
}

// ShouldIgnore reports whether relPath is ignored. Paths inside an ignored
// directory are ignored too.
func (gp *GitignoreParser) ShouldIgnore(relPath string, isDir bool) bool {
	relPath = strings.TrimPrefix(filepath.ToSlash(relPath), "./")
	ignored := false
	for _, r := range gp.rules {
		if r.matches(relPath, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}

func (r gitignoreRule) matches(relPath string, isDir bool) bool {
	if (isDir || !r.dirOnly) && matchGlob(r.glob, relPath) {
		return true
	}
	// any ancestor directory matching the rule
	for dir := path.Dir(relPath); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if matchGlob(r.glob, dir) {
			return true
		}
	}
	return false
}

func matchGlob(glob, name string) bool {
	ok, err := doublestar.Match(glob, name)
	return err == nil && ok
}
