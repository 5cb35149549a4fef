package config

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// BuildArtifactDetector reads a project's build manifests to find the
// directories its toolchains write generated output to.
type BuildArtifactDetector struct {
	projectRoot string
}

func NewBuildArtifactDetector(projectRoot string) *BuildArtifactDetector {
	return &BuildArtifactDetector{projectRoot: projectRoot}
}

type packageJSON struct {
	Scripts map[string]string `json:"scripts"`
	Build   struct {
		OutDir string `json:"outDir"`
	} `json:"build"`
}

type tsconfigJSON struct {
	CompilerOptions struct {
		OutDir string `json:"outDir"`
	} `json:"compilerOptions"`
}

type cargoTOML struct {
	Build struct {
		TargetDir string `toml:"target-dir"`
	} `toml:"build"`
}

type pyprojectTOML struct {
	Tool struct {
		Setuptools struct {
			BuildDir string `toml:"build-dir"`
		} `toml:"setuptools"`
		Poetry struct {
			Build struct {
				TargetDir string `toml:"target-dir"`
			} `toml:"build"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// DetectOutputDirectories returns exclusion globs such as "**/dist/**" for
// every output directory it can find.
func (d *BuildArtifactDetector) DetectOutputDirectories() []string {
	var dirs []string
	dirs = append(dirs, d.javaScriptOutputs()...)
	dirs = append(dirs, d.rustOutputs()...)
	dirs = append(dirs, d.pythonOutputs()...)
	dirs = append(dirs, d.jvmOutputs()...)

	patterns := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if p := outputPattern(dir); p != "" {
			patterns = append(patterns, p)
		}
	}
	return DeduplicatePatterns(patterns)
}

func (d *BuildArtifactDetector) javaScriptOutputs() []string {
	var dirs []string

	var pkg packageJSON
	if d.readJSON("package.json", &pkg) {
		dirs = append(dirs, pkg.Build.OutDir)
		for _, script := range pkg.Scripts {
			dirs = append(dirs, outDirFlag(script))
		}
	}

	var ts tsconfigJSON
	if d.readJSON("tsconfig.json", &ts) {
		dirs = append(dirs, ts.CompilerOptions.OutDir)
	}
	return dirs
}

func (d *BuildArtifactDetector) rustOutputs() []string {
	var cargo cargoTOML
	if !d.readTOML("Cargo.toml", &cargo) {
		return nil
	}
	if cargo.Build.TargetDir != "" {
		return []string{cargo.Build.TargetDir}
	}
	return []string{"target"}
}

func (d *BuildArtifactDetector) pythonOutputs() []string {
	var py pyprojectTOML
	if !d.readTOML("pyproject.toml", &py) {
		return nil
	}
	return []string{"build", "dist", py.Tool.Setuptools.BuildDir, py.Tool.Poetry.Build.TargetDir}
}

func (d *BuildArtifactDetector) jvmOutputs() []string {
	var dirs []string
	if d.exists("pom.xml") {
		dirs = append(dirs, "target")
	}
	if d.exists("build.gradle") || d.exists("build.gradle.kts") {
		dirs = append(dirs, "build")
	}
	return dirs
}

func (d *BuildArtifactDetector) readJSON(name string, v any) bool {
	data, err := os.ReadFile(filepath.Join(d.projectRoot, name))
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func (d *BuildArtifactDetector) readTOML(name string, v any) bool {
	data, err := os.ReadFile(filepath.Join(d.projectRoot, name))
	if err != nil {
		return false
	}
	return toml.Unmarshal(data, v) == nil
}

func (d *BuildArtifactDetector) exists(name string) bool {
	_, err := os.Stat(filepath.Join(d.projectRoot, name))
	return err == nil
}

// outDirFlag extracts the value of --outDir / -outDir from a build script.
func outDirFlag(script string) string {
	parts := strings.Fields(script)
	for i, part := range parts {
		if value, ok := strings.CutPrefix(part, "--outDir="); ok {
			return strings.Trim(value, "\"'")
		}
		if (part == "--outDir" || part == "-outDir") && i+1 < len(parts) {
			return strings.Trim(parts[i+1], "\"'")
		}
	}
	return ""
}

// outputPattern turns a relative directory into a "**/<dir>/**" glob.
// Absolute paths and paths escaping the project are ignored.
func outputPattern(dir string) string {
	dir = strings.TrimSpace(filepath.ToSlash(dir))
	if dir == "" || strings.HasPrefix(dir, "/") {
		return ""
	}
	dir = path.Clean(dir)
	if dir == "." || dir == ".." || strings.HasPrefix(dir, "../") {
		return ""
	}
	return "**/" + dir + "/**"
}

// DeduplicatePatterns removes duplicate patterns, keeping first occurrences.
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]struct{}, len(patterns))
	result := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		result = append(result, p)
	}
	return result
}
