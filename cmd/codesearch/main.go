package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/standardbeagle/codesearch/internal/config"
	"github.com/standardbeagle/codesearch/internal/types"
	"github.com/standardbeagle/codesearch/internal/version"

	"github.com/urfave/cli/v2"
)

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	roots := c.StringSlice("root")

	// The config directory defaults to the first root so `--root ../v8`
	// picks up ../v8/.codesearch.kdl
	configDir := c.String("config")
	if configDir == "" && len(roots) > 0 {
		configDir = roots[0]
	}

	cfg, err := config.LoadWithRoot(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configDir, err)
	}

	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	if len(roots) > 0 {
		projects, err := projectsFromRoots(roots)
		if err != nil {
			return nil, err
		}
		cfg.Projects = projects
		if cfg.Index.DetectBuildArtifacts {
			cfg.EnrichExclusionsWithBuildArtifacts()
		}
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// projectsFromRoots turns --root values into projects named after their
// directory. Repeated directory names get a numeric suffix.
func projectsFromRoots(roots []string) ([]config.Project, error) {
	projects := make([]config.Project, 0, len(roots))
	seen := make(map[string]int, len(roots))
	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
		}
		name := filepath.Base(absRoot)
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s-%d", name, n)
		}
		projects = append(projects, config.Project{Root: absRoot, Name: name})
	}
	return projects, nil
}

// parseSpanArg parses "offset:length" or a bare offset (length 0).
func parseSpanArg(arg string) (types.FilePositionSpan, error) {
	offsetStr, lengthStr, hasLength := strings.Cut(arg, ":")
	offset, err := strconv.ParseInt(offsetStr, 10, 32)
	if err != nil || offset < 0 {
		return types.FilePositionSpan{}, fmt.Errorf("invalid offset in %q", arg)
	}
	var length int64
	if hasLength {
		length, err = strconv.ParseInt(lengthStr, 10, 32)
		if err != nil || length < 0 {
			return types.FilePositionSpan{}, fmt.Errorf("invalid length in %q", arg)
		}
	}
	return types.FilePositionSpan{Position: int32(offset), Length: int32(length)}, nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:                   "codesearch",
		Usage:                  "Parallel in-memory search over large source trees",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Directory holding .codesearch.kdl (default: first --root or current directory)",
			},
			&cli.StringSliceFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root to load, repeatable (overrides configured projects)",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Include files matching glob patterns (e.g., --include '*.go' --include 'src/**/*.ts')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns (e.g., --exclude '**/third_party/**')",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "search",
				Aliases:   []string{"s"},
				Usage:     "Search file contents",
				ArgsUsage: "<pattern>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "match-case",
						Aliases: []string{"m"},
						Usage:   "Case sensitive matching",
					},
					&cli.BoolFlag{
						Name:    "word",
						Aliases: []string{"w"},
						Usage:   "Match whole words only",
					},
					&cli.BoolFlag{
						Name:    "regex",
						Aliases: []string{"e"},
						Usage:   "Treat pattern as an RE2 regular expression",
					},
					&cli.StringFlag{
						Name:    "filter",
						Aliases: []string{"f"},
						Usage:   "File path globs, ';' separated, '!' excludes (e.g. \"*.cc;*.h;!third_party/**\")",
					},
					&cli.IntFlag{
						Name:    "max",
						Aliases: []string{"n"},
						Usage:   "Maximum results, 0 for unbounded (default from configuration)",
						Value:   -1,
					},
					&cli.BoolFlag{
						Name:  "symlinks",
						Usage: "Also search files reached through symbolic links",
					},
					&cli.BoolFlag{
						Name:    "extracts",
						Aliases: []string{"x"},
						Usage:   "Print the matching line of every result",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output as JSON",
					},
				},
				Action: searchCommand,
			},
			{
				Name:      "files",
				Usage:     "Search relative file paths",
				ArgsUsage: "<pattern>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "match-case",
						Aliases: []string{"m"},
						Usage:   "Case sensitive matching",
					},
					&cli.BoolFlag{
						Name:    "regex",
						Aliases: []string{"e"},
						Usage:   "Treat pattern as an RE2 regular expression",
					},
					&cli.StringFlag{
						Name:    "filter",
						Aliases: []string{"f"},
						Usage:   "File path globs applied before matching",
					},
					&cli.IntFlag{
						Name:    "max",
						Aliases: []string{"n"},
						Usage:   "Maximum files, 0 for unbounded",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output as JSON",
					},
				},
				Action: filesCommand,
			},
			{
				Name:      "extract",
				Usage:     "Print the lines around byte positions of a file",
				ArgsUsage: "<file> <offset:length>...",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max-length",
						Usage: "Longest extract in bytes (default from configuration)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output as JSON",
					},
				},
				Action: extractCommand,
			},
			{
				Name:  "stats",
				Usage: "Load the projects and describe the snapshot",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output as JSON",
					},
				},
				Action: statsCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the search tools over MCP on stdio",
				Action: mcpCommand,
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
