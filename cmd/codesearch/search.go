package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/standardbeagle/codesearch/internal/config"
	"github.com/standardbeagle/codesearch/internal/core"
	"github.com/standardbeagle/codesearch/internal/extract"
	"github.com/standardbeagle/codesearch/internal/indexing"
	"github.com/standardbeagle/codesearch/internal/search"
	"github.com/standardbeagle/codesearch/internal/types"

	"github.com/urfave/cli/v2"
)

// session is what every one-shot command needs: the configuration, a
// freshly loaded snapshot and the services that read it.
type session struct {
	cfg      *config.Config
	db       *core.FileDatabase
	engine   *search.Engine
	extracts *extract.Service
}

func openSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, err
	}

	db, err := indexing.NewLoader(cfg).Load(c.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}

	return &session{
		cfg: cfg,
		db:  db,
		engine: search.NewEngine(search.Options{
			Parallelism:        cfg.Performance.Parallelism,
			AlgorithmCacheSize: cfg.Search.AlgorithmCacheSize,
		}),
		extracts: extract.NewService(extract.Options{
			CacheSize:   cfg.Search.ExtractCacheSize,
			Parallelism: cfg.Performance.Parallelism,
		}),
	}, nil
}

// interruptContext is cancelled on SIGINT or SIGTERM so a long search stops
// and still prints what it found.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// searchOutput is the --json form of a content search.
type searchOutput struct {
	Results           *search.ResultTree             `json:"results"`
	Extracts          map[string][]types.FileExtract `json:"extracts,omitempty"`
	HitCount          int                            `json:"hit_count"`
	SearchedFileCount int                            `json:"searched_file_count"`
	TotalFileCount    int                            `json:"total_file_count"`
	CapReached        bool                           `json:"cap_reached,omitempty"`
	Cancelled         bool                           `json:"cancelled,omitempty"`
	PieceErrors       []string                       `json:"piece_errors,omitempty"`
	DurationMs        int64                          `json:"duration_ms"`
}

func searchCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("usage: codesearch search <pattern>")
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}

	maxResults := c.Int("max")
	if maxResults < 0 {
		maxResults = s.cfg.Search.MaxResults
	}
	q := search.Query{
		Pattern:          c.Args().First(),
		Regex:            c.Bool("regex"),
		MatchCase:        c.Bool("match-case"),
		WholeWord:        c.Bool("word"),
		FilePathPattern:  c.String("filter"),
		MaxResults:       maxResults,
		IncludeSymLinks:  c.Bool("symlinks"),
		RequireFileMatch: c.String("filter") != "",
	}

	ctx, cancel := interruptContext(c.Context)
	defer cancel()

	res, err := s.engine.Execute(ctx, q, s.db)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var extracts map[string][]types.FileExtract
	if c.Bool("extracts") {
		// extraction runs after an interrupt too, so use the parent context
		if extracts, err = s.extractTree(c.Context, res.Tree); err != nil {
			return err
		}
	}

	w := c.App.Writer
	if c.Bool("json") {
		out := searchOutput{
			Results:           res.Tree,
			Extracts:          extracts,
			HitCount:          res.HitCount,
			SearchedFileCount: res.SearchedFileCount,
			TotalFileCount:    res.TotalFileCount,
			CapReached:        res.CapReached,
			Cancelled:         res.Cancelled,
			DurationMs:        res.Duration.Milliseconds(),
		}
		for _, pe := range res.PieceErrors {
			out.PieceErrors = append(out.PieceErrors, pe.Error())
		}
		return writeJSON(w, out)
	}

	for _, p := range res.Tree.Projects {
		for _, f := range p.Files {
			if extracts == nil {
				for _, span := range f.Spans {
					fmt.Fprintf(w, "%s:%s\n", f.Path, span)
				}
				continue
			}
			for _, e := range extracts[f.Path] {
				fmt.Fprintf(w, "%s:%d:%d: %s\n", f.Path, e.LineNumber+1, e.ColumnNumber+1, e.Text)
			}
		}
	}
	for _, pe := range res.PieceErrors {
		fmt.Fprintf(c.App.ErrWriter, "Warning: %v\n", pe)
	}

	summary := fmt.Sprintf("%d matches in %d files (%d of %d files searched) in %v",
		res.HitCount, res.Tree.FileCount(), res.SearchedFileCount, res.TotalFileCount, res.Duration)
	switch {
	case res.Cancelled:
		summary += ", interrupted"
	case res.CapReached:
		summary += fmt.Sprintf(", stopped at --max %d", q.MaxResults)
	}
	fmt.Fprintln(c.App.ErrWriter, summary)
	return nil
}

// extractTree builds the extracts of every matching file, keyed by full path.
func (s *session) extractTree(ctx context.Context, tree *search.ResultTree) (map[string][]types.FileExtract, error) {
	out := make(map[string][]types.FileExtract, tree.FileCount())
	for _, p := range tree.Projects {
		for _, f := range p.Files {
			extracts, err := s.extracts.Extract(ctx, s.db, f.Path, f.Spans, s.cfg.Search.MaxExtractLength)
			if err != nil {
				return nil, err
			}
			out[f.Path] = extracts
		}
	}
	return out, nil
}

func filesCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("usage: codesearch files <pattern>")
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}

	res, err := s.engine.SearchFilePaths(c.Context, search.Query{
		Pattern:         c.Args().First(),
		Regex:           c.Bool("regex"),
		MatchCase:       c.Bool("match-case"),
		FilePathPattern: c.String("filter"),
		MaxResults:      c.Int("max"),
	}, s.db)
	if err != nil {
		return fmt.Errorf("file search failed: %w", err)
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, res)
	}
	for _, p := range res.Tree.Projects {
		for _, f := range p.Files {
			fmt.Fprintln(c.App.Writer, f.Path)
		}
	}
	fmt.Fprintf(c.App.ErrWriter, "%d of %d files in %v\n", res.HitCount, res.TotalFileCount, res.Duration)
	return nil
}

func extractCommand(c *cli.Context) error {
	if c.NArg() < 2 {
		return errors.New("usage: codesearch extract <file> <offset:length>...")
	}

	file := c.Args().First()
	positions := make([]types.FilePositionSpan, 0, c.NArg()-1)
	for _, arg := range c.Args().Tail() {
		span, err := parseSpanArg(arg)
		if err != nil {
			return err
		}
		positions = append(positions, span)
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}

	maxLen := c.Int("max-length")
	if maxLen <= 0 {
		maxLen = s.cfg.Search.MaxExtractLength
	}
	extracts, err := s.extracts.Extract(c.Context, s.db, file, positions, maxLen)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, extracts)
	}
	for _, e := range extracts {
		fmt.Fprintf(c.App.Writer, "%d:%d: %s\n", e.LineNumber+1, e.ColumnNumber+1, e.Text)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}

	stats := core.ComputeStatistics(s.db)
	w := c.App.Writer
	if c.Bool("json") {
		return writeJSON(w, stats)
	}

	fmt.Fprintf(w, "Projects:   %d\n", stats.ProjectCount)
	for _, p := range s.db.Projects() {
		fmt.Fprintf(w, "  %-20s %s\n", p.Name, p.Root)
	}
	fmt.Fprintf(w, "Files:      %d (%d searchable, %d skipped)\n", stats.FileCount, stats.SearchableFileCount, s.db.SkippedFileCount())
	fmt.Fprintf(w, "Bytes:      %d\n", stats.TotalBytes)
	fmt.Fprintf(w, "Pieces:     %d\n", stats.PieceCount)
	if len(stats.LargeFiles) > 0 {
		fmt.Fprintf(w, "Large files:\n")
		for _, f := range stats.LargeFiles {
			fmt.Fprintf(w, "  %10d  %s\n", f.Bytes, f.Path)
		}
	}
	if len(stats.Extensions) > 0 {
		fmt.Fprintf(w, "Extensions:\n")
		for _, e := range stats.Extensions {
			fmt.Fprintf(w, "  %-10s %6d files %12d bytes\n", e.Extension, e.FileCount, e.Bytes)
		}
	}
	return nil
}
