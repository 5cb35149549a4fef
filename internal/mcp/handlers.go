package mcp

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/codesearch/internal/config"
	"github.com/standardbeagle/codesearch/internal/core"
	"github.com/standardbeagle/codesearch/internal/debug"
	cserrors "github.com/standardbeagle/codesearch/internal/errors"
	"github.com/standardbeagle/codesearch/internal/search"
	"github.com/standardbeagle/codesearch/internal/types"
)

// SearchCodeParams are the search_code arguments.
type SearchCodeParams struct {
	Pattern          string `json:"pattern"`
	Regex            bool   `json:"regex"`
	MatchCase        bool   `json:"match_case"`
	WholeWord        bool   `json:"whole_word"`
	FilePathPattern  string `json:"file_path_pattern"`
	MaxResults       *int   `json:"max_results"`
	IncludeSymlinks  bool   `json:"include_symlinks"`
	RequireFileMatch bool   `json:"require_file_match"`
	IncludeExtracts  bool   `json:"include_extracts"`
	ClientID         string `json:"client_id"`
}

// SearchCodeResponse is the search_code result. A superseded query carries
// no results.
type SearchCodeResponse struct {
	Results           *search.ResultTree             `json:"results,omitempty"`
	Extracts          map[string][]types.FileExtract `json:"extracts,omitempty"`
	HitCount          int                            `json:"hit_count"`
	SearchedFileCount int                            `json:"searched_file_count"`
	TotalFileCount    int                            `json:"total_file_count"`
	CapReached        bool                           `json:"cap_reached"`
	Cancelled         bool                           `json:"cancelled"`
	Superseded        bool                           `json:"superseded,omitempty"`
	PieceErrors       []string                       `json:"piece_errors,omitempty"`
	Generation        uint64                         `json:"generation"`
	DurationMs        float64                        `json:"duration_ms"`
}

type FileExtractsParams struct {
	File             string                   `json:"file"`
	Positions        []types.FilePositionSpan `json:"positions"`
	MaxExtractLength int                      `json:"max_extract_length"`
}

type FileExtractsResponse struct {
	File     string              `json:"file"`
	Extracts []types.FileExtract `json:"extracts"`
}

type FilePathsParams struct {
	Pattern         string `json:"pattern"`
	Regex           bool   `json:"regex"`
	MatchCase       bool   `json:"match_case"`
	FilePathPattern string `json:"file_path_pattern"`
	MaxResults      *int   `json:"max_results"`
}

type FilePathsResponse struct {
	Results        *search.ResultTree `json:"results"`
	HitCount       int                `json:"hit_count"`
	TotalFileCount int                `json:"total_file_count"`
	CapReached     bool               `json:"cap_reached"`
	DurationMs     float64            `json:"duration_ms"`
}

type DatabaseStatisticsParams struct {
	ForceGC bool `json:"force_gc"`
}

type RegisterFileParams struct {
	File string `json:"file"`
}

// RegisterFileResponse answers register_file and unregister_file. Changed
// is false when the call left the project list as it was.
type RegisterFileResponse struct {
	Project    string  `json:"project,omitempty"`
	Root       string  `json:"root,omitempty"`
	Changed    bool    `json:"changed"`
	FileCount  int     `json:"file_count"`
	Generation uint64  `json:"generation"`
	DurationMs float64 `json:"duration_ms"`
}

type CancelSearchParams struct {
	ClientID string `json:"client_id"`
}

type CancelSearchResponse struct {
	ClientID  string `json:"client_id"`
	Cancelled bool   `json:"cancelled"`
}

func (s *Server) maxResults(requested *int) int {
	if requested != nil {
		return *requested
	}
	return s.cfg.Search.MaxResults
}

func clientID(id string) string {
	if id == "" {
		return DefaultClientID
	}
	return id
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func (s *Server) handleSearchCode(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params SearchCodeParams
	if err := parseArguments(req, &params); err != nil {
		return nil, err
	}

	q := search.Query{
		Pattern:          params.Pattern,
		Regex:            params.Regex,
		MatchCase:        params.MatchCase,
		WholeWord:        params.WholeWord,
		FilePathPattern:  params.FilePathPattern,
		MaxResults:       s.maxResults(params.MaxResults),
		IncludeSymLinks:  params.IncludeSymlinks,
		RequireFileMatch: params.RequireFileMatch,
	}

	db := s.holder.Load()
	res, superseded, err := s.engine.ExecuteForClient(ctx, clientID(params.ClientID), q, db)
	if err != nil {
		return nil, err
	}
	if superseded {
		return createJSONResponse(SearchCodeResponse{Superseded: true, Cancelled: true, Generation: db.Generation()})
	}

	resp := SearchCodeResponse{
		Results:           res.Tree,
		HitCount:          res.HitCount,
		SearchedFileCount: res.SearchedFileCount,
		TotalFileCount:    res.TotalFileCount,
		CapReached:        res.CapReached,
		Cancelled:         res.Cancelled,
		Generation:        db.Generation(),
		DurationMs:        durationMs(res.Duration),
	}
	for _, pe := range res.PieceErrors {
		resp.PieceErrors = append(resp.PieceErrors, pe.Error())
	}
	if params.IncludeExtracts {
		if resp.Extracts, err = s.extractAll(ctx, db, res.Tree); err != nil {
			return nil, err
		}
	}
	return createJSONResponse(resp)
}

// extractAll builds extracts for every file of a result tree, keyed by full
// path.
func (s *Server) extractAll(ctx context.Context, db *core.FileDatabase, tree *search.ResultTree) (map[string][]types.FileExtract, error) {
	out := make(map[string][]types.FileExtract, tree.FileCount())
	for _, p := range tree.Projects {
		for _, f := range p.Files {
			extracts, err := s.extracts.Extract(ctx, db, f.Path, f.Spans, s.cfg.Search.MaxExtractLength)
			if err != nil {
				return nil, err
			}
			out[f.Path] = extracts
		}
	}
	return out, nil
}

func (s *Server) handleGetFileExtracts(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params FileExtractsParams
	if err := parseArguments(req, &params); err != nil {
		return nil, err
	}
	maxLen := params.MaxExtractLength
	if maxLen <= 0 {
		maxLen = s.cfg.Search.MaxExtractLength
	}

	extracts, err := s.extracts.Extract(ctx, s.holder.Load(), params.File, params.Positions, maxLen)
	if err != nil {
		return nil, err
	}
	return createJSONResponse(FileExtractsResponse{File: params.File, Extracts: extracts})
}

func (s *Server) handleSearchFilePaths(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params FilePathsParams
	if err := parseArguments(req, &params); err != nil {
		return nil, err
	}

	res, err := s.engine.SearchFilePaths(ctx, search.Query{
		Pattern:         params.Pattern,
		Regex:           params.Regex,
		MatchCase:       params.MatchCase,
		FilePathPattern: params.FilePathPattern,
		MaxResults:      s.maxResults(params.MaxResults),
	}, s.holder.Load())
	if err != nil {
		return nil, err
	}
	return createJSONResponse(FilePathsResponse{
		Results:        res.Tree,
		HitCount:       res.HitCount,
		TotalFileCount: res.TotalFileCount,
		CapReached:     res.CapReached,
		DurationMs:     durationMs(res.Duration),
	})
}

func (s *Server) handleGetDatabaseStatistics(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params DatabaseStatisticsParams
	if err := parseArguments(req, &params); err != nil {
		return nil, err
	}
	if params.ForceGC {
		start := time.Now()
		runtime.GC()
		debug.LogMCP("forced garbage collection in %v\n", time.Since(start))
	}
	return createJSONResponse(s.holder.Statistics())
}

var errNoRegistry = errors.New("project registration is not available")

func (s *Server) handleRegisterFile(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.changeProjects(ctx, req, func(ctx context.Context, path string) (config.Project, bool, error) {
		return s.registry.Register(ctx, path)
	})
}

func (s *Server) handleUnregisterFile(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.changeProjects(ctx, req, func(ctx context.Context, path string) (config.Project, bool, error) {
		return s.registry.Unregister(ctx, path)
	})
}

func (s *Server) changeProjects(ctx context.Context, req *mcp.CallToolRequest, change func(context.Context, string) (config.Project, bool, error)) (*mcp.CallToolResult, error) {
	var params RegisterFileParams
	if err := parseArguments(req, &params); err != nil {
		return nil, err
	}
	if params.File == "" {
		return nil, cserrors.NewInvalidQueryError("file", errors.New("file is required"))
	}
	if s.registry == nil {
		return nil, errNoRegistry
	}

	start := time.Now()
	p, changed, err := change(ctx, params.File)
	if err != nil {
		return nil, err
	}
	db := s.holder.Load()
	return createJSONResponse(RegisterFileResponse{
		Project:    p.Name,
		Root:       p.Root,
		Changed:    changed,
		FileCount:  db.FileCount(),
		Generation: db.Generation(),
		DurationMs: durationMs(time.Since(start)),
	})
}

func (s *Server) handleCancelSearch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params CancelSearchParams
	if err := parseArguments(req, &params); err != nil {
		return nil, err
	}
	id := clientID(params.ClientID)
	return createJSONResponse(CancelSearchResponse{ClientID: id, Cancelled: s.engine.Registry().Cancel(id)})
}
