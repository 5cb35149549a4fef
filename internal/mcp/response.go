package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	cserrors "github.com/standardbeagle/codesearch/internal/errors"
)

// ErrorResponse is the JSON body of every IsError result.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorType string `json:"error_type,omitempty"`
	Operation string `json:"operation"`
}

func createJSONResponse(data any) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
	}, nil
}

// createErrorResponse reports a tool failure inside the result, flagged with
// IsError, so the client sees it instead of a protocol error.
func createErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	result, marshalErr := createJSONResponse(ErrorResponse{
		Success:   false,
		Error:     err.Error(),
		ErrorType: string(cserrors.TypeOf(err)),
		Operation: operation,
	})
	if marshalErr != nil {
		return nil, marshalErr
	}
	result.IsError = true
	return result, nil
}

func parseArguments(req *mcp.CallToolRequest, params any) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, params); err != nil {
		return cserrors.NewInvalidQueryError("arguments", err)
	}
	return nil
}
