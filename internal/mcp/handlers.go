package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool parameter structs. Field names match the host's request surface.

type OpenFileParams struct {
	Path     string `json:"path"`
	Encoding string `json:"encoding,omitempty"`
}

type GetLinesParams struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Encoding  string `json:"encoding,omitempty"`
}

type GetLineParams struct {
	Path       string `json:"path"`
	LineNumber int    `json:"line_number"`
}

type StatsParams struct {
	Path string `json:"path"`
}

type SearchParams struct {
	Path          string `json:"path"`
	Query         string `json:"query"`
	CaseSensitive bool   `json:"case_sensitive"`
	UseRegex      bool   `json:"use_regex"`
	Page          int    `json:"page"`
	PageSize      int    `json:"page_size"`
}

type ReplaceParams struct {
	Path          string `json:"path"`
	SearchQuery   string `json:"search_query"`
	ReplaceText   string `json:"replace_text"`
	ReplaceAll    bool   `json:"replace_all"`
	CaseSensitive bool   `json:"case_sensitive"`
	Encoding      string `json:"encoding,omitempty"`
}

func unmarshalParams(req *mcp.CallToolRequest, out interface{}) error {
	if err := json.Unmarshal(req.Params.Arguments, out); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

func (s *Server) handleOpenFile(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params OpenFileParams
	if err := unmarshalParams(req, &params); err != nil {
		return createErrorResponse("open_file", err)
	}

	info, err := s.viewer.OpenFile(params.Path, params.Encoding)
	if err != nil {
		return createErrorResponse("open_file", err)
	}
	return createJSONResponse(info)
}

func (s *Server) handleGetFileContent(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params GetLinesParams
	if err := unmarshalParams(req, &params); err != nil {
		return createErrorResponse("get_file_content", err)
	}

	lines, err := s.viewer.GetFileContent(params.Path, params.StartLine, params.EndLine, params.Encoding)
	if err != nil {
		return createErrorResponse("get_file_content", err)
	}
	return createJSONResponse(lines)
}

func (s *Server) handleGetLine(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params GetLineParams
	if err := unmarshalParams(req, &params); err != nil {
		return createErrorResponse("get_line", err)
	}

	line, err := s.viewer.GetLine(params.Path, params.LineNumber)
	if err != nil {
		return createErrorResponse("get_line", err)
	}
	return createJSONResponse(line)
}

func (s *Server) handleGetFileStats(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params StatsParams
	if err := unmarshalParams(req, &params); err != nil {
		return createErrorResponse("get_file_stats", err)
	}

	info, err := s.viewer.GetFileStats(params.Path)
	if err != nil {
		return createErrorResponse("get_file_stats", err)
	}
	return createJSONResponse(info)
}

func (s *Server) handleSearchFile(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params SearchParams
	if err := unmarshalParams(req, &params); err != nil {
		return createErrorResponse("search_file", err)
	}

	result, err := s.viewer.SearchFile(ctx, params.Path, params.Query,
		params.CaseSensitive, params.UseRegex, params.Page, params.PageSize)
	if err != nil {
		return createErrorResponse("search_file", err)
	}
	return createJSONResponse(result)
}

func (s *Server) handleReplaceText(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params ReplaceParams
	if err := unmarshalParams(req, &params); err != nil {
		return createErrorResponse("replace_text", err)
	}

	count, err := s.viewer.ReplaceText(params.Path, params.SearchQuery, params.ReplaceText,
		params.ReplaceAll, params.CaseSensitive, params.Encoding)
	if err != nil {
		return createErrorResponse("replace_text", err)
	}
	return createJSONResponse(map[string]interface{}{
		"replaced_line_count": count,
	})
}

func (s *Server) handleCloseFile(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params StatsParams
	if err := unmarshalParams(req, &params); err != nil {
		return createErrorResponse("close_file", err)
	}

	s.viewer.CloseFile(params.Path)
	return createJSONResponse(map[string]interface{}{
		"success": true,
	})
}

func (s *Server) handleCleanupSessions(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	count := s.viewer.CleanupSessions()
	return createJSONResponse(map[string]interface{}{
		"released": count,
	})
}

func (s *Server) handleGetAvailableEncodings(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return createJSONResponse(s.viewer.AvailableEncodings())
}

func (s *Server) handleDetectEncoding(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params StatsParams
	if err := unmarshalParams(req, &params); err != nil {
		return createErrorResponse("detect_encoding", err)
	}

	result, err := s.viewer.DetectEncoding(params.Path)
	if err != nil {
		return createErrorResponse("detect_encoding", err)
	}
	return createJSONResponse(result)
}
