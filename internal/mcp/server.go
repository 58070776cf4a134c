// Package mcp exposes the viewer's operations to the host UI as MCP tools
// over stdio. One tool per operation; parameters and results are JSON.
package mcp

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/ltv/internal/config"
	"github.com/standardbeagle/ltv/internal/session"
	"github.com/standardbeagle/ltv/internal/version"
)

// Server wires the viewer facade to an MCP stdio server.
type Server struct {
	server *mcp.Server
	viewer *session.Viewer
}

// NewServer creates the MCP server and registers every viewer tool.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		viewer: session.NewViewer(cfg),
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "ltv-mcp-server",
		Version: version.Version,
	}, nil)

	s.registerTools()
	return s
}

// Viewer exposes the facade, mainly for tests.
func (s *Server) Viewer() *session.Viewer {
	return s.viewer
}

// Run serves MCP over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.viewer.Close()
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	pathProp := func(desc string) *jsonschema.Schema {
		return &jsonschema.Schema{Type: "string", Description: desc}
	}

	s.server.AddTool(&mcp.Tool{
		Name:        "open_file",
		Description: "Open a text file for viewing, rebuilding any cached session. Returns path, size, encoding and line count.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path":     pathProp("Absolute path of the file to open"),
				"encoding": pathProp("Encoding label (e.g. UTF-8, GBK); defaults to UTF-8"),
			},
			Required: []string{"path"},
		},
	}, s.handleOpenFile)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_file_content",
		Description: "Get decoded lines [start_line, end_line) of an open file, 0-based, at most 1000 per call.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path":       pathProp("File path"),
				"start_line": {Type: "integer", Description: "First line (0-based, inclusive)"},
				"end_line":   {Type: "integer", Description: "End line (exclusive)"},
				"encoding":   pathProp("Encoding label for a session opened on demand"),
			},
			Required: []string{"path", "start_line", "end_line"},
		},
	}, s.handleGetFileContent)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_line",
		Description: "Get one line of a file by 1-based line number.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path":        pathProp("File path"),
				"line_number": {Type: "integer", Description: "Line number (1-based)"},
			},
			Required: []string{"path", "line_number"},
		},
	}, s.handleGetLine)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_file_stats",
		Description: "Get path, size, encoding and line count for a file, opening a session on demand.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": pathProp("File path"),
			},
			Required: []string{"path"},
		},
	}, s.handleGetFileStats)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_file",
		Description: "Search a file for a literal or regex query. Returns the total match count and one page of matches enriched with line content.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path":           pathProp("File path"),
				"query":          pathProp("Search query"),
				"case_sensitive": {Type: "boolean", Description: "Match case exactly"},
				"use_regex":      {Type: "boolean", Description: "Treat query as a regular expression"},
				"page":           {Type: "integer", Description: "Result page (1-based)"},
				"page_size":      {Type: "integer", Description: "Matches per page"},
			},
			Required: []string{"path", "query"},
		},
	}, s.handleSearchFile)

	s.server.AddTool(&mcp.Tool{
		Name:        "replace_text",
		Description: "Replace text across a whole file (streaming, encoding-aware). Returns the number of lines changed.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path":           pathProp("File path"),
				"search_query":   pathProp("Text to find"),
				"replace_text":   pathProp("Replacement text"),
				"replace_all":    {Type: "boolean", Description: "Replace every occurrence (false: only the first)"},
				"case_sensitive": {Type: "boolean", Description: "Match case exactly"},
				"encoding":       pathProp("Encoding label; defaults to UTF-8"),
			},
			Required: []string{"path", "search_query", "replace_text"},
		},
	}, s.handleReplaceText)

	s.server.AddTool(&mcp.Tool{
		Name:        "close_file",
		Description: "Close a file, releasing its session and memory map.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": pathProp("File path"),
			},
			Required: []string{"path"},
		},
	}, s.handleCloseFile)

	s.server.AddTool(&mcp.Tool{
		Name:        "cleanup_sessions",
		Description: "Release every cached file session. Returns how many were released.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleCleanupSessions)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_available_encodings",
		Description: "List the encodings the viewer can decode, as label/name pairs.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleGetAvailableEncodings)

	s.server.AddTool(&mcp.Tool{
		Name:        "detect_encoding",
		Description: "Detect a file's character encoding from a byte sample. Returns encoding, confidence and BOM presence.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": pathProp("File path"),
			},
			Required: []string{"path"},
		},
	}, s.handleDetectEncoding)
}
