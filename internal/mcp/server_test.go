package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/ltv/internal/types"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(nil)
	t.Cleanup(func() { s.viewer.Close() })
	return s
}

func callReq(t *testing.T, params interface{}) *mcp.CallToolRequest {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	return &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: raw}}
}

// decodeResult unmarshals the JSON text content of a successful tool result.
func decodeResult(t *testing.T, res *mcp.CallToolResult, out interface{}) {
	t.Helper()
	require.False(t, res.IsError, "tool returned error: %+v", res.Content)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(text.Text), out))
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestHandleOpenFile(t *testing.T) {
	s := newTestServer(t)
	path := writeTemp(t, "f.txt", "Line 1\nLine 2\nLine 3")

	res, err := s.handleOpenFile(context.Background(), callReq(t, OpenFileParams{Path: path}))
	require.NoError(t, err)

	var info types.FileInfo
	decodeResult(t, res, &info)
	assert.Equal(t, path, info.Path)
	assert.Equal(t, 3, info.LineCount)
	assert.Equal(t, "UTF-8", info.Encoding)
}

func TestHandleOpenFileEmpty(t *testing.T) {
	s := newTestServer(t)
	path := writeTemp(t, "empty.txt", "")

	res, err := s.handleOpenFile(context.Background(), callReq(t, OpenFileParams{Path: path}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleGetFileContent(t *testing.T) {
	s := newTestServer(t)
	path := writeTemp(t, "f.txt", "alpha\nbeta\ngamma\n")

	res, err := s.handleGetFileContent(context.Background(), callReq(t, GetLinesParams{
		Path: path, StartLine: 0, EndLine: 2,
	}))
	require.NoError(t, err)

	var lines []string
	decodeResult(t, res, &lines)
	assert.Equal(t, []string{"alpha\n", "beta\n"}, lines)
}

func TestHandleGetLine(t *testing.T) {
	s := newTestServer(t)
	path := writeTemp(t, "f.txt", "alpha\nbeta\n")

	res, err := s.handleGetLine(context.Background(), callReq(t, GetLineParams{Path: path, LineNumber: 2}))
	require.NoError(t, err)

	var line string
	decodeResult(t, res, &line)
	assert.Equal(t, "beta\n", line)

	res, err = s.handleGetLine(context.Background(), callReq(t, GetLineParams{Path: path, LineNumber: 42}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleSearchFile(t *testing.T) {
	s := newTestServer(t)
	path := writeTemp(t, "f.txt", "Hello World, Hello Universe")

	res, err := s.handleSearchFile(context.Background(), callReq(t, SearchParams{
		Path: path, Query: "hello", Page: 1, PageSize: 50,
	}))
	require.NoError(t, err)

	var result types.SearchResult
	decodeResult(t, res, &result)
	assert.Equal(t, 2, result.TotalMatches)
	require.Len(t, result.Matches, 2)
	assert.Equal(t, int64(13), result.Matches[1].ByteOffset)
}

func TestHandleReplaceText(t *testing.T) {
	s := newTestServer(t)
	path := writeTemp(t, "f.txt", "old text\nold again\n")

	res, err := s.handleReplaceText(context.Background(), callReq(t, ReplaceParams{
		Path: path, SearchQuery: "old", ReplaceText: "new", ReplaceAll: true, CaseSensitive: true,
	}))
	require.NoError(t, err)

	var out struct {
		ReplacedLineCount int `json:"replaced_line_count"`
	}
	decodeResult(t, res, &out)
	assert.Equal(t, 2, out.ReplacedLineCount)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new text\nnew again\n", string(content))
}

func TestHandleCleanupSessions(t *testing.T) {
	s := newTestServer(t)
	path := writeTemp(t, "f.txt", "content\n")

	_, err := s.handleOpenFile(context.Background(), callReq(t, OpenFileParams{Path: path}))
	require.NoError(t, err)

	res, err := s.handleCleanupSessions(context.Background(), callReq(t, struct{}{}))
	require.NoError(t, err)

	var out struct {
		Released int `json:"released"`
	}
	decodeResult(t, res, &out)
	assert.Equal(t, 1, out.Released)
}

func TestHandleGetAvailableEncodings(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleGetAvailableEncodings(context.Background(), callReq(t, struct{}{}))
	require.NoError(t, err)

	var opts []types.EncodingOption
	decodeResult(t, res, &opts)
	require.Len(t, opts, 7)
	assert.Equal(t, "UTF-8", opts[0].Label)
}

func TestHandleDetectEncoding(t *testing.T) {
	s := newTestServer(t)
	path := writeTemp(t, "bom.txt", "\xEF\xBB\xBFdata")

	res, err := s.handleDetectEncoding(context.Background(), callReq(t, StatsParams{Path: path}))
	require.NoError(t, err)

	var out types.DetectionResult
	decodeResult(t, res, &out)
	assert.Equal(t, "UTF-8", out.Encoding)
	assert.True(t, out.HasBOM)
}

func TestHandleInvalidParams(t *testing.T) {
	s := newTestServer(t)

	req := &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: []byte("not json")}}
	res, err := s.handleOpenFile(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
