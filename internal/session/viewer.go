package session

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/standardbeagle/ltv/internal/config"
	"github.com/standardbeagle/ltv/internal/encoding"
	lerrors "github.com/standardbeagle/ltv/internal/errors"
	"github.com/standardbeagle/ltv/internal/lineindex"
	"github.com/standardbeagle/ltv/internal/replace"
	"github.com/standardbeagle/ltv/internal/search"
	"github.com/standardbeagle/ltv/internal/types"
	"github.com/standardbeagle/ltv/internal/window"
)

const (
	// tmpReplaceSuffix marks the in-progress output of a replace.
	tmpReplaceSuffix = ".tmp_replace"

	// lineScanForward bounds the forward scan when locating the line
	// around a match in a sparsely indexed file.
	lineScanForward = 10_000

	// lineScanBackward bounds the backward scan for the same case; a line
	// longer than this yields a truncated-but-usable anchor.
	lineScanBackward = 65536
)

// Viewer is the request facade: every host-visible operation goes through
// here. It owns the session cache.
type Viewer struct {
	cfg   *config.Config
	cache *Cache
}

// NewViewer creates a viewer with the given configuration (nil for
// defaults).
func NewViewer(cfg *config.Config) *Viewer {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Viewer{
		cfg:   cfg,
		cache: NewCache(),
	}
}

// Close releases all sessions and stops the cache watcher.
func (v *Viewer) Close() error {
	return v.cache.Close()
}

func encodingFor(label string) *encoding.Encoding {
	if label == "" {
		return encoding.UTF8
	}
	return encoding.ForLabel(label)
}

func (v *Viewer) fileInfo(path string, s *Session) types.FileInfo {
	info := types.FileInfo{
		Path:     path,
		Size:     s.Window().Len(),
		Encoding: s.Window().Encoding().Name(),
	}
	s.Index(func(ix *lineindex.Index) {
		info.LineCount = ix.TotalLines()
	})
	return info
}

// OpenFile discards any prior session for path, builds a fresh one and
// returns its file info.
func (v *Viewer) OpenFile(path, encodingLabel string) (types.FileInfo, error) {
	s, err := v.cache.Replace(path, encodingFor(encodingLabel))
	if err != nil {
		return types.FileInfo{}, err
	}
	return v.fileInfo(path, s), nil
}

// GetFileStats returns file info for path, opening a session on demand.
// A session whose file content changed since creation is rebuilt first.
func (v *Viewer) GetFileStats(path string) (types.FileInfo, error) {
	if s, ok := v.cache.Get(path); ok {
		if fp, err := Fingerprint(path); err == nil && fp != s.Fingerprint() {
			if fresh, err := v.cache.Replace(path, s.Window().Encoding()); err == nil {
				return v.fileInfo(path, fresh), nil
			}
		}
	}

	s, err := v.cache.GetOrCreate(path, encoding.UTF8)
	if err != nil {
		return types.FileInfo{}, err
	}
	return v.fileInfo(path, s), nil
}

// GetFileContent returns decoded lines [startLine, endLine) using 0-based
// numbering, capped at the configured per-request limit. Fewer lines come
// back at end of file.
func (v *Viewer) GetFileContent(path string, startLine, endLine int, encodingLabel string) ([]string, error) {
	s, err := v.cache.GetOrCreate(path, encodingFor(encodingLabel))
	if err != nil {
		return nil, err
	}

	if startLine < 0 {
		startLine = 0
	}
	maxEnd := startLine + v.cfg.Limits.MaxLinesPerRequest
	if endLine > maxEnd {
		endLine = maxEnd
	}

	var lines []string
	s.Index(func(ix *lineindex.Index) {
		for n := startLine; n < endLine; n++ {
			start, end, ok := ix.ResolveLine(n, s.Window())
			if !ok {
				break
			}
			lines = append(lines, s.Window().DecodedRange(start, end))
		}
	})
	return lines, nil
}

// GetLine returns the decoded content of a 1-based line number.
func (v *Viewer) GetLine(path string, lineNumber int) (string, error) {
	s, err := v.cache.GetOrCreate(path, encoding.UTF8)
	if err != nil {
		return "", err
	}

	lineIdx := lineNumber - 1
	var (
		content string
		rangeOK bool
		total   int
	)
	s.Index(func(ix *lineindex.Index) {
		total = ix.TotalLines()
		start, end, ok := ix.ResolveLine(lineIdx, s.Window())
		if !ok {
			return
		}
		rangeOK = true
		content = s.Window().DecodedRange(start, end)
	})

	if !rangeOK {
		return "", lerrors.NewRangeError(lineNumber, total)
	}
	return content, nil
}

// SearchFile counts all matches, then fetches one page and enriches each
// match with its line. Cancellation of ctx stops the underlying streams.
func (v *Viewer) SearchFile(ctx context.Context, path, query string, caseSensitive, useRegex bool, page, pageSize int) (types.SearchResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > v.cfg.Limits.MaxPageSize {
		pageSize = v.cfg.Limits.MaxPageSize
	}

	result := types.SearchResult{Page: page, PageSize: pageSize}

	s, err := v.cache.GetOrCreate(path, encoding.UTF8)
	if err != nil {
		return result, err
	}

	engine := search.NewEngine(v.cfg.Performance.SearchWorkers)
	engine.SetQuery(search.Query{Text: query, UseRegex: useRegex, CaseSensitive: caseSensitive})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Count pass.
	countMsgs := make(chan search.Message, v.cfg.Performance.ChannelBuffer)
	engine.CountMatches(ctx, s.Window(), countMsgs)

countLoop:
	for {
		select {
		case m := <-countMsgs:
			switch msg := m.(type) {
			case search.CountResult:
				result.TotalMatches += msg.Count
			case search.Done:
				break countLoop
			case search.Error:
				return result, lerrors.NewSearchError(query, fmt.Errorf("%s", msg.Message))
			}
		case <-ctx.Done():
			return result, ctx.Err()
		}
	}

	if result.TotalMatches == 0 {
		return result, nil
	}

	// Fetch pass for the requested page.
	startOffset := int64(page-1) * int64(pageSize)
	fetchMsgs := make(chan search.Message, v.cfg.Performance.ChannelBuffer)
	engine.FetchMatches(ctx, s.Window(), startOffset, pageSize, fetchMsgs)

	for {
		select {
		case m := <-fetchMsgs:
			switch msg := m.(type) {
			case search.ChunkResult:
				for _, r := range msg.Matches {
					result.Matches = append(result.Matches, v.enrichMatch(s, r))
				}
			case search.Done:
				return result, nil
			case search.Error:
				return result, lerrors.NewSearchError(query, fmt.Errorf("%s", msg.Message))
			}
		case <-ctx.Done():
			return result, ctx.Err()
		}
	}
}

// enrichMatch attaches the surrounding line to a raw match. Dense indexes
// answer exactly; sparse indexes scan the window around the match and
// correct the coarse line estimate by counting newlines.
func (v *Viewer) enrichMatch(s *Session, r search.Result) types.SearchMatch {
	match := types.SearchMatch{
		ByteOffset:  r.ByteOffset,
		MatchLength: r.MatchLen,
	}

	w := s.Window()
	s.Index(func(ix *lineindex.Index) {
		if !ix.Sparse() {
			lineIdx := ix.LineAtOffset(r.ByteOffset)
			start, end, ok := ix.ResolveLine(lineIdx, w)
			if !ok {
				start, end = r.ByteOffset, r.ByteOffset+int64(r.MatchLen)
			}
			match.LineNumber = lineIdx + 1
			match.LineContent = w.DecodedRange(start, end)
			match.MatchStart = int(r.ByteOffset - start)
			return
		}

		start, end := scanLineBounds(w, r.ByteOffset)
		match.LineNumber = sparseLineNumber(ix, w, r.ByteOffset, start) + 1
		match.LineContent = w.DecodedRange(start, end)
		match.MatchStart = int(r.ByteOffset - start)
	})

	if match.MatchStart < 0 {
		match.MatchStart = 0
	}
	return match
}

// scanLineBounds finds the newline-delimited line around offset by direct
// scanning, bounded so pathological lines stay cheap.
func scanLineBounds(w *window.Window, offset int64) (start, end int64) {
	scanStart := offset - lineScanBackward
	if scanStart < 0 {
		scanStart = 0
	}
	back := w.ByteRange(scanStart, offset)
	start = scanStart
	if i := bytes.LastIndexByte(back, '\n'); i >= 0 {
		start = scanStart + int64(i) + 1
	}

	scanEnd := offset + lineScanForward
	if scanEnd > w.Len() {
		scanEnd = w.Len()
	}
	forward := w.ByteRange(offset, scanEnd)
	end = scanEnd
	if i := bytes.IndexByte(forward, '\n'); i >= 0 {
		end = offset + int64(i)
	}
	return start, end
}

// sparseLineNumber refines the index's coarse estimate with exact newline
// counting between the estimate's anchor and the found line start.
func sparseLineNumber(ix *lineindex.Index, w *window.Window, offset, lineStart int64) int {
	estimate := ix.LineAtOffset(offset)
	anchor := int64(float64(estimate) * ix.AvgLineLength())
	if anchor > w.Len() {
		anchor = w.Len()
	}

	switch {
	case anchor < lineStart:
		span := w.ByteRange(anchor, lineStart)
		return estimate + bytes.Count(span, []byte{'\n'})
	case anchor > lineStart:
		span := w.ByteRange(lineStart, anchor)
		return estimate - bytes.Count(span, []byte{'\n'})
	default:
		return estimate
	}
}

// ReplaceText rewrites the file with a per-line replacement in its chosen
// encoding, swapping the result in atomically. It returns the number of
// lines changed. The session is evicted first so the memory map is released
// before the file is rewritten.
func (v *Viewer) ReplaceText(path, query, replacement string, replaceAll, caseSensitive bool, encodingLabel string) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, lerrors.NewReplaceError("stat", path, err)
	}

	v.cache.Evict(path)

	enc := encodingFor(encodingLabel)
	tmpPath := path + tmpReplaceSuffix

	count, err := replace.ReplaceLines(path, tmpPath, query, replacement, replaceAll, caseSensitive, enc)
	if err != nil {
		os.Remove(tmpPath)
		return 0, lerrors.NewReplaceError("rewrite", path, err)
	}

	if err := replace.SwapWithBackup(path, tmpPath); err != nil {
		os.Remove(tmpPath)
		return 0, err
	}
	return count, nil
}

// PatchFile overwrites oldLen bytes at offset with newText, evicting the
// session first.
func (v *Viewer) PatchFile(path string, offset int64, oldLen int, newText string) error {
	if _, err := os.Stat(path); err != nil {
		return lerrors.NewReplaceError("stat", path, err)
	}
	v.cache.Evict(path)
	return replace.ReplaceSingle(path, offset, oldLen, newText)
}

// CloseFile drops the session for path, if any.
func (v *Viewer) CloseFile(path string) {
	v.cache.Evict(path)
}

// CleanupSessions drops every session and returns how many were released.
func (v *Viewer) CleanupSessions() int {
	return v.cache.EvictAll()
}

// AvailableEncodings lists the encodings offered to the host.
func (v *Viewer) AvailableEncodings() []types.EncodingOption {
	opts := make([]types.EncodingOption, 0, len(encoding.Catalog))
	for _, entry := range encoding.Catalog {
		opts = append(opts, types.EncodingOption{
			Label: entry.Label,
			Name:  entry.Encoding.Name(),
		})
	}
	return opts
}

// DetectEncoding samples the file at path and reports the detected encoding
// with a confidence estimate.
func (v *Viewer) DetectEncoding(path string) (types.DetectionResult, error) {
	res, err := encoding.DetectFile(path)
	if err != nil {
		return types.DetectionResult{}, lerrors.NewFileError("detect", path, err)
	}
	return types.DetectionResult{
		Encoding:   res.Encoding.Name(),
		Confidence: res.Confidence,
		HasBOM:     res.HasBOM,
	}, nil
}
