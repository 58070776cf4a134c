// Package lineindex maps line numbers to byte offsets for a file window.
// Small files get a dense per-line offset table; large files get sparse
// checkpoints plus an average-line-length estimator, so "give me line N"
// stays bounded for arbitrarily large files.
package lineindex

import (
	"bytes"
	"math"

	"github.com/standardbeagle/ltv/internal/window"
)

const (
	// FullIndexThreshold is the file size above which indexing switches
	// from a dense offset table to sparse checkpoints.
	FullIndexThreshold = 10_000_000

	// sparseInterval is the byte distance between sparse checkpoints.
	sparseInterval = 10_000_000

	// maxCheckpoints caps the sparse checkpoint table.
	maxCheckpoints = 100

	// sampleChunks is how many leading chunks feed the line-length estimate.
	sampleChunks = 5

	// defaultAvgLineLength is assumed when the sample contains no newlines.
	defaultAvgLineLength = 80.0

	// minScanRadius bounds the sparse resolve scan so extremely long lines
	// still produce usable content.
	minScanRadius = 65536
)

// Index is the line-number to byte-offset mapping for one window. It is
// immutable after Build; concurrent lookups are safe.
type Index struct {
	// offsets holds every line start (dense) or the checkpoint table
	// (sparse). The first entry is always 0.
	offsets       []int64
	totalLines    int
	fileSize      int64
	sparse        bool
	avgLineLength float64
}

// Build indexes the window, choosing dense or sparse by file size.
func Build(w *window.Window) *Index {
	ix := &Index{
		fileSize:      w.Len(),
		avgLineLength: defaultAvgLineLength,
	}

	if ix.fileSize <= FullIndexThreshold {
		ix.buildDense(w.Bytes())
		ix.totalLines = len(ix.offsets)
	} else {
		ix.buildSparse(w)
		ix.totalLines = ix.estimateTotalLines()
	}
	return ix
}

// buildDense records the byte after every newline as a line start. A file
// ending in a newline therefore carries one final empty line, so a file of
// exactly "\n\n\n" indexes as four line starts.
func (ix *Index) buildDense(data []byte) {
	ix.offsets = append(ix.offsets[:0], 0)
	for pos := 0; pos < len(data); {
		i := bytes.IndexByte(data[pos:], '\n')
		if i < 0 {
			break
		}
		pos += i + 1
		ix.offsets = append(ix.offsets, int64(pos))
	}
}

// buildSparse records a checkpoint every sparseInterval bytes and estimates
// the average line length from the first few chunks.
func (ix *Index) buildSparse(w *window.Window) {
	ix.sparse = true
	ix.offsets = append(ix.offsets[:0], 0)

	var bytesSampled, newlinesFound int64

	chunkIndex := 0
	for pos := int64(0); pos < ix.fileSize && len(ix.offsets) < maxCheckpoints; {
		chunkEnd := pos + sparseInterval
		if chunkEnd > ix.fileSize {
			chunkEnd = ix.fileSize
		}

		if chunkIndex < sampleChunks {
			chunk := w.ByteRange(pos, chunkEnd)
			bytesSampled += int64(len(chunk))
			newlinesFound += int64(bytes.Count(chunk, []byte{'\n'}))
		}

		chunkIndex++
		pos = chunkEnd
		if pos < ix.fileSize {
			ix.offsets = append(ix.offsets, pos)
		}
	}

	if newlinesFound > 0 {
		ix.avgLineLength = float64(bytesSampled) / float64(newlinesFound)
	}
}

func (ix *Index) estimateTotalLines() int {
	if ix.avgLineLength > 0 {
		return int(float64(ix.fileSize) / ix.avgLineLength)
	}
	return int(ix.fileSize / int64(defaultAvgLineLength))
}

// TotalLines returns the line count. Exact for dense indexes, an estimate
// for sparse ones; callers must treat sparse counts as approximate.
func (ix *Index) TotalLines() int {
	return ix.totalLines
}

// Sparse reports whether this index uses checkpoints instead of a full
// per-line table.
func (ix *Index) Sparse() bool {
	return ix.sparse
}

// AvgLineLength returns the learned average line length in bytes.
func (ix *Index) AvgLineLength() float64 {
	return ix.avgLineLength
}

// LineRange returns the byte range of 0-based line n without touching the
// file. Dense indexes answer exactly; sparse indexes return the estimated
// anchor running to end-of-file. Use ResolveLine for true bounds.
func (ix *Index) LineRange(n int) (start, end int64, ok bool) {
	if n < 0 {
		return 0, 0, false
	}

	if !ix.sparse {
		if n >= len(ix.offsets) {
			return 0, 0, false
		}
		start = ix.offsets[n]
		end = ix.fileSize
		if n+1 < len(ix.offsets) {
			end = ix.offsets[n+1]
		}
		return start, end, true
	}

	estimated := int64(float64(n) * ix.avgLineLength)
	if estimated >= ix.fileSize {
		return 0, 0, false
	}
	return estimated, ix.fileSize, true
}

// ResolveLine returns the true byte bounds of 0-based line n, scanning the
// window around the estimated position for sparse indexes.
func (ix *Index) ResolveLine(n int, w *window.Window) (start, end int64, ok bool) {
	if !ix.sparse {
		return ix.LineRange(n)
	}
	if n < 0 {
		return 0, 0, false
	}

	estimated := int64(math.Round(float64(n) * ix.avgLineLength))

	radius := int64(ix.avgLineLength * 2)
	if radius < minScanRadius {
		radius = minScanRadius
	}

	scanStart := estimated - radius
	if scanStart < 0 {
		scanStart = 0
	}
	if scanStart > ix.fileSize {
		scanStart = ix.fileSize
	}
	scanEnd := estimated + radius
	if scanEnd > ix.fileSize {
		scanEnd = ix.fileSize
	}
	if scanStart >= scanEnd {
		return 0, 0, false
	}

	chunk := w.ByteRange(scanStart, scanEnd)
	relEst := estimated - scanStart
	if relEst > int64(len(chunk)) {
		relEst = int64(len(chunk))
	}

	// Scan backward for the newline preceding the estimate; its next byte
	// is the line start. No newline in the scan window means the line is
	// extremely long; start at the window edge so the caller still sees
	// usable content.
	start = scanStart
	if i := bytes.LastIndexByte(chunk[:relEst], '\n'); i >= 0 {
		start = scanStart + int64(i) + 1
	}

	// Scan forward for the newline bounding the line end.
	end = scanEnd
	if i := bytes.IndexByte(chunk[relEst:], '\n'); i >= 0 {
		end = scanStart + relEst + int64(i)
	}

	return start, end, true
}

// LineAtOffset returns the 0-based line number containing the byte offset.
// Dense indexes binary-search the offset table; sparse indexes estimate
// from the average line length.
func (ix *Index) LineAtOffset(offset int64) int {
	if !ix.sparse {
		// Largest line start <= offset.
		lo, hi := 0, len(ix.offsets)-1
		for lo < hi {
			mid := (lo + hi + 1) / 2
			if ix.offsets[mid] <= offset {
				lo = mid
			} else {
				hi = mid - 1
			}
		}
		return lo
	}

	if ix.avgLineLength > 0 {
		return int(float64(offset) / ix.avgLineLength)
	}
	return int(offset / int64(defaultAvgLineLength))
}

// Checkpoints exposes the offset table for diagnostics and tests.
func (ix *Index) Checkpoints() []int64 {
	return ix.offsets
}
