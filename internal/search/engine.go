// Package search counts and fetches regular-expression matches across a
// file window using chunked scanning with boundary overlap. Both operations
// run on background goroutines and report through a bounded message channel;
// cancellation comes from the caller's context.
package search

import (
	"context"
	"regexp"
	"runtime"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/ltv/internal/window"
)

const (
	// countBatchSize is the scan granularity inside one count shard.
	countBatchSize = 4 * 1024 * 1024

	// fetchChunkSize is the scan granularity of the single-threaded fetch.
	fetchChunkSize = 10 * 1024 * 1024

	// minOverlap is the smallest read past a chunk boundary. The overlap
	// must be at least the maximum possible match length; queries longer
	// than this extend it.
	minOverlap = 1000
)

// Query describes one search request.
type Query struct {
	Text          string
	UseRegex      bool
	CaseSensitive bool
}

// Result is a raw match: offset and length in bytes of the scanned text.
// For UTF-8 and ASCII files these are file byte offsets; for other
// encodings they are positions in the decoded text and best-effort only.
type Result struct {
	ByteOffset int64
	MatchLen   int
}

// Kind identifies which operation a Done message completes.
type Kind int

const (
	KindCount Kind = iota
	KindFetch
)

// Message is one item on the search result stream.
type Message interface {
	isMessage()
}

// CountResult carries one shard's partial match count.
type CountResult struct {
	Count int
}

// ChunkResult carries a batch of fetched matches in ascending offset order.
type ChunkResult struct {
	Matches []Result
}

// Done signals successful completion of an operation. After cancellation it
// is never sent.
type Done struct {
	Kind Kind
}

// Error reports a failed operation; no further messages follow it.
type Error struct {
	Message string
}

func (CountResult) isMessage() {}
func (ChunkResult) isMessage() {}
func (Done) isMessage()        {}
func (Error) isMessage()       {}

// Engine holds a compiled query. Set the query once, then run CountMatches
// and FetchMatches against any window.
type Engine struct {
	query      Query
	re         *regexp.Regexp
	compileErr error
	workers    int
}

// NewEngine creates an engine. workers caps the count-matches parallelism;
// 0 means all available CPUs.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		workers = 1
	}
	return &Engine{workers: workers}
}

// SetQuery compiles the query. Literal queries are escaped;
// case-insensitivity becomes a (?i) flag on the compiled pattern.
// Compilation failures are held and surface as an Error message when an
// operation runs.
func (e *Engine) SetQuery(q Query) {
	e.query = q
	e.re = nil
	e.compileErr = nil

	pattern := q.Text
	if !q.UseRegex {
		pattern = regexp.QuoteMeta(pattern)
	}
	if !q.CaseSensitive {
		pattern = "(?i)" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		e.compileErr = err
		return
	}
	e.re = re
}

// overlap is the extra read past a batch boundary so matches straddling it
// are still seen by the batch that owns their start.
func (e *Engine) overlap() int64 {
	ov := int64(len(e.query.Text) - 1)
	if ov < minOverlap {
		ov = minOverlap
	}
	return ov
}

// scanText prepares a byte range for regex matching: valid UTF-8 is used
// as-is, anything else is decoded through the window's encoding.
func scanText(w *window.Window, b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return w.Encoding().Decode(b)
}

// send delivers a message unless the context is cancelled. Once cancelled,
// nothing further is emitted.
func send(ctx context.Context, msgs chan<- Message, m Message) bool {
	select {
	case msgs <- m:
		return true
	case <-ctx.Done():
		return false
	}
}

// CountMatches partitions the window across shard workers and streams one
// CountResult per shard followed by Done(KindCount). Partial counts arrive
// in unspecified order; their sum is the total. The call returns
// immediately; all work happens on background goroutines.
func (e *Engine) CountMatches(ctx context.Context, w *window.Window, msgs chan<- Message) {
	fileLen := w.Len()
	if fileLen == 0 || e.query.Text == "" {
		go func() {
			if send(ctx, msgs, CountResult{Count: 0}) {
				send(ctx, msgs, Done{Kind: KindCount})
			}
		}()
		return
	}
	if e.re == nil {
		go func() {
			send(ctx, msgs, Error{Message: compileMessage(e.compileErr)})
		}()
		return
	}

	re := e.re
	overlap := e.overlap()
	workers := e.workers
	shardSize := (fileLen + int64(workers) - 1) / int64(workers)
	w = w.Retain()

	go func() {
		defer w.Release()

		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < workers; i++ {
			shardStart := int64(i) * shardSize
			if shardStart >= fileLen {
				break
			}
			shardEnd := shardStart + shardSize
			if shardEnd > fileLen {
				shardEnd = fileLen
			}

			g.Go(func() error {
				local := 0
				for pos := shardStart; pos < shardEnd; {
					if gctx.Err() != nil {
						return gctx.Err()
					}

					batchEnd := pos + countBatchSize
					if batchEnd > shardEnd {
						batchEnd = shardEnd
					}
					readEnd := batchEnd + overlap
					if readEnd > fileLen {
						readEnd = fileLen
					}

					text := scanText(w, w.ByteRange(pos, readEnd))
					for _, m := range re.FindAllStringIndex(text, -1) {
						if gctx.Err() != nil {
							return gctx.Err()
						}
						// Accept only matches starting inside the batch;
						// the overlap belongs to the next one.
						if pos+int64(m[0]) >= batchEnd {
							continue
						}
						local++
					}
					pos = batchEnd
				}

				if !send(gctx, msgs, CountResult{Count: local}) {
					return gctx.Err()
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return
		}
		send(ctx, msgs, Done{Kind: KindCount})
	}()
}

// FetchMatches scans from startOffset in a single goroutine, streaming
// ChunkResult batches in strictly increasing byte order until maxResults
// matches are collected or the file is consumed, then Done(KindFetch).
func (e *Engine) FetchMatches(ctx context.Context, w *window.Window, startOffset int64, maxResults int, msgs chan<- Message) {
	fileLen := w.Len()
	if fileLen == 0 || e.query.Text == "" {
		go func() {
			send(ctx, msgs, Done{Kind: KindFetch})
		}()
		return
	}
	if e.re == nil {
		go func() {
			send(ctx, msgs, Error{Message: compileMessage(e.compileErr)})
		}()
		return
	}

	re := e.re
	overlap := e.overlap()
	w = w.Retain()

	go func() {
		defer w.Release()

		chunkStart := startOffset
		found := 0

		for chunkStart < fileLen && found < maxResults {
			if ctx.Err() != nil {
				return
			}

			chunkEnd := chunkStart + fetchChunkSize
			if chunkEnd > fileLen {
				chunkEnd = fileLen
			}
			text := scanText(w, w.ByteRange(chunkStart, chunkEnd))

			// Matches starting past validEnd belong to the next chunk,
			// which begins exactly there.
			validEnd := fileLen
			if chunkEnd < fileLen {
				validEnd = chunkEnd - overlap
			}

			var batch []Result
			for _, m := range re.FindAllStringIndex(text, -1) {
				if ctx.Err() != nil {
					return
				}
				if found >= maxResults {
					break
				}

				absolute := chunkStart + int64(m[0])
				if absolute >= validEnd {
					continue
				}

				batch = append(batch, Result{
					ByteOffset: absolute,
					MatchLen:   m[1] - m[0],
				})
				found++
			}

			if len(batch) > 0 {
				if !send(ctx, msgs, ChunkResult{Matches: batch}) {
					return
				}
			}

			if chunkEnd >= fileLen {
				break
			}
			chunkStart = validEnd
		}

		send(ctx, msgs, Done{Kind: KindFetch})
	}()
}

func compileMessage(err error) string {
	if err != nil {
		return "invalid regex: " + err.Error()
	}
	return "invalid regex"
}
