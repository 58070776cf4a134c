// Package window provides a zero-copy, memory-mapped view of a file with
// on-demand decoding through a character encoding.
package window

import (
	"os"
	"sync/atomic"

	"github.com/edsrzf/mmap-go"

	"github.com/standardbeagle/ltv/internal/encoding"
	lerrors "github.com/standardbeagle/ltv/internal/errors"
)

// Window owns a read-only memory mapping of one file. The mapped bytes are
// immutable for the window's lifetime and safe for concurrent readers.
//
// Windows are reference counted: Open returns a window holding one
// reference, which the session cache keeps and releases on eviction. Every
// other holder that may outlive it (search workers) takes its own reference
// with Retain and drops it with Release. The mapping is unmapped when the
// last reference is released.
type Window struct {
	path string
	file *os.File
	data mmap.MMap
	enc  *encoding.Encoding
	refs atomic.Int32
}

// Open memory-maps the file at path. Empty files are rejected: a zero-length
// mapping is invalid and the viewer has nothing to show for one anyway.
func Open(path string, enc *encoding.Encoding) (*Window, error) {
	if enc == nil {
		enc = encoding.UTF8
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, lerrors.NewFileError("open", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, lerrors.NewFileError("stat", path, err)
	}
	if info.Size() == 0 {
		f.Close()
		return nil, lerrors.NewEmptyFileError(path)
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, lerrors.NewMappingError(path, info.Size(), err)
	}

	w := &Window{
		path: path,
		file: f,
		data: data,
		enc:  enc,
	}
	w.refs.Store(1)
	return w, nil
}

// Len returns the mapping length in bytes.
func (w *Window) Len() int64 {
	return int64(len(w.data))
}

// Path returns the mapped file's path.
func (w *Window) Path() string {
	return w.path
}

// Encoding returns the encoding used by DecodedRange.
func (w *Window) Encoding() *encoding.Encoding {
	return w.enc
}

// ByteRange returns the mapped bytes in [start, end), clamped to the mapping
// length. The slice aliases the mapping and must not be written to or held
// past Release.
func (w *Window) ByteRange(start, end int64) []byte {
	if end > int64(len(w.data)) {
		end = int64(len(w.data))
	}
	if start < 0 {
		start = 0
	}
	if start >= end {
		return nil
	}
	return w.data[start:end]
}

// Bytes returns the whole mapping. Same aliasing rules as ByteRange.
func (w *Window) Bytes() []byte {
	return w.data
}

// DecodedRange decodes the bytes in [start, end) through the window's
// encoding, substituting replacement characters for invalid input.
func (w *Window) DecodedRange(start, end int64) string {
	return w.enc.Decode(w.ByteRange(start, end))
}

// Retain takes an additional reference on the mapping.
func (w *Window) Retain() *Window {
	w.refs.Add(1)
	return w
}

// Release drops one reference, unmapping the file when the count reaches
// zero. Returns the unmap/close error from the final release, if any.
func (w *Window) Release() error {
	if w.refs.Add(-1) != 0 {
		return nil
	}
	err := w.data.Unmap()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	return err
}
