package window

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/ltv/internal/encoding"
	lerrors "github.com/standardbeagle/ltv/internal/errors"
)

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestOpenAndRead(t *testing.T) {
	path := writeTemp(t, []byte("Hello World\nLine 2"))

	w, err := Open(path, encoding.UTF8)
	require.NoError(t, err)
	defer w.Release()

	assert.Equal(t, int64(18), w.Len())
	assert.Equal(t, path, w.Path())
	assert.Same(t, encoding.UTF8, w.Encoding())
	assert.Equal(t, []byte("Hello"), w.ByteRange(0, 5))
	assert.Equal(t, "World", w.DecodedRange(6, 11))
}

func TestByteRangeClamped(t *testing.T) {
	path := writeTemp(t, []byte("abc"))

	w, err := Open(path, nil)
	require.NoError(t, err)
	defer w.Release()

	assert.Equal(t, []byte("abc"), w.ByteRange(0, 100))
	assert.Nil(t, w.ByteRange(5, 10))
	assert.Nil(t, w.ByteRange(2, 2))
	assert.Equal(t, []byte("a"), w.ByteRange(-1, 1))
}

func TestOpenEmptyFile(t *testing.T) {
	path := writeTemp(t, nil)

	_, err := Open(path, encoding.UTF8)
	require.Error(t, err)
	assert.True(t, lerrors.IsEmptyFile(err))
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.txt"), encoding.UTF8)
	require.Error(t, err)
	var fe *lerrors.FileError
	assert.ErrorAs(t, err, &fe)
}

func TestDecodedRangeNonUTF8(t *testing.T) {
	// é in Windows-1252
	path := writeTemp(t, []byte{'c', 'a', 'f', 0xE9})

	w, err := Open(path, encoding.Windows1252)
	require.NoError(t, err)
	defer w.Release()

	assert.Equal(t, "café", w.DecodedRange(0, 4))
}

func TestRetainRelease(t *testing.T) {
	path := writeTemp(t, []byte("shared"))

	w, err := Open(path, encoding.UTF8)
	require.NoError(t, err)

	clone := w.Retain()
	require.NoError(t, w.Release())
	// The mapping survives while the clone holds a reference.
	assert.Equal(t, []byte("shared"), clone.ByteRange(0, 6))
	require.NoError(t, clone.Release())
}

func TestConcurrentReaders(t *testing.T) {
	path := writeTemp(t, []byte("concurrent read test data"))

	w, err := Open(path, encoding.UTF8)
	require.NoError(t, err)
	defer w.Release()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				_ = w.DecodedRange(0, w.Len())
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
