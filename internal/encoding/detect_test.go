package encoding

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSniff(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  *Encoding
	}{
		{"utf8 bom", []byte{0xEF, 0xBB, 0xBF, 'h', 'i'}, UTF8},
		{"utf16le bom", []byte{0xFF, 0xFE, 'h', 0}, UTF16LE},
		{"utf16be bom", []byte{0xFE, 0xFF, 0, 'h'}, UTF16BE},
		{"plain ascii", []byte("hello world"), UTF8},
		{"invalid bytes", []byte{0xFF, 0xFF, 0xFF}, Windows1252},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Same(t, tt.want, Sniff(tt.input))
		})
	}
}

func TestDetectBOM(t *testing.T) {
	res := Detect([]byte{0xEF, 0xBB, 0xBF, 'h', 'i'})
	assert.Same(t, UTF8, res.Encoding)
	assert.True(t, res.HasBOM)
	assert.Equal(t, float32(1.0), res.Confidence)

	res = Detect([]byte{0xFF, 0xFE, 'h', 0})
	assert.Same(t, UTF16LE, res.Encoding)
	assert.True(t, res.HasBOM)

	res = Detect([]byte{0xFE, 0xFF, 0, 'h'})
	assert.Same(t, UTF16BE, res.Encoding)
	assert.True(t, res.HasBOM)
}

func TestDetectEmptySample(t *testing.T) {
	res := Detect(nil)
	assert.Same(t, UTF8, res.Encoding)
	assert.Equal(t, float32(0.5), res.Confidence)
	assert.False(t, res.HasBOM)
}

func TestDetectUTF16ByNullDensity(t *testing.T) {
	// ASCII text encoded as UTF-16LE without a BOM: every odd byte is NUL.
	sample := []byte{'a', 0, 'b', 0, 'c', 0, 'd', 0}
	res := Detect(sample)
	assert.Same(t, UTF16LE, res.Encoding)
	assert.Equal(t, float32(1.0), res.Confidence)
	assert.False(t, res.HasBOM)

	sample = []byte{0, 'a', 0, 'b', 0, 'c', 0, 'd'}
	res = Detect(sample)
	assert.Same(t, UTF16BE, res.Encoding)
}

func TestDetectUTF8CJK(t *testing.T) {
	res := Detect([]byte("你好世界 hello"))
	assert.Same(t, UTF8, res.Encoding)
	assert.Greater(t, res.Confidence, float32(0.9))
}

func TestDetectGBK(t *testing.T) {
	// "你好世界" in GBK: invalid UTF-8 with four double-byte pairs.
	sample := []byte{0xC4, 0xE3, 0xBA, 0xC3, 0xCA, 0xC0, 0xBD, 0xE7}
	res := Detect(sample)
	assert.Same(t, GBK, res.Encoding)
	assert.Greater(t, res.Confidence, float32(0.85))
}

func TestDetectPlainASCII(t *testing.T) {
	res := Detect([]byte("just plain text, nothing fancy"))
	assert.Same(t, UTF8, res.Encoding)
	assert.GreaterOrEqual(t, res.Confidence, float32(0.8))
	assert.LessOrEqual(t, res.Confidence, float32(0.99))
}

func TestConfidenceClamped(t *testing.T) {
	// A large valid UTF-8 sample maxes the size factor; the score is clamped
	// to at most 0.99.
	sample := bytes.Repeat([]byte("你好"), 200*1024)
	res := Detect(sample)
	assert.LessOrEqual(t, res.Confidence, float32(0.99))
	assert.GreaterOrEqual(t, res.Confidence, float32(0.3))
}

func TestCountGBKPairsSkipsValidUTF8(t *testing.T) {
	// UTF-8 CJK triples must not count toward GBK.
	assert.Equal(t, 0, countGBKPairs([]byte("你好世界")))
	assert.Equal(t, 4, countUTF8CJK([]byte("你好世界")))
}

func TestDetectFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.txt")
	require.NoError(t, os.WriteFile(path, []byte{0xEF, 0xBB, 0xBF, 'o', 'k'}, 0o644))

	res, err := DetectFile(path)
	require.NoError(t, err)
	assert.Same(t, UTF8, res.Encoding)
	assert.True(t, res.HasBOM)
}

func TestDetectFileMissing(t *testing.T) {
	_, err := DetectFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
