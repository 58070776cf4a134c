package encoding

import (
	"io"
	"os"
	"unicode/utf8"

	"github.com/saintfish/chardet"
)

// Detection reads at most sampleLimit bytes, or the whole file when it is
// smaller than wholeFileLimit.
const (
	sampleLimit    = 512 * 1024
	wholeFileLimit = 1024 * 1024
)

// DetectionResult reports the detected encoding with a confidence estimate.
type DetectionResult struct {
	Encoding   *Encoding
	Confidence float32
	HasBOM     bool
}

// Sniff picks an encoding for raw bytes using only the cheap checks: BOM,
// then UTF-8 validity, then Windows-1252 as the single-byte fallback. Use
// Detect for the full statistical pass with a confidence estimate.
func Sniff(b []byte) *Encoding {
	if enc, _ := detectBOM(b); enc != nil {
		return enc
	}
	if utf8.Valid(b) {
		return UTF8
	}
	return Windows1252
}

// DetectFile samples the start of the file at path and runs Detect over it.
func DetectFile(path string) (DetectionResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return DetectionResult{}, err
	}
	defer f.Close()

	readSize := int64(sampleLimit)
	if info, err := f.Stat(); err == nil && info.Size() < wholeFileLimit {
		readSize = info.Size()
	}

	sample := make([]byte, readSize)
	n, err := f.Read(sample)
	if err != nil && err != io.EOF {
		return DetectionResult{}, err
	}
	return Detect(sample[:n]), nil
}

// Detect runs the full statistical detection over a byte sample: BOM, UTF-16
// NUL density, UTF-8 validity, then GBK vs UTF-8 CJK byte-pattern analysis
// with an auxiliary statistical detector as the tie breaker.
func Detect(sample []byte) DetectionResult {
	if len(sample) == 0 {
		return DetectionResult{Encoding: UTF8, Confidence: 0.5}
	}

	if enc, _ := detectBOM(sample); enc != nil {
		return DetectionResult{Encoding: enc, Confidence: 1.0, HasBOM: true}
	}

	if enc, conf := detectUTF16ByNulls(sample); enc != nil {
		return DetectionResult{Encoding: enc, Confidence: conf}
	}

	validUTF8 := utf8.Valid(sample)
	gbkCount := countGBKPairs(sample)
	utf8CJK := countUTF8CJK(sample)

	var enc *Encoding
	if validUTF8 {
		switch {
		case utf8CJK > 0 && gbkCount == 0:
			enc = UTF8
		case gbkCount >= 2 && gbkCount > utf8CJK:
			enc = GBK
		default:
			enc = UTF8
		}
	} else {
		if gbkCount >= 2 {
			enc = GBK
		} else {
			enc = consultAuxiliary(sample)
		}
	}

	conf := calculateConfidence(sample, enc, validUTF8, gbkCount, utf8CJK)
	return DetectionResult{Encoding: enc, Confidence: conf}
}

// detectBOM returns the encoding indicated by a byte-order mark, with the
// BOM length, or (nil, 0) when no BOM is present.
func detectBOM(b []byte) (*Encoding, int) {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return UTF8, 3
	}
	if len(b) >= 2 {
		if b[0] == 0xFF && b[1] == 0xFE {
			return UTF16LE, 2
		}
		if b[0] == 0xFE && b[1] == 0xFF {
			return UTF16BE, 2
		}
	}
	return nil, 0
}

// detectUTF16ByNulls tests the NUL density of odd bytes (LE hypothesis) and
// even bytes (BE hypothesis). A side exceeding 70% of the pair count wins,
// with the ratio as confidence.
func detectUTF16ByNulls(sample []byte) (*Encoding, float32) {
	if len(sample) < 4 || len(sample)%2 != 0 {
		return nil, 0
	}

	totalPairs := len(sample) / 2
	threshold := totalPairs * 7 / 10

	nullsLE := 0
	nullsBE := 0
	for i := 0; i < len(sample); i += 2 {
		if sample[i] == 0 {
			nullsBE++
		}
		if sample[i+1] == 0 {
			nullsLE++
		}
	}

	if nullsLE > threshold {
		return UTF16LE, float32(nullsLE) / float32(totalPairs)
	}
	if nullsBE > threshold {
		return UTF16BE, float32(nullsBE) / float32(totalPairs)
	}
	return nil, 0
}

// countGBKPairs counts two-byte sequences in the GBK double-byte range.
// A triple that is also a valid UTF-8 three-byte CJK sequence is skipped so
// UTF-8 Chinese text does not inflate the GBK count.
func countGBKPairs(sample []byte) int {
	count := 0
	for i := 0; i+1 < len(sample); {
		b1 := sample[i]
		b2 := sample[i+1]

		if b1 >= 0x81 && b1 <= 0xFE {
			if (b2 >= 0x40 && b2 <= 0x7E) || (b2 >= 0x80 && b2 <= 0xFE) {
				if b1 >= 0xE0 && b1 <= 0xE9 && i+2 < len(sample) {
					b3 := sample[i+2]
					if b2 >= 0x80 && b2 <= 0xBF && b3 >= 0x80 && b3 <= 0xBF {
						// Valid UTF-8 3-byte sequence, not GBK.
						i += 3
						continue
					}
				}
				count++
				i += 2
				continue
			}
		}
		i++
	}
	return count
}

// countUTF8CJK counts UTF-8 three-byte sequences with a lead byte in
// [0xE0, 0xE9], covering the common CJK planes.
func countUTF8CJK(sample []byte) int {
	count := 0
	for i := 0; i < len(sample); {
		b1 := sample[i]
		if b1 >= 0xE0 && b1 <= 0xE9 && i+2 < len(sample) {
			b2 := sample[i+1]
			b3 := sample[i+2]
			if b2 >= 0x80 && b2 <= 0xBF && b3 >= 0x80 && b3 <= 0xBF {
				count++
				i += 3
				continue
			}
		}
		i++
	}
	return count
}

// consultAuxiliary asks the statistical detector to break a tie on bytes
// that are neither valid UTF-8 nor clearly GBK. Anything it cannot pin to
// UTF-8 or GBK falls back to GBK, since only non-UTF-8 bytes reach here.
func consultAuxiliary(sample []byte) *Encoding {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(sample)
	if err == nil {
		switch result.Charset {
		case "UTF-8":
			return UTF8
		case "GBK", "GB18030", "GB-18030":
			return GBK
		}
	}
	return GBK
}

// calculateConfidence scores the decision: base 0.7, a sample-size factor,
// and encoding-specific bonuses, clamped to [0.3, 0.99].
func calculateConfidence(sample []byte, enc *Encoding, validUTF8 bool, gbkCount, utf8CJK int) float32 {
	confidence := float32(0.7)

	sizeFactor := float32(len(sample)) / (1024.0 * 1024.0)
	if sizeFactor > 1.0 {
		sizeFactor = 1.0
	}
	confidence += sizeFactor * 0.15

	switch enc {
	case UTF8:
		if validUTF8 {
			confidence += 0.15
		}
		if utf8CJK > 0 && gbkCount == 0 {
			confidence += 0.1
		}
	case GBK:
		if !validUTF8 && gbkCount >= 2 {
			confidence += 0.2
		} else if gbkCount > utf8CJK {
			confidence += 0.1
		} else {
			confidence -= 0.1
		}
	case UTF16LE, UTF16BE:
		confidence += 0.2
	}

	if confidence < 0.3 {
		confidence = 0.3
	}
	if confidence > 0.99 {
		confidence = 0.99
	}
	return confidence
}
