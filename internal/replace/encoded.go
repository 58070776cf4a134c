package replace

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/transform"

	"github.com/standardbeagle/ltv/internal/encoding"
)

// ReplaceLines streams inputPath to outputPath applying a per-line literal
// replacement, decoding the input through enc. It returns the number of
// lines in which at least one replacement occurred.
//
// The output is written as UTF-8 with a \n terminator per line, so CRLF
// input is normalized; the match itself never spans lines. With
// replaceAll=false only the first matching line in the whole file changes.
func ReplaceLines(inputPath, outputPath, search, replacement string, replaceAll, caseSensitive bool, enc *encoding.Encoding) (int, error) {
	if search == "" {
		// Nothing to replace; emit a byte-for-byte copy.
		if err := copyFile(inputPath, outputPath); err != nil {
			return 0, err
		}
		return 0, nil
	}
	if enc == nil {
		enc = encoding.UTF8
	}

	in, err := os.Open(inputPath)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return 0, err
	}
	writer := bufio.NewWriter(out)

	reader := bufio.NewReader(transform.NewReader(in, enc.NewDecoder()))

	count := 0
	replacedFirst := false

	for {
		line, readErr := reader.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")

			if !replacedFirst || replaceAll {
				processed, didReplace := replaceInLine(line, search, replacement, replaceAll, caseSensitive, &replacedFirst)
				if didReplace {
					count++
				}
				line = processed
			}

			if _, err := writer.WriteString(line); err != nil {
				out.Close()
				return count, err
			}
			if err := writer.WriteByte('\n'); err != nil {
				out.Close()
				return count, err
			}
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			return count, readErr
		}
	}

	if err := writer.Flush(); err != nil {
		out.Close()
		return count, err
	}
	return count, out.Close()
}

// replaceInLine applies the replacement within one line, preserving the
// original-case text around case-insensitive matches. replacedFirst tracks
// first-only mode across lines.
func replaceInLine(line, search, replacement string, replaceAll, caseSensitive bool, replacedFirst *bool) (string, bool) {
	if replaceAll {
		if caseSensitive {
			if !strings.Contains(line, search) {
				return line, false
			}
			return strings.ReplaceAll(line, search, replacement), true
		}
		return replaceAllFold(line, search, replacement)
	}

	// First-only mode.
	if *replacedFirst {
		return line, false
	}

	var start, end int
	if caseSensitive {
		start = strings.Index(line, search)
		end = start + len(search)
	} else {
		var ok bool
		start, end, ok = foldIndex(line, search)
		if !ok {
			start = -1
		}
	}
	if start < 0 {
		return line, false
	}

	*replacedFirst = true
	return line[:start] + replacement + line[end:], true
}

// replaceAllFold replaces every case-insensitive occurrence, keeping the
// unmatched segments byte-identical to the original line.
func replaceAllFold(line, search, replacement string) (string, bool) {
	lineLower := strings.ToLower(line)
	searchLower := strings.ToLower(search)

	// Lowercasing can change byte lengths for a few scripts; indexes into
	// the lowered string would then mis-slice the original. Fall back to a
	// case-insensitive regex for those lines.
	if len(lineLower) != len(line) || len(searchLower) != len(search) {
		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(search))
		if err != nil {
			return line, false
		}
		if !re.MatchString(line) {
			return line, false
		}
		return re.ReplaceAllLiteralString(line, replacement), true
	}

	var b strings.Builder
	lastEnd := 0
	found := false

	for {
		i := strings.Index(lineLower[lastEnd:], searchLower)
		if i < 0 {
			break
		}
		start := lastEnd + i
		b.WriteString(line[lastEnd:start])
		b.WriteString(replacement)
		lastEnd = start + len(search)
		found = true
	}

	if !found {
		return line, false
	}
	b.WriteString(line[lastEnd:])
	return b.String(), true
}

// foldIndex returns the byte span of the first case-insensitive occurrence
// of search in line.
func foldIndex(line, search string) (start, end int, ok bool) {
	lineLower := strings.ToLower(line)
	searchLower := strings.ToLower(search)
	if len(lineLower) != len(line) || len(searchLower) != len(search) {
		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(search))
		if err != nil {
			return 0, 0, false
		}
		loc := re.FindStringIndex(line)
		if loc == nil {
			return 0, 0, false
		}
		return loc[0], loc[1], true
	}
	i := strings.Index(lineLower, searchLower)
	if i < 0 {
		return 0, 0, false
	}
	return i, i + len(search), true
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
