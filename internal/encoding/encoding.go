// Package encoding maps user-facing labels to character encodings and
// detects an encoding from raw bytes. Decoders come from golang.org/x/text;
// every decoder substitutes U+FFFD for invalid input rather than failing.
package encoding

import (
	"strings"

	xencoding "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding is an identity tag plus a decoder. Instances are package-level
// singletons; callers hold non-owning references and never mutate them.
type Encoding struct {
	name string
	impl xencoding.Encoding
}

// Well-known encodings. ISO-8859-1 is served by Windows-1252 and GB18030 by
// GBK, matching how the viewer historically treated those labels.
var (
	UTF8        = &Encoding{name: "UTF-8", impl: unicode.UTF8}
	UTF16LE     = &Encoding{name: "UTF-16LE", impl: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)}
	UTF16BE     = &Encoding{name: "UTF-16BE", impl: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)}
	Windows1252 = &Encoding{name: "windows-1252", impl: charmap.Windows1252}
	GBK         = &Encoding{name: "GBK", impl: simplifiedchinese.GBK}
)

// CatalogEntry pairs a selectable label with its encoding.
type CatalogEntry struct {
	Label    string
	Encoding *Encoding
}

// Catalog lists the encodings offered to the host, in display order.
var Catalog = []CatalogEntry{
	{"UTF-8", UTF8},
	{"UTF-16LE", UTF16LE},
	{"UTF-16BE", UTF16BE},
	{"Windows-1252", Windows1252},
	{"ISO-8859-1", Windows1252},
	{"GBK", GBK},
	{"GB18030", GBK},
}

// Name returns the canonical encoding name.
func (e *Encoding) Name() string {
	return e.name
}

// Decode converts a byte slice into a valid UTF-8 string using this
// encoding. Invalid input bytes become replacement characters.
func (e *Encoding) Decode(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	out, _, err := transform.Bytes(e.impl.NewDecoder(), b)
	if err != nil {
		// Decoders run in replacement mode; an error here means a broken
		// transformer chain, so fall back to the raw bytes.
		return string(b)
	}
	return string(out)
}

// NewDecoder returns a streaming decoder for this encoding.
func (e *Encoding) NewDecoder() *xencoding.Decoder {
	return e.impl.NewDecoder()
}

// ForLabel resolves a case-insensitive label to an encoding. Labels outside
// the catalog are tried against the standard encoding registry; unknown or
// empty labels fall back to UTF-8.
func ForLabel(label string) *Encoding {
	if label == "" {
		return UTF8
	}
	for _, entry := range Catalog {
		if strings.EqualFold(entry.Label, label) {
			return entry.Encoding
		}
	}
	if impl, err := htmlindex.Get(label); err == nil {
		name, err := htmlindex.Name(impl)
		if err != nil {
			name = strings.ToLower(label)
		}
		return &Encoding{name: name, impl: impl}
	}
	return UTF8
}
