package types

// FileInfo describes an open file as reported to the host.
type FileInfo struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Encoding  string `json:"encoding"`
	LineCount int    `json:"line_count"`
}

// SearchMatch is one match enriched with its surrounding line for display.
// LineNumber is 1-based. MatchStart is the offset of the match within
// LineContent, in bytes.
type SearchMatch struct {
	LineNumber  int    `json:"line_number"`
	LineContent string `json:"line_content"`
	MatchStart  int    `json:"match_start"`
	MatchLength int    `json:"match_length"`
	ByteOffset  int64  `json:"byte_offset"`
}

// SearchResult is one page of matches plus the whole-file total.
type SearchResult struct {
	TotalMatches int           `json:"total_matches"`
	Matches      []SearchMatch `json:"matches"`
	Page         int           `json:"page"`
	PageSize     int           `json:"page_size"`
}

// EncodingOption pairs a user-facing label with the canonical encoding name.
type EncodingOption struct {
	Label string `json:"label"`
	Name  string `json:"name"`
}

// DetectionResult reports the outcome of encoding detection over a sample.
type DetectionResult struct {
	Encoding   string  `json:"encoding"`
	Confidence float32 `json:"confidence"`
	HasBOM     bool    `json:"has_bom"`
}
