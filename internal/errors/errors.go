package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error types for the large text viewer engine
type ErrorType string

const (
	// File errors
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypeEmptyFile    ErrorType = "empty_file"
	ErrorTypePermission   ErrorType = "permission"

	// Operation errors
	ErrorTypeMapping ErrorType = "mapping"
	ErrorTypeSearch  ErrorType = "search"
	ErrorTypeReplace ErrorType = "replace"
	ErrorTypeRange   ErrorType = "range"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// ErrFileBusy marks a rename that was refused because another process holds
// the target open. Check with errors.Is.
var ErrFileBusy = errors.New("file is in use by another process")

// FileError represents a file-related error
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error with context
func NewFileError(op, path string, err error) *FileError {
	return &FileError{
		Type:       ErrorTypeFileNotFound,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// MappingError represents a memory-map construction failure.
// Empty files are rejected at window construction with this type.
type MappingError struct {
	Type       ErrorType
	Path       string
	Size       int64
	Underlying error
	Timestamp  time.Time
}

// NewMappingError creates a new mapping error
func NewMappingError(path string, size int64, err error) *MappingError {
	return &MappingError{
		Type:       ErrorTypeMapping,
		Path:       path,
		Size:       size,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// NewEmptyFileError creates the mapping error for a zero-length file
func NewEmptyFileError(path string) *MappingError {
	return &MappingError{
		Type:      ErrorTypeEmptyFile,
		Path:      path,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (e *MappingError) Error() string {
	if e.Type == ErrorTypeEmptyFile {
		return fmt.Sprintf("cannot memory-map an empty file: %s", e.Path)
	}
	return fmt.Sprintf("memory-map failed for %s (%d bytes): %v", e.Path, e.Size, e.Underlying)
}

// Unwrap returns the underlying error
func (e *MappingError) Unwrap() error {
	return e.Underlying
}

// IsEmptyFile reports whether err is the empty-file rejection
func IsEmptyFile(err error) bool {
	var me *MappingError
	return errors.As(err, &me) && me.Type == ErrorTypeEmptyFile
}

// SearchError represents a search operation error
type SearchError struct {
	Type       ErrorType
	Query      string
	Underlying error
	Timestamp  time.Time
}

// NewSearchError creates a new search error
func NewSearchError(query string, err error) *SearchError {
	return &SearchError{
		Type:       ErrorTypeSearch,
		Query:      query,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *SearchError) Error() string {
	return fmt.Sprintf("search failed for query %q: %v", e.Query, e.Underlying)
}

// Unwrap returns the underlying error
func (e *SearchError) Unwrap() error {
	return e.Underlying
}

// ReplaceError represents a replace operation error
type ReplaceError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewReplaceError creates a new replace error
func NewReplaceError(op, path string, err error) *ReplaceError {
	return &ReplaceError{
		Type:       ErrorTypeReplace,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ReplaceError) Error() string {
	return fmt.Sprintf("replace %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ReplaceError) Unwrap() error {
	return e.Underlying
}

// RangeError reports a line number outside the indexed file
type RangeError struct {
	Type      ErrorType
	Line      int
	Total     int
	Timestamp time.Time
}

// NewRangeError creates a new out-of-range error
func NewRangeError(line, total int) *RangeError {
	return &RangeError{
		Type:      ErrorTypeRange,
		Line:      line,
		Total:     total,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (e *RangeError) Error() string {
	return fmt.Sprintf("line %d out of range (file has %d lines)", e.Line, e.Total)
}
