package importer

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned for file extensions other than
// .json and .txt, before any parsing happens.
var ErrUnsupportedFormat = errors.New("unsupported file format: upload a .json or .txt file")

// Format identifies which parser produced an imported file.
type Format string

const (
	FormatJSON Format = "json"
	FormatTXT  Format = "txt"
)

// ParseError reports a file whose declared format's structural markers
// are absent or malformed.
type ParseError struct {
	Format Format
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s file: %s: %v", e.Format, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s file: %s", e.Format, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(format Format, reason string, err error) *ParseError {
	return &ParseError{Format: format, Reason: reason, Err: err}
}
