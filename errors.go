package invoicetable

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoColumns is returned when a source has no column-label line.
	ErrNoColumns = errors.New("grid has no columns")

	// ErrEmptyRow is the contract violation raised when a zero-length row
	// reaches the density classifier.
	ErrEmptyRow = errors.New("row has no cells")

	// ErrSourceTooLarge is returned when a source exceeds LoaderConfig.MaxBytes.
	ErrSourceTooLarge = errors.New("source exceeds the size limit")

	// ErrUnsupportedFormat is returned by LoadFile for unknown extensions.
	ErrUnsupportedFormat = errors.New("unsupported grid format")
)

// LoadError reports a source that is not a well-formed grid.
type LoadError struct {
	Source string // File name, when known
	Line   int    // 1-based source line, 0 when not line specific
	Err    error
}

func (e *LoadError) Error() string {
	switch {
	case e.Source != "" && e.Line > 0:
		return fmt.Sprintf("load %s: line %d: %v", e.Source, e.Line, e.Err)
	case e.Source != "":
		return fmt.Sprintf("load %s: %v", e.Source, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("load: line %d: %v", e.Line, e.Err)
	default:
		return fmt.Sprintf("load: %v", e.Err)
	}
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// FormatError reports a malformed codec entry sequence.
type FormatError struct {
	Index  int // Entry position, -1 when the problem is not tied to one entry
	Reason string
}

func (e *FormatError) Error() string {
	if e.Index < 0 {
		return "format: " + e.Reason
	}
	return fmt.Sprintf("format: entry %d: %s", e.Index, e.Reason)
}

func errRaggedRow(got, want int) error {
	return errors.Errorf("row has %d fields, want %d", got, want)
}

// withSource stamps a source name onto a LoadError, wrapping any other error.
func withSource(err error, source string) error {
	if err == nil {
		return nil
	}
	var le *LoadError
	if errors.As(err, &le) {
		if le.Source == "" {
			le.Source = source
		}
		return le
	}
	return &LoadError{Source: source, Err: err}
}
