package ingest

import (
	"fmt"
	"github.com/myrjola/fsvalidator/internal/errors"
	"strings"
)

var (
	ErrNoPages    = errors.NewSentinel("document has no pages")
	ErrUnreadable = errors.NewSentinel("document is not a readable PDF")
)

// PageFailure records why the text of a single page could not be read. Pages are numbered from 1.
type PageFailure struct {
	Page int
	Err  error
}

// Error is reported when a document or some of its pages could not be converted to text.
//
// Cause is set when the whole document failed. Pages lists the individual pages that failed while the rest of the
// document was read; the accompanying Result then holds the partial text.
type Error struct {
	Cause error
	Pages []PageFailure
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extract text: %v", e.Cause)
	}
	parts := make([]string, len(e.Pages))
	for i, failure := range e.Pages {
		parts[i] = fmt.Sprintf("page %d: %v", failure.Page, failure.Err)
	}
	return "extract text: " + strings.Join(parts, "; ")
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, len(e.Pages)+1)
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	for _, failure := range e.Pages {
		errs = append(errs, failure.Err)
	}
	return errs
}

// Partial reports whether some pages were read successfully despite the failure.
func (e *Error) Partial() bool {
	return e.Cause == nil && len(e.Pages) > 0
}
