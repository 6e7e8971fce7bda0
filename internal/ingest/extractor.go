// Package ingest converts uploaded PDF bytes into plain text.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"github.com/ledongthuc/pdf"
	"github.com/myrjola/fsvalidator/internal/errors"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"log/slog"
	"strings"
)

// Result is the text of a document. Pages is the number of pages in the document, including failed ones.
type Result struct {
	Text  string
	Pages int
}

// Extractor reads PDF documents page by page.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger.With(slog.String("source", "ingest"))}
}

// Extract returns the text of every page in page order, each page followed by a line break.
//
// The document is read from memory so that nothing has to be cleaned up afterwards. On failure the returned error is
// an *Error. When only some pages fail, the Result still carries the text of the pages that could be read.
func (e *Extractor) Extract(ctx context.Context, data []byte) (Result, error) {
	reader, err := openReader(data)
	if err != nil {
		return Result{}, &Error{Cause: errors.Wrap(ErrUnreadable, err.Error())}
	}

	pages := reader.NumPage()
	if inspected, inspectErr := api.PageCount(bytes.NewReader(data), nil); inspectErr != nil {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "failed to inspect PDF page count", errors.SlogError(inspectErr))
	} else if inspected != pages {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "page count mismatch",
			slog.Int("inspected", inspected), slog.Int("readable", pages))
	}
	if pages == 0 {
		return Result{}, &Error{Cause: ErrNoPages}
	}

	var (
		text     strings.Builder
		failures []PageFailure
	)
	for i := 1; i <= pages; i++ {
		var pageText string
		if pageText, err = readPage(reader, i); err != nil {
			failures = append(failures, PageFailure{Page: i, Err: err})
			continue
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}

	result := Result{Text: text.String(), Pages: pages}
	if len(failures) == pages {
		return Result{Pages: pages}, &Error{Pages: failures}
	}
	if len(failures) > 0 {
		return result, &Error{Pages: failures}
	}
	return result, nil
}

// openReader wraps pdf.NewReader because the library panics on some malformed inputs.
func openReader(data []byte) (reader *pdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			reader, err = nil, fmt.Errorf("%v", r)
		}
	}()
	if len(data) == 0 {
		return nil, errors.New("empty document")
	}
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func readPage(reader *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%v", r)
		}
	}()
	page := reader.Page(num)
	if page.V.IsNull() {
		return "", errors.New("missing page object")
	}
	if text, err = page.GetPlainText(nil); err != nil {
		return "", errors.Wrap(err, "get plain text")
	}
	return text, nil
}
