package main

import (
	"fmt"
	"github.com/myrjola/fsvalidator/internal/errors"
	"github.com/myrjola/fsvalidator/internal/ingest"
	"github.com/myrjola/fsvalidator/internal/metrics"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

const maxMultipartMemory = 8 << 20

func (app *application) uploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			app.respond(w, r, app.loadState(ctx),
				fmt.Sprintf("The document exceeds the upload limit of %s.", formatBytes(maxBytesErr.Limit)))
			return
		}
		app.clientError(w, r, http.StatusBadRequest)
		return
	}
	// The server only cleans up the form of the request it created and middleware has replaced r since then.
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	var (
		file   multipart.File
		header *multipart.FileHeader
		err    error
	)
	if file, header, err = r.FormFile("document"); err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}
	defer func() {
		_ = file.Close()
	}()

	st := app.loadState(ctx)
	name := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		app.respond(w, r, st, "Only PDF files are supported.")
		return
	}

	var data []byte
	if data, err = io.ReadAll(file); err != nil {
		app.serverError(w, r, errors.Wrap(err, "read uploaded file", slog.String("document", name)))
		return
	}

	_, err = app.store.Upload(ctx, st, name, data)
	var ingestErr *ingest.Error
	switch {
	case errors.As(err, &ingestErr):
		// The failure is shown to the user with the document.
		app.metrics.Ingestion(metrics.OutcomeFailed)
	case err != nil:
		app.serverError(w, r, errors.Wrap(err, "upload document"))
		return
	default:
		app.metrics.Ingestion(metrics.OutcomeOK)
	}
	app.saveState(ctx, st)
	app.respond(w, r, st, "")
}
