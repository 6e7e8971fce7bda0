package main

import (
	"github.com/myrjola/fsvalidator/internal/errors"
	"github.com/myrjola/fsvalidator/internal/workflow"
	"net/http"
)

func (app *application) selectCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := app.loadState(ctx)
	err := app.store.SelectCategory(st, r.PathValue("key"))
	switch {
	case errors.Is(err, workflow.ErrUnknownCategory):
		app.notFound(w, r)
		return
	case errors.Is(err, workflow.ErrNoDocument):
		app.respond(w, r, st, "Upload a financial statement first.")
		return
	case err != nil:
		app.serverError(w, r, errors.Wrap(err, "select category"))
		return
	}
	app.saveState(ctx, st)
	app.respond(w, r, st, "")
}
