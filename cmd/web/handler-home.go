package main

import (
	"net/http"
)

func (app *application) home(w http.ResponseWriter, r *http.Request) {
	st := app.loadState(r.Context())
	app.render(w, r, http.StatusOK, "home", "base", app.newWorkspaceTemplateData(r, st, ""))
}
