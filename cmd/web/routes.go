package main

import (
	"github.com/justinas/alice"
	"github.com/myrjola/fsvalidator/ui"
	"io/fs"
	"net/http"
	"time"
)

func (app *application) routes(requestTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	staticFiles, err := fs.Sub(ui.Files, "static")
	if err != nil {
		panic(err) // the static directory is embedded at compile time
	}
	mux.Handle("GET /static/", http.StripPrefix("/static", http.FileServerFS(staticFiles)))
	mux.HandleFunc("GET /api/healthy", app.healthy)

	session := alice.New(app.sessionManager.LoadAndSave, noSurf, commonContext)
	// Transitions lock the session so that its state is loaded and saved by one request at a time.
	transition := alice.New(
		app.exclusive,
		detachContext,
		app.sessionManager.LoadAndSave,
		app.limitBody,
		noSurf,
		commonContext,
	)

	mux.Handle("GET /{$}", session.ThenFunc(app.home))
	mux.Handle("POST /documents", transition.ThenFunc(app.uploadDocument))
	mux.Handle("POST /categories/{key}", transition.ThenFunc(app.selectCategory))
	mux.Handle("POST /questions", transition.ThenFunc(app.selectQuestion))

	return alice.New(app.recoverPanic, app.logRequest, secureHeaders).Then(timeoutHandler(mux, requestTimeout))
}
