package main

import (
	"context"
	"github.com/myrjola/fsvalidator/internal/errors"
	"github.com/myrjola/fsvalidator/internal/metrics"
	"github.com/myrjola/fsvalidator/internal/workflow"
	"log/slog"
	"net/http"
	"time"
)

func (app *application) selectQuestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := app.loadState(ctx)
	question := r.PostFormValue("question")

	// The analysis finishes even if the client goes away so that the answer ends up in the history.
	start := time.Now()
	record, err := app.store.SelectQuestion(context.WithoutCancel(ctx), st, question)
	switch {
	case errors.Is(err, workflow.ErrNoDocument):
		app.respond(w, r, st, "Upload a financial statement first.")
		return
	case errors.Is(err, workflow.ErrNoCategory):
		app.respond(w, r, st, "Select a validation category first.")
		return
	case errors.Is(err, workflow.ErrTextPending):
		app.respond(w, r, st, "The document is still being processed. Try again in a moment.")
		return
	case errors.Is(err, workflow.ErrUnknownQuestion):
		app.clientError(w, r, http.StatusUnprocessableEntity)
		return
	case err != nil:
		app.serverError(w, r, errors.Wrap(err, "select question"))
		return
	}

	outcome := metrics.OutcomeOK
	switch record.FailureKind {
	case workflow.FailureConfiguration:
		outcome = metrics.OutcomeUnconfigured
	case workflow.FailureAnalysis:
		outcome = metrics.OutcomeFailed
	}
	app.metrics.Analysis(outcome, time.Since(start))
	app.logger.LogAttrs(ctx, slog.LevelInfo, "question analyzed",
		slog.String("record", record.ID), slog.String("outcome", outcome))

	app.saveState(ctx, st)
	app.respond(w, r, st, "")
}
