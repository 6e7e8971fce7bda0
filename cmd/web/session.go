package main

import (
	"context"
	"encoding/gob"
	"github.com/myrjola/fsvalidator/internal/workflow"
)

func init() {
	gob.Register(workflow.State{})
}

const workflowSessionKey = "workflow"

// loadState returns the workflow of the current session. A new session starts with an empty workflow.
func (app *application) loadState(ctx context.Context) *workflow.State {
	st, ok := app.sessionManager.Get(ctx, workflowSessionKey).(workflow.State)
	if !ok {
		return &workflow.State{}
	}
	return &st
}

func (app *application) saveState(ctx context.Context, st *workflow.State) {
	app.sessionManager.Put(ctx, workflowSessionKey, *st)
}
