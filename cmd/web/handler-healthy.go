package main

import (
	"encoding/json"
	"github.com/myrjola/fsvalidator/internal/errors"
	"log/slog"
	"net/http"
)

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Analysis string `json:"analysis"`
	Catalog  int    `json:"catalogVersion"`
}

// healthy responds with a JSON object indicating whether the server and its database are healthy.
func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Database: "ok",
		Analysis: "enabled",
		Catalog:  app.catalog.Version(),
	}
	status := http.StatusOK
	if err := app.db.Ping(r.Context()); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "database unhealthy", errors.SlogError(err))
		resp.Status, resp.Database = "unavailable", "unreachable"
		status = http.StatusServiceUnavailable
	}
	if !app.analyzer.Configured() {
		resp.Analysis = "disabled"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
