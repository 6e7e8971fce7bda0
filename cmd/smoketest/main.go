package main

import (
	"context"
	"github.com/myrjola/fsvalidator/internal/e2etest"
	"github.com/myrjola/fsvalidator/internal/errors"
	"github.com/myrjola/fsvalidator/internal/logging"
	"github.com/myrjola/fsvalidator/internal/testhelpers"
	"log/slog"
	"os"
	"time"
)

// TestWorkflow uploads a small statement and selects a category. It does not ask questions so that the smoke test
// does not spend API credits.
func TestWorkflow(client *e2etest.Client) error {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()

	if err := client.WaitForReady(ctx, "/api/healthy"); err != nil {
		return errors.Wrap(err, "wait for ready")
	}
	doc, err := client.UploadDocument(ctx, "smoketest.pdf", testhelpers.PDF("Smoke test balance sheet"))
	if err != nil {
		return errors.Wrap(err, "upload document")
	}
	if doc.Find("[data-testid=ingestion-error]").Length() != 0 {
		return errors.New("text extraction failed", slog.String("error", doc.Find("[data-testid=ingestion-error]").Text()))
	}
	if doc, err = client.SelectCategory(ctx, "basic"); err != nil {
		return errors.Wrap(err, "select category")
	}
	if doc.Find("button.question").Length() == 0 {
		return errors.New("no questions listed")
	}
	return nil
}

func main() {
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		url      = "https://" + hostname
		client   *e2etest.Client
		err      error
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", url))

	if client, err = e2etest.NewClient(url); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", errors.SlogError(err))
		os.Exit(1)
	}
	if err = TestWorkflow(client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing workflow", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌")
	os.Exit(0)
}
