package document

import (
	"context"
	"fmt"
	"github.com/myrjola/fsvalidator/cmd/cli/checklist"
	"github.com/myrjola/fsvalidator/internal/ai"
	"github.com/myrjola/fsvalidator/internal/envstruct"
	"github.com/myrjola/fsvalidator/internal/errors"
	"github.com/myrjola/fsvalidator/internal/ingest"
	"github.com/myrjola/fsvalidator/internal/logging"
	"github.com/spf13/cobra"
	"log/slog"
	"os"
	"time"
)

var Group = &cobra.Group{
	ID:    "document",
	Title: "Document operations",
}

type config struct {
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIBaseURL   string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel     string        `env:"FSV_OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIMaxTokens int           `env:"FSV_OPENAI_MAX_TOKENS" envDefault:"1500"`
	RequestTimeout  time.Duration `env:"FSV_REQUEST_TIMEOUT" envDefault:"2m"`
}

// LookupEnv is used for configuration. Tests replace it.
var LookupEnv = os.LookupEnv

func init() {
	Ask.Flags().String("category", "basic", "category key")
	Ask.Flags().Int("question", 1, "question number within the category, see the catalog command")
	Ask.Flags().String("catalog", "", "catalog JSON file to use instead of the built-in one")
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	return slog.New(logging.NewContextHandler(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelWarn,
		ReplaceAttr: nil,
	})))
}

func extract(ctx context.Context, logger *slog.Logger, path string) (ingest.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ingest.Result{}, errors.Wrap(err, "read document", slog.String("path", path))
	}
	result, err := ingest.NewExtractor(logger).Extract(ctx, data)
	var ingestErr *ingest.Error
	if errors.As(err, &ingestErr) && ingestErr.Partial() {
		logger.LogAttrs(ctx, slog.LevelWarn, "some pages could not be read", errors.SlogError(err))
		return result, nil
	}
	return result, err //nolint:wrapcheck // ingest errors describe themselves.
}

var Extract = &cobra.Command{
	Use:     "extract [file.pdf]",
	GroupID: "document",
	Short:   "Extract text",
	Long:    "Prints the page count and the text extracted from a PDF document",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := extract(cmd.Context(), newLogger(cmd), args[0])
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pages: %d\n\n%s", result.Pages, result.Text)
		return nil
	},
}

var Ask = &cobra.Command{
	Use:     "ask [file.pdf]",
	GroupID: "document",
	Short:   "Validate a document",
	Long:    "Asks one checklist question about a PDF document and prints the answer",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			cfg config
			err error
		)
		if err = envstruct.Populate(&cfg, LookupEnv); err != nil {
			return errors.Wrap(err, "populate config")
		}
		catalogPath, _ := cmd.Flags().GetString("catalog")
		categoryKey, _ := cmd.Flags().GetString("category")
		number, _ := cmd.Flags().GetInt("question")

		cat, err := checklist.Load(catalogPath)
		if err != nil {
			return err
		}
		category, ok := cat.Lookup(categoryKey)
		if !ok {
			return errors.New("unknown category", slog.String("category", categoryKey))
		}
		if number < 1 || number > len(category.Questions) {
			return errors.New("question number out of range",
				slog.Int("question", number), slog.Int("questions", len(category.Questions)))
		}
		question := category.Questions[number-1]

		logger := newLogger(cmd)
		client := ai.NewClient(ai.Config{
			APIKey:    cfg.OpenAIAPIKey,
			BaseURL:   cfg.OpenAIBaseURL,
			Model:     cfg.OpenAIModel,
			MaxTokens: cfg.OpenAIMaxTokens,
			Timeout:   cfg.RequestTimeout,
		}, logger)
		if !client.Configured() {
			return ai.ErrNotConfigured
		}

		result, err := extract(cmd.Context(), logger, args[0])
		if err != nil {
			return err
		}
		answer, err := client.Analyze(cmd.Context(), result.Text, question)
		if err != nil {
			return errors.Wrap(err, "analyze document")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Q: %s\n\n%s\n", question, answer)
		return nil
	},
}
