package main

import (
	"context"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/donseba/go-htmx"
	"github.com/joho/godotenv"
	"github.com/myrjola/fsvalidator/internal/ai"
	"github.com/myrjola/fsvalidator/internal/catalog"
	"github.com/myrjola/fsvalidator/internal/envstruct"
	"github.com/myrjola/fsvalidator/internal/errors"
	"github.com/myrjola/fsvalidator/internal/ingest"
	"github.com/myrjola/fsvalidator/internal/logging"
	"github.com/myrjola/fsvalidator/internal/metrics"
	"github.com/myrjola/fsvalidator/internal/pprofserver"
	"github.com/myrjola/fsvalidator/internal/sqlite"
	"github.com/myrjola/fsvalidator/internal/workflow"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type application struct {
	logger         *slog.Logger
	sessionManager *scs.SessionManager
	catalog        *catalog.Catalog
	store          *workflow.Store
	gate           *workflow.Gate
	analyzer       *ai.Client
	metrics        *metrics.Recorder
	htmx           *htmx.HTMX
	db             *sqlite.Database
	maxUploadBytes int64
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"FSV_ADDR" envDefault:"localhost:4000"`
	// DebugAddr serves pprof and Prometheus metrics when set. Keep it on a loopback address.
	DebugAddr string `env:"FSV_DEBUG_ADDR" envDefault:""`
	// SqliteURL is the URL to the SQLite database holding the sessions.
	SqliteURL       string        `env:"FSV_SQLITE_URL" envDefault:":memory:"`
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIBaseURL   string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel     string        `env:"FSV_OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIMaxTokens int           `env:"FSV_OPENAI_MAX_TOKENS" envDefault:"1500"`
	MaxUploadBytes  int64         `env:"FSV_MAX_UPLOAD_BYTES" envDefault:"52428800"`
	CatalogPath     string        `env:"FSV_CATALOG_PATH" envDefault:""`
	SessionLifetime time.Duration `env:"FSV_SESSION_LIFETIME" envDefault:"12h"`
	// RequestTimeout bounds the whole request including the model call.
	RequestTimeout time.Duration `env:"FSV_REQUEST_TIMEOUT" envDefault:"2m"`
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		err error
		cfg config
	)
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	var cat *catalog.Catalog
	if cfg.CatalogPath != "" {
		cat, err = catalog.LoadFile(cfg.CatalogPath)
	} else {
		cat, err = catalog.Default()
	}
	if err != nil {
		return errors.Wrap(err, "load catalog", slog.String("path", cfg.CatalogPath))
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, cfg.SqliteURL, logger); err != nil {
		return errors.Wrap(err, "open database", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to close database", errors.SlogError(closeErr))
		}
	}()
	go db.StartDatabaseOptimizer(ctx, time.Hour)

	sessionManager := scs.New()
	sessionManager.Store = sqlite3store.NewWithCleanupInterval(db.ReadWrite, time.Hour)
	sessionManager.Lifetime = cfg.SessionLifetime
	sessionManager.Cookie.Name = "fsv_session"
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode

	analyzer := ai.NewClient(ai.Config{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		Model:     cfg.OpenAIModel,
		MaxTokens: cfg.OpenAIMaxTokens,
		Timeout:   cfg.RequestTimeout,
	}, logger)
	if !analyzer.Configured() {
		logger.LogAttrs(ctx, slog.LevelWarn, "OpenAI API key not found, analysis is disabled")
	}

	recorder := metrics.NewRecorder()
	if cfg.DebugAddr != "" {
		pprofserver.Launch(ctx, cfg.DebugAddr, recorder.Handler(), logger)
	}

	app := application{
		logger:         logger,
		sessionManager: sessionManager,
		catalog:        cat,
		store:          workflow.NewStore(cat, ingest.NewExtractor(logger), analyzer, nil, logger),
		gate:           workflow.NewGate(),
		analyzer:       analyzer,
		metrics:        recorder,
		htmx:           htmx.New(),
		db:             db,
		maxUploadBytes: cfg.MaxUploadBytes,
	}

	if err = app.configureAndStartServer(ctx, cfg.Addr, cfg.RequestTimeout); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var startupErr error
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		startupErr = errors.Wrap(err, "load .env")
	}
	level := slog.LevelInfo
	if raw, ok := os.LookupEnv("FSV_LOG_LEVEL"); ok {
		var err error
		if level, err = logging.ParseLevel(raw); err != nil {
			startupErr = errors.Join(startupErr, err)
		}
	}
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       level,
		ReplaceAttr: nil,
	})))
	if startupErr != nil {
		logger.LogAttrs(ctx, slog.LevelWarn, "ignoring invalid startup configuration", errors.SlogError(startupErr))
	}

	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
