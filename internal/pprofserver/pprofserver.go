// Package pprofserver serves profiling and metrics endpoints on a separate, private address.
package pprofserver

import (
	"context"
	"github.com/myrjola/fsvalidator/internal/errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"time"
)

func Handle(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
}

// NewServeMux returns a mux with the pprof endpoints and metrics served at /metrics.
func NewServeMux(metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	Handle(mux)
	mux.Handle("/metrics", metrics)
	return mux
}

// Launch serves NewServeMux at addr in the background until ctx is done. addr should be a loopback address so that
// the endpoints are not open to the world.
//
// Failures are logged. The debug server going down does not stop the application.
func Launch(ctx context.Context, addr string, metrics http.Handler, logger *slog.Logger) {
	srv := &http.Server{ //nolint:exhaustruct // defaults are fine for the rest.
		Handler:           NewServeMux(metrics),
		ReadHeaderTimeout: time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failed to start debug server",
			errors.SlogError(errors.Wrap(err, "TCP listen", slog.String("addr", addr))))
		return
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "starting debug server", slog.String("debug_addr", listener.Addr().String()))

	go func() {
		if serveErr := srv.Serve(listener); !errors.Is(serveErr, http.ErrServerClosed) {
			logger.LogAttrs(ctx, slog.LevelError, "debug server failed", errors.SlogError(serveErr))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
