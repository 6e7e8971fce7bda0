package main

import (
	"context"
	"fmt"
	"github.com/justinas/nosurf"
	"github.com/myrjola/fsvalidator/internal/contexthelpers"
	"github.com/myrjola/fsvalidator/internal/errors"
	"github.com/myrjola/fsvalidator/internal/logging"
	"github.com/myrjola/fsvalidator/internal/random"
	"github.com/myrjola/fsvalidator/internal/workflow"
	"log/slog"
	"net/http"
	"time"
)

func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var nonceLength uint = 24
		nonce, err := random.Letters(nonceLength)
		if err != nil {
			panic(errors.Wrap(err, "generate CSP nonce"))
		}
		r = contexthelpers.SetCSPNonce(r, nonce)

		w.Header().Set("Content-Security-Policy",
			fmt.Sprintf("script-src 'nonce-%s' 'strict-dynamic' https: http:; object-src 'none'; base-uri 'none';",
				nonce))
		w.Header().Set("Referrer-Policy", "origin-when-cross-origin")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-XSS-Protection", "0")

		next.ServeHTTP(w, r)
	})
}

func (app *application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			proto  = r.Proto
			method = r.Method
			uri    = r.URL.RequestURI()
			start  = time.Now()
		)
		ctx := logging.WithAttrs(r.Context(), slog.String("method", method), slog.String("uri", uri))
		r = r.WithContext(ctx)

		app.logger.LogAttrs(ctx, slog.LevelDebug, "received request", slog.String("proto", proto))
		next.ServeHTTP(w, r)
		app.logger.LogAttrs(ctx, slog.LevelDebug, "request done", slog.Duration("duration", time.Since(start)))
	})
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.serverError(w, r, fmt.Errorf("%s", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

const busyNotice = "Another request is still running. Wait for it to finish before trying again."

// exclusive rejects a request with 409 Conflict while another transition of the same session is in flight.
func (app *application) exclusive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(app.sessionManager.Cookie.Name)
		if err != nil || cookie.Value == "" {
			// Without a session there is no state to protect.
			next.ServeHTTP(w, r)
			return
		}
		if err = app.gate.TryAcquire(cookie.Value); err != nil {
			if errors.Is(err, workflow.ErrBusy) {
				app.notice(w, r, http.StatusConflict, busyNotice)
				return
			}
			app.serverError(w, r, err)
			return
		}
		defer app.gate.Release(cookie.Value)
		next.ServeHTTP(w, r)
	})
}

// detachContext lets a transition run to completion and save the session even when the client disconnects or the
// request times out.
func detachContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithoutCancel(r.Context())))
	})
}

// limitBody caps the request body so that oversized uploads fail before they are read into memory.
func (app *application) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, app.maxUploadBytes)
		next.ServeHTTP(w, r)
	})
}

func commonContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = contexthelpers.SetCurrentPath(r, r.URL.Path)
		r = contexthelpers.SetCSRFToken(r, nosurf.Token(r))
		next.ServeHTTP(w, r)
	})
}

// noSurf implements CSRF protection using https://github.com/justinas/nosurf
func noSurf(next http.Handler) http.Handler {
	csrfHandler := nosurf.New(next)
	csrfHandler.SetBaseCookie(http.Cookie{ //nolint:exhaustruct // defaults are fine for the rest.
		HttpOnly: true,
		Path:     "/",
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	return csrfHandler
}
