package main

import (
	"context"
	"errors"
	"log/slog"
	nethttp "net/http"
	"time"

	"github.com/freekieb7/halley/http"
	"github.com/go-chi/chi/v5"
)

// newStdRouter exposes the server through net/http next to a health check.
func newStdRouter(server *http.Server) nethttp.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	r.Handle("/*", server.StdHandler())
	return r
}

// serveStd runs a net/http server on addr until ctx is done.
func serveStd(ctx context.Context, addr string, server *http.Server, logger *slog.Logger) error {
	stdServer := &nethttp.Server{
		Addr:              addr,
		Handler:           newStdRouter(server),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		stdServer.Shutdown(shutdownCtx)
	})
	defer stop()

	logger.InfoContext(ctx, "listening", "addr", addr, "transport", "net/http")

	err := stdServer.ListenAndServe()
	if errors.Is(err, nethttp.ErrServerClosed) {
		return http.ErrServerClosed
	}
	return err
}
