package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/freekieb7/halley/config"
	"github.com/freekieb7/halley/http"
	"github.com/freekieb7/halley/telemetry"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const name = "github.com/freekieb7/halley"

// newLogger sends records to the OTel log pipeline once telemetry has
// installed a provider, and to stderr otherwise.
func newLogger(telemetryEnabled bool) *slog.Logger {
	if telemetryEnabled {
		return otelslog.NewLogger(name)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context) (err error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	cfg, err := config.Load(os.Getenv("HALLEY_CONFIG"))
	if err != nil {
		return err
	}

	otelShutdown, err := telemetry.Setup(ctx, cfg.TelemetryConfig())
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, otelShutdown(context.Background()))
	}()

	logger := newLogger(cfg.Telemetry)

	router := http.NewRouter()

	router.GET("/", func(req *http.Request, reply *http.Reply) {
		reply.Send("Hello from halley")
	})

	router.GET("/about", func(req *http.Request, reply *http.Reply) {
		reply.Send("<h1>About</h1><p>A small HTTP/1.1 toolkit.</p>")
	})

	router.GET("/files/index.html", func(req *http.Request, reply *http.Reply) {
		if err := reply.SendFile("index.html"); err != nil {
			logger.WarnContext(req.Context(), "serving file failed", "error", err)
			reply.Status(http.StatusNotFound)
			reply.Send(http.StatusText(http.StatusNotFound))
		}
	})

	router.GET("/teapot", func(req *http.Request, reply *http.Reply) {
		reply.Status(http.StatusTeapot)
		reply.Send(http.StatusText(http.StatusTeapot))
	})

	router.GET("/hello", func(req *http.Request, reply *http.Reply) {
		name := "stranger"
		if cookie, err := req.Cookie("name"); err == nil {
			name = cookie.Value
		}
		reply.Send("Hello, " + name)
	})

	serverConfig := cfg.ServerConfig()
	serverConfig.Logger = logger
	server := http.NewServer(serverConfig, router.Handler())

	serverErrCh := make(chan error, 3)

	go func() {
		serverErrCh <- server.ListenAndServe(ctx, cfg.Addr)
	}()

	if cfg.StdAddr != "" {
		go func() {
			serverErrCh <- serveStd(ctx, cfg.StdAddr, server, logger)
		}()
	}

	if cfg.QUICEnabled() {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return err
		}

		go func() {
			serverErrCh <- server.ListenAndServeQUIC(ctx, cfg.QUICAddr, &tls.Config{
				Certificates: []tls.Certificate{cert},
			})
		}()
	}

	select {
	case err := <-serverErrCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
