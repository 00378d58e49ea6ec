package main

import (
	"context"
	"io"
	"log/slog"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/freekieb7/halley/http"
	"github.com/freekieb7/halley/test"
)

func TestStdRouter(t *testing.T) {
	router := http.NewRouter()
	router.GET("/", func(req *http.Request, reply *http.Reply) {
		reply.Send("root")
	})

	ts := httptest.NewServer(newStdRouter(http.NewServer(http.DefaultConfig(), router.Handler())))
	defer ts.Close()

	client := &nethttp.Client{Transport: &nethttp.Transport{DisableKeepAlives: true}}

	for path, want := range map[string]string{
		"/healthz": "ok",
		"/":        "root",
	} {
		resp, err := client.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatal(err)
		}

		test.AssertEqual(t, nethttp.StatusOK, resp.StatusCode)
		test.AssertEqual(t, want, string(body))
	}
}

func TestNewLoggerWithoutTelemetry(t *testing.T) {
	logger := newLogger(false)

	test.AssertEqual(t, true, logger.Enabled(context.Background(), slog.LevelInfo))
	test.AssertEqual(t, true, logger.Enabled(context.Background(), slog.LevelWarn))
}
