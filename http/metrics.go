package http

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/freekieb7/halley/http"

type serverMetrics struct {
	connections metric.Int64Counter
	replies     metric.Int64Counter
	errors      metric.Int64Counter
	duration    metric.Float64Histogram
}

func newServerMetrics() serverMetrics {
	meter := otel.Meter(instrumentationName)

	var m serverMetrics
	var err error

	m.connections, err = meter.Int64Counter("halley.server.connections",
		metric.WithDescription("The number of served connections and streams"),
		metric.WithUnit("{connection}"))
	if err != nil {
		otel.Handle(err)
		m.connections = noop.Int64Counter{}
	}

	m.replies, err = meter.Int64Counter("halley.server.replies",
		metric.WithDescription("The number of finalized replies by status code"),
		metric.WithUnit("{reply}"))
	if err != nil {
		otel.Handle(err)
		m.replies = noop.Int64Counter{}
	}

	m.errors, err = meter.Int64Counter("halley.server.errors",
		metric.WithDescription("The number of per-connection failures by kind"),
		metric.WithUnit("{error}"))
	if err != nil {
		otel.Handle(err)
		m.errors = noop.Int64Counter{}
	}

	m.duration, err = meter.Float64Histogram("halley.server.duration",
		metric.WithDescription("Time spent serving one request"),
		metric.WithUnit("s"))
	if err != nil {
		otel.Handle(err)
		m.duration = noop.Float64Histogram{}
	}

	return m
}
