package http

import (
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// StdHandler exposes the server's handler to a net/http server. The request
// is parsed by net/http, the connection is hijacked and the Reply writes its
// header block and body directly to it.
func (s *Server) StdHandler() http.Handler {
	bridge := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		span := trace.SpanFromContext(ctx)
		logger := s.logger.With("remote_addr", r.RemoteAddr)

		req := &Request{
			RemoteAddr: r.RemoteAddr,
			Method:     r.Method,
			URL:        r.URL.RequestURI(),
			Proto:      r.Proto,
			ctx:        ctx,
		}
		for name, values := range r.Header {
			for _, value := range values {
				req.Headers.Add(name, value)
			}
		}
		if r.Host != "" && !req.Headers.Has(HeaderHost) {
			req.Headers.Add(HeaderHost, r.Host)
		}

		if r.Body != nil {
			body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
			if err != nil || len(body) > MaxRequestBodySize {
				http.Error(w, StatusText(StatusBadRequest), http.StatusBadRequest)
				s.recordError(ctx, span, "parse", err)
				return
			}
			if len(body) > 0 {
				req.Body = append(req.Body, body)
			}
		}

		hijacker, ok := w.(http.Hijacker)
		if !ok {
			logger.ErrorContext(ctx, "response writer does not support hijacking")
			http.Error(w, StatusText(StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		conn, rw, err := hijacker.Hijack()
		if err != nil {
			logger.ErrorContext(ctx, "hijacking connection failed", "error", err)
			s.recordError(ctx, span, "transport", err)
			return
		}
		defer conn.Close()

		s.metrics.connections.Add(ctx, 1)

		reply := NewReply(rw.Writer, s.replyConfig())
		s.dispatch(ctx, logger, span, req, reply, start)
	})

	return otelhttp.NewHandler(bridge, s.config.Name)
}
