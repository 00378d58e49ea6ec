package http

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/quic-go/quic-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// QUICProtocol is the ALPN identifier negotiated for HTTP/1.1 messages carried
// over QUIC streams.
const QUICProtocol = "halley/1"

// ListenAndServeQUIC binds a QUIC listener on addr and serves it. Each stream
// carries exactly one request and its reply.
func (s *Server) ListenAndServeQUIC(ctx context.Context, addr string, tlsConfig *tls.Config) error {
	if tlsConfig == nil {
		return fmt.Errorf("%w %s: missing tls config", ErrBind, addr)
	}

	tlsConfig = tlsConfig.Clone()
	if !slices.Contains(tlsConfig.NextProtos, QUICProtocol) {
		tlsConfig.NextProtos = append(tlsConfig.NextProtos, QUICProtocol)
	}

	listener, err := quic.ListenAddr(addr, tlsConfig, nil)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrBind, addr, err)
	}

	s.logger.InfoContext(ctx, "listening", "addr", listener.Addr().String(), "transport", "quic")

	return s.ServeQUIC(ctx, listener)
}

// ServeQUIC accepts QUIC connections until ctx is done or the server shuts
// down. Streams of one connection are served one after the other.
func (s *Server) ServeQUIC(ctx context.Context, listener *quic.Listener) error {
	return s.serveQUIC(ctx, listener)
}

type quicListener interface {
	Accept(ctx context.Context) (quic.Connection, error)
	Close() error
}

func (s *Server) serveQUIC(ctx context.Context, listener quicListener) error {
	if !s.trackListener(listener, true) {
		listener.Close()
		return ErrServerClosed
	}
	defer s.trackListener(listener, false)

	stop := context.AfterFunc(ctx, func() {
		listener.Close()
	})
	defer stop()

	var delay time.Duration
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if s.closing(ctx) || errors.Is(err, quic.ErrServerClosed) {
				return ErrServerClosed
			}

			delay = nextAcceptDelay(delay)
			s.logger.WarnContext(ctx, "accept failed", "error", err, "transport", "quic", "retry_in", delay)
			s.metrics.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("error.kind", "accept")))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ErrServerClosed
			}
			continue
		}
		delay = 0

		s.conns.Add(1)
		if s.config.Concurrent {
			go func() {
				defer s.conns.Done()
				s.serveQUICConn(ctx, conn)
			}()
			continue
		}

		s.serveQUICConn(ctx, conn)
		s.conns.Done()
	}
}

func (s *Server) serveQUICConn(ctx context.Context, conn quic.Connection) {
	defer conn.CloseWithError(0, "")

	// Waiting for the next stream ends on shutdown.
	acceptCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.shutdownCtx, cancel)
	defer stop()

	remoteAddr := conn.RemoteAddr().String()
	for {
		stream, err := conn.AcceptStream(acceptCtx)
		if err != nil {
			return
		}

		s.serveStream(ctx, stream, remoteAddr, "quic")
		stream.Close()
	}
}
