package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/freekieb7/halley/filesystem"
	"github.com/freekieb7/halley/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// maxAcceptDelay bounds the backoff after repeated accept failures.
const maxAcceptDelay = time.Second

// aLongTimeAgo is a read deadline that fails a pending read immediately.
var aLongTimeAgo = time.Unix(1, 0)

type Config struct {
	Name          string
	AllowedOrigin string
	ContentType   string

	// Concurrent serves every connection on its own goroutine. When false,
	// connections are handled one at a time in acceptance order.
	Concurrent bool

	// Zero disables the deadline.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Filesystem filesystem.Filesystem
	Logger     *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Name:          "halley",
		AllowedOrigin: DefaultAllowedOrigin,
		ContentType:   DefaultContentType,
	}
}

type Server struct {
	config  Config
	handler Handler

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics serverMetrics
	buffers *bufferPool

	mu         sync.Mutex
	listeners  map[io.Closer]struct{}
	inShutdown atomic.Bool
	conns      sync.WaitGroup

	// shutdownCtx is cancelled by Shutdown to interrupt connections still
	// waiting for their request.
	shutdownCtx    context.Context
	cancelShutdown context.CancelFunc
}

func NewServer(config Config, handler Handler) *Server {
	defaults := DefaultConfig()
	if config.Name == "" {
		config.Name = defaults.Name
	}
	if config.AllowedOrigin == "" {
		config.AllowedOrigin = defaults.AllowedOrigin
	}
	if config.ContentType == "" {
		config.ContentType = defaults.ContentType
	}
	if config.Filesystem == nil {
		config.Filesystem = filesystem.NewLocalFileSystem()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if handler == nil {
		handler = NotFoundHandler
	}

	shutdownCtx, cancelShutdown := context.WithCancel(context.Background())

	return &Server{
		config:    config,
		handler:   handler,
		logger:    logger.With("server", config.Name),
		tracer:    otel.Tracer(instrumentationName),
		metrics:   newServerMetrics(),
		buffers:   newBufferPool(),
		listeners: make(map[io.Closer]struct{}),

		shutdownCtx:    shutdownCtx,
		cancelShutdown: cancelShutdown,
	}
}

// Listen binds addr and serves handler with the default configuration until
// the process exits.
func Listen(addr string, handler Handler) error {
	return NewServer(DefaultConfig(), handler).ListenAndServe(context.Background(), addr)
}

// ListenAndServe binds a TCP listener on addr and serves it. A bind failure is
// returned immediately.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrBind, addr, err)
	}

	s.logger.InfoContext(ctx, "listening", "addr", listener.Addr().String(), "concurrent", s.config.Concurrent)

	return s.Serve(ctx, listener)
}

// Serve accepts connections until ctx is done or the server shuts down, in
// which case ErrServerClosed is returned. Failed accepts are logged and
// retried with backoff.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
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
		conn, err := listener.Accept()
		if err != nil {
			if s.closing(ctx) {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("%w: %w", ErrAccept, err)
			}

			delay = nextAcceptDelay(delay)
			s.logger.WarnContext(ctx, "accept failed", "error", err, "retry_in", delay)
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
				s.ServeConn(ctx, conn)
			}()
			continue
		}

		s.ServeConn(ctx, conn)
		s.conns.Done()
	}
}

// ServeConn runs one request/reply cycle on conn and closes it.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if s.config.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	}
	if s.config.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}

	remoteAddr := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remoteAddr = addr.String()
	}

	s.serveStream(ctx, conn, remoteAddr, "tcp")
}

// Shutdown stops all listeners, drops connections that have not sent a
// request yet and waits for the handlers still running.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.cancelShutdown()

	s.mu.Lock()
	for listener := range s.listeners {
		listener.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) trackListener(listener io.Closer, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if add {
		if s.inShutdown.Load() {
			return false
		}
		s.listeners[listener] = struct{}{}
	} else {
		delete(s.listeners, listener)
	}
	return true
}

func (s *Server) replyConfig() ReplyConfig {
	return ReplyConfig{
		ContentType:   s.config.ContentType,
		AllowedOrigin: s.config.AllowedOrigin,
		Filesystem:    s.config.Filesystem,
	}
}

// serveStream reads one request from rw and dispatches it.
func (s *Server) serveStream(ctx context.Context, rw io.ReadWriter, remoteAddr, transport string) {
	start := time.Now()
	connID := uuid.NewV4().String()

	ctx, span := s.tracer.Start(ctx, "halley.connection",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("halley.connection.id", connID),
			attribute.String("network.peer.address", remoteAddr),
			attribute.String("network.transport", transport),
		))
	defer span.End()

	s.metrics.connections.Add(ctx, 1, metric.WithAttributes(attribute.String("network.transport", transport)))

	logger := s.logger.With("conn_id", connID, "remote_addr", remoteAddr)

	buffers := s.buffers.get(rw)
	defer s.buffers.put(buffers)

	reply := NewReply(buffers.writer, s.replyConfig())

	stopInterrupt := s.interruptRead(ctx, rw)
	req, err := ReadRequest(buffers.reader, remoteAddr)
	stopInterrupt()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		if errors.Is(err, os.ErrDeadlineExceeded) && s.closing(ctx) {
			logger.DebugContext(ctx, "dropped idle connection on shutdown")
			return
		}

		code, kind := StatusBadRequest, "parse"
		if errors.Is(err, os.ErrDeadlineExceeded) {
			code, kind = StatusRequestTimeout, "timeout"
		}

		logger.WarnContext(ctx, "reading request failed", "error", err)
		s.recordError(ctx, span, kind, err)

		_ = reply.Status(code)
		if err := reply.Send(StatusText(code)); err != nil {
			logger.WarnContext(ctx, "writing reply failed", "error", err)
			s.recordError(ctx, span, "transport", err)
		}
		return
	}
	req.ctx = ctx

	s.dispatch(ctx, logger, span, req, reply, start)
}

// dispatch invokes the handler and records the outcome. Misbehaving handlers
// only ever affect their own connection.
func (s *Server) dispatch(ctx context.Context, logger *slog.Logger, span trace.Span, req *Request, reply *Reply, start time.Time) {
	span.SetAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("url.path", req.URL),
	)

	s.invoke(ctx, logger, span, req, reply)

	if !reply.Finalized() {
		logger.WarnContext(ctx, "handler returned without finalizing the reply, no response sent",
			"method", req.Method, "url", req.URL)
		s.recordError(ctx, span, "unfinalized", nil)
		return
	}

	if reply.transportErr != nil {
		logger.WarnContext(ctx, "writing reply failed", "error", reply.transportErr)
		s.recordError(ctx, span, "transport", reply.transportErr)
	}

	status := attribute.String("http.response.status_code", strconv.Itoa(int(reply.StatusCode())))
	span.SetAttributes(status)
	s.metrics.replies.Add(ctx, 1, metric.WithAttributes(status))
	s.metrics.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(status))

	logger.DebugContext(ctx, "served",
		"method", req.Method,
		"url", req.URL,
		"status", reply.StatusCode(),
		"bytes", reply.BytesWritten(),
		"duration", time.Since(start))
}

func (s *Server) invoke(ctx context.Context, logger *slog.Logger, span trace.Span, req *Request, reply *Reply) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}

		logger.ErrorContext(ctx, "handler panicked", "panic", recovered, "stack", string(debug.Stack()))
		s.recordError(ctx, span, "panic", fmt.Errorf("panic: %v", recovered))

		if reply.Finalized() {
			return
		}
		if err := reply.Status(StatusInternalServerError); err != nil {
			return
		}
		_ = reply.Send(StatusText(StatusInternalServerError))
	}()

	s.handler.ServeHTTP(req, reply)
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// interruptRead fails a read pending on rw once ctx is done or the server
// shuts down. The returned func stops watching.
func (s *Server) interruptRead(ctx context.Context, rw io.ReadWriter) (stop func()) {
	conn, ok := rw.(readDeadliner)
	if !ok {
		return func() {}
	}

	wake := func() {
		conn.SetReadDeadline(aLongTimeAgo)
	}
	stopCtx := context.AfterFunc(ctx, wake)
	stopShutdown := context.AfterFunc(s.shutdownCtx, wake)

	return func() {
		stopCtx()
		stopShutdown()
	}
}

func (s *Server) closing(ctx context.Context) bool {
	return s.inShutdown.Load() || ctx.Err() != nil
}

func (s *Server) recordError(ctx context.Context, span trace.Span, kind string, err error) {
	s.metrics.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("error.kind", kind)))
	if err != nil {
		span.RecordError(err)
	}
	span.SetStatus(codes.Error, kind)
}

func nextAcceptDelay(delay time.Duration) time.Duration {
	if delay == 0 {
		return 5 * time.Millisecond
	}
	delay *= 2
	if delay > maxAcceptDelay {
		delay = maxAcceptDelay
	}
	return delay
}
