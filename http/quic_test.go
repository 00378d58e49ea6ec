package http

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/freekieb7/halley/test"
	"github.com/quic-go/quic-go"
)

func selfSignedTLSConfig(t *testing.T) *tls.Config {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		NextProtos:   []string{QUICProtocol},
	}
}

func TestServeQUIC(t *testing.T) {
	router := NewRouter()
	router.GET("/", func(req *Request, reply *Reply) {
		reply.Send("over quic")
	})

	listener, err := quic.ListenAddr("127.0.0.1:0", selfSignedTLSConfig(t), nil)
	if err != nil {
		t.Fatal(err)
	}

	srv := NewServer(testConfig(), router.Handler())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ServeQUIC(context.Background(), listener)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialQUIC(t, ctx, listener.Addr().String())

	for _, path := range []string{"/", "/missing"} {
		data := quicRoundTrip(t, ctx, conn, "GET "+path+" HTTP/1.1\r\n\r\n")

		switch path {
		case "/":
			want := "HTTP/1.1 200 OK\r\nContent-Length: 9\r\nContent-Type: text/html\r\nAccess-Control-Allow-Origin: " + testOrigin + "\r\n\r\nover quic"
			test.AssertEqual(t, want, data)
		default:
			want := "HTTP/1.1 404 Not Found\r\nContent-Length: 9\r\nContent-Type: text/html\r\nAccess-Control-Allow-Origin: " + testOrigin + "\r\n\r\nNot Found"
			test.AssertEqual(t, want, data)
		}
	}

	conn.CloseWithError(0, "")

	if err := srv.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if err := <-errCh; !errors.Is(err, ErrServerClosed) {
		t.Errorf("expected ErrServerClosed, got %v", err)
	}
}

func dialQUIC(t *testing.T, ctx context.Context, addr string) quic.Connection {
	t.Helper()

	conn, err := quic.DialAddr(ctx, addr, &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{QUICProtocol},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return conn
}

func quicRoundTrip(t *testing.T, ctx context.Context, conn quic.Connection, raw string) string {
	t.Helper()

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := stream.Write([]byte(raw)); err != nil {
		t.Fatal(err)
	}
	stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// flakyQUICListener fails its first Accept.
type flakyQUICListener struct {
	*quic.Listener
	failed atomic.Bool
}

func (l *flakyQUICListener) Accept(ctx context.Context) (quic.Connection, error) {
	if l.failed.CompareAndSwap(false, true) {
		return nil, errFlakyAccept
	}
	return l.Listener.Accept(ctx)
}

func TestServeQUICRetriesAfterAcceptError(t *testing.T) {
	inner, err := quic.ListenAddr("127.0.0.1:0", selfSignedTLSConfig(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	listener := &flakyQUICListener{Listener: inner}

	logs := &syncBuffer{}
	cfg := testConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(logs, nil))

	srv := NewServer(cfg, HandlerFunc(func(req *Request, reply *Reply) {
		reply.Send("after retry")
	}))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.serveQUIC(context.Background(), listener)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialQUIC(t, ctx, inner.Addr().String())
	got := quicRoundTrip(t, ctx, conn, "GET / HTTP/1.1\r\n\r\n")
	conn.CloseWithError(0, "")

	test.AssertEqual(t, true, strings.HasSuffix(got, "\r\n\r\nafter retry"))
	test.AssertEqual(t, true, listener.failed.Load())
	test.AssertEqual(t, true, strings.Contains(logs.String(), "accept failed"))

	test.AssertNoError(t, srv.Shutdown(ctx))
	test.AssertErrorIs(t, <-errCh, ErrServerClosed)
}

func TestServeQUICShutdownDropsIdleConnection(t *testing.T) {
	listener, err := quic.ListenAddr("127.0.0.1:0", selfSignedTLSConfig(t), nil)
	if err != nil {
		t.Fatal(err)
	}

	srv := NewServer(testConfig(), nil)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ServeQUIC(context.Background(), listener)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Connected, never opens a stream.
	conn := dialQUIC(t, ctx, listener.Addr().String())
	defer conn.CloseWithError(0, "")
	time.Sleep(50 * time.Millisecond)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()

	test.AssertNoError(t, srv.Shutdown(shutdownCtx))
	test.AssertErrorIs(t, <-errCh, ErrServerClosed)
}

func TestListenAndServeQUICRequiresTLS(t *testing.T) {
	srv := NewServer(testConfig(), nil)
	err := srv.ListenAndServeQUIC(context.Background(), "127.0.0.1:0", nil)
	test.AssertErrorIs(t, err, ErrBind)
}
