package http

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	MaxRequestHeaders    = math.MaxUint8
	MaxRequestHeaderSize = 1024 * 1024     // 1MB, request line included
	MaxRequestBodySize   = 2 * 1024 * 1024 // 2MB
)

type Request struct {
	RemoteAddr string
	Method     string
	URL        string
	Proto      string
	Headers    Headers

	// Body holds the request body in the order it was received.
	Body [][]byte

	ctx context.Context
}

// Context returns the request's context, never nil.
func (req *Request) Context() context.Context {
	if req.ctx != nil {
		return req.ctx
	}
	return context.Background()
}

// WithContext returns a shallow copy of req using ctx.
func (req *Request) WithContext(ctx context.Context) *Request {
	r := *req
	r.ctx = ctx
	return &r
}

// BodyBytes joins all body chunks.
func (req *Request) BodyBytes() []byte {
	var n int
	for _, chunk := range req.Body {
		n += len(chunk)
	}

	buf := make([]byte, 0, n)
	for _, chunk := range req.Body {
		buf = append(buf, chunk...)
	}
	return buf
}

// ReadRequest parses one request from reader. A connection that closes before
// sending a request line yields io.EOF.
func ReadRequest(reader *bufio.Reader, remoteAddr string) (*Request, error) {
	budget := MaxRequestHeaderSize

	requestLine, err := readLine(reader, &budget)
	if err != nil {
		if errors.Is(err, ErrMalformedRequest) {
			return nil, err
		}
		if errors.Is(err, io.EOF) && strings.TrimSpace(requestLine) == "" {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: reading request line: %w", ErrMalformedRequest, err)
	}

	requestLine = strings.TrimSpace(requestLine)
	if requestLine == "" {
		return nil, io.EOF
	}

	parts := strings.Fields(requestLine)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: request line %q", ErrMalformedRequest, requestLine)
	}

	req := &Request{
		RemoteAddr: remoteAddr,
		Method:     parts[0],
		URL:        parts[1],
		Proto:      parts[2],
	}

	for count := 0; ; count++ {
		line, err := readLine(reader, &budget)
		if err != nil {
			if errors.Is(err, ErrMalformedRequest) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: reading headers: %w", ErrMalformedRequest, err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			break // end of headers
		}

		if count >= MaxRequestHeaders {
			return nil, fmt.Errorf("%w: more than %d headers", ErrMalformedRequest, MaxRequestHeaders)
		}

		i := strings.IndexByte(line, ':')
		if i <= 0 {
			return nil, fmt.Errorf("%w: header line %q", ErrMalformedRequest, line)
		}
		req.Headers.Add(strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]))
	}

	if err := req.readBody(reader); err != nil {
		return nil, err
	}

	return req, nil
}

// readLine reads up to and including the next newline, charging its length
// against budget. Lines longer than the reader's buffer are read in pieces.
func readLine(reader *bufio.Reader, budget *int) (string, error) {
	var line []byte
	for {
		chunk, err := reader.ReadSlice('\n')
		*budget -= len(chunk)
		if *budget < 0 {
			return "", fmt.Errorf("%w: request head exceeds %d bytes", ErrMalformedRequest, MaxRequestHeaderSize)
		}
		line = append(line, chunk...)

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return string(line), err
	}
}

func (req *Request) readBody(reader *bufio.Reader) error {
	v, found := req.Headers.Get(HeaderContentLength)
	if !found {
		return nil
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fmt.Errorf("%w: content-length %q", ErrMalformedRequest, v)
	}
	if n > MaxRequestBodySize {
		return fmt.Errorf("%w: body of %d bytes exceeds %d", ErrMalformedRequest, n, MaxRequestBodySize)
	}
	if n == 0 {
		return nil
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(reader, body); err != nil {
		return fmt.Errorf("%w: reading body: %w", ErrMalformedRequest, err)
	}
	req.Body = append(req.Body, body)

	return nil
}
