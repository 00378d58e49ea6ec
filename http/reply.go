package http

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/freekieb7/halley/filesystem"
)

const (
	DefaultContentType   = "text/html"
	DefaultAllowedOrigin = "*"
)

// ReplyConfig holds the values a Reply is fixed to at construction.
type ReplyConfig struct {
	ContentType   string
	AllowedOrigin string
	Filesystem    filesystem.Filesystem
}

// Reply is the write-once response bound to a single connection. Status and
// body are buffered until End emits the header block and body in one write.
//
// A handler that returns without calling End, Send or SendFile sends nothing.
type Reply struct {
	writer *bufio.Writer

	content       []byte
	statusCode    uint16
	contentType   string
	allowedOrigin string
	fs            filesystem.Filesystem

	writable      bool
	headersLocked bool
	transportErr  error
}

func NewReply(w io.Writer, cfg ReplyConfig) *Reply {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriterSize(w, DefaultWriteBufferSize)
	}

	if cfg.ContentType == "" {
		cfg.ContentType = DefaultContentType
	}
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = DefaultAllowedOrigin
	}
	if cfg.Filesystem == nil {
		cfg.Filesystem = filesystem.NewLocalFileSystem()
	}

	return &Reply{
		writer:        bw,
		statusCode:    StatusOK,
		contentType:   cfg.ContentType,
		allowedOrigin: cfg.AllowedOrigin,
		fs:            cfg.Filesystem,
		writable:      true,
	}
}

// Status sets the status code. Codes are not validated here; unregistered
// codes render with a generic reason phrase.
func (reply *Reply) Status(code uint16) error {
	if reply.headersLocked {
		return ErrInvalidState
	}
	reply.statusCode = code
	return nil
}

func (reply *Reply) StatusCode() uint16 {
	return reply.statusCode
}

func (reply *Reply) ContentType() string {
	return reply.contentType
}

// Finalized reports whether End has been called.
func (reply *Reply) Finalized() bool {
	return !reply.writable
}

// BytesWritten is the size of the header block plus body once finalized.
func (reply *Reply) BytesWritten() int {
	return len(reply.content)
}

// End finalizes the reply, writing the header block followed by data as a
// single flushed write. A write failure leaves the connection unusable.
func (reply *Reply) End(data []byte) error {
	if !reply.writable {
		return ErrFinalizedTwice
	}

	header := BuildHeaderBlock(reply.statusCode, reply.contentType, reply.allowedOrigin, len(data))

	reply.content = make([]byte, 0, len(header)+len(data))
	reply.content = append(reply.content, header...)
	reply.content = append(reply.content, data...)

	reply.headersLocked = true
	reply.writable = false

	if _, err := reply.writer.Write(reply.content); err != nil {
		reply.transportErr = fmt.Errorf("%w: %w", ErrTransport, err)
		return reply.transportErr
	}
	if err := reply.writer.Flush(); err != nil {
		reply.transportErr = fmt.Errorf("%w: %w", ErrTransport, err)
		return reply.transportErr
	}

	return nil
}

func (reply *Reply) Send(content string) error {
	return reply.End([]byte(content))
}

// SendFile replies with the whole file at path using the reply's content type.
// Paths that do not name a regular file fail with ErrFileNotFound before
// anything is read.
func (reply *Reply) SendFile(path string) error {
	if !reply.writable {
		return ErrFinalizedTwice
	}

	exists, err := reply.fs.FileExists(path)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	data, err := reply.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, filesystem.ErrFileNotFound) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return err
	}

	return reply.End(data)
}

// BuildHeaderBlock renders the status line and fixed header set:
//
//	HTTP/1.1 {code} {reason}\r\n
//	Content-Length: {length}\r\n
//	Content-Type: {contentType}\r\n
//	Access-Control-Allow-Origin: {origin}\r\n
//	\r\n
func BuildHeaderBlock(code uint16, contentType, origin string, length int) []byte {
	buf := make([]byte, 0, 128+len(contentType)+len(origin))

	buf = append(buf, protocolHttp11...)
	buf = append(buf, ' ')
	buf = strconv.AppendUint(buf, uint64(code), 10)
	buf = append(buf, ' ')
	buf = append(buf, StatusText(code)...)
	buf = append(buf, crlf...)

	buf = append(buf, contentLengthPrefix...)
	buf = strconv.AppendInt(buf, int64(length), 10)
	buf = append(buf, crlf...)

	buf = append(buf, contentTypePrefix...)
	buf = append(buf, contentType...)
	buf = append(buf, crlf...)

	buf = append(buf, allowOriginPrefix...)
	buf = append(buf, origin...)
	buf = append(buf, crlf...)

	return append(buf, crlf...)
}
