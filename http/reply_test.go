package http

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/freekieb7/halley/filesystem"
	"github.com/freekieb7/halley/test"
)

const testOrigin = "http://192.168.5.1:3000"

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestReplyEndWireFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	reply := NewReply(buf, ReplyConfig{AllowedOrigin: testOrigin})

	test.AssertNoError(t, reply.Status(StatusNotFound))
	test.AssertNoError(t, reply.End([]byte("Not Found")))

	want := "HTTP/1.1 404 Not Found\r\n" +
		"Content-Length: 9\r\n" +
		"Content-Type: text/html\r\n" +
		"Access-Control-Allow-Origin: " + testOrigin + "\r\n" +
		"\r\n" +
		"Not Found"
	test.AssertEqual(t, want, buf.String())
	test.AssertEqual(t, len(want), reply.BytesWritten())
}

func TestReplyDefaults(t *testing.T) {
	buf := &bytes.Buffer{}
	reply := NewReply(buf, ReplyConfig{AllowedOrigin: "*"})

	test.AssertEqual(t, StatusOK, reply.StatusCode())
	test.AssertEqual(t, DefaultContentType, reply.ContentType())
	test.AssertEqual(t, false, reply.Finalized())
	test.AssertEqual(t, 0, buf.Len())

	test.AssertNoError(t, reply.Send(""))

	want := "HTTP/1.1 200 OK\r\nContent-Length: 0\r\nContent-Type: text/html\r\nAccess-Control-Allow-Origin: *\r\n\r\n"
	test.AssertEqual(t, want, buf.String())
	test.AssertEqual(t, true, reply.Finalized())
}

func TestReplyContentTypeFixedAtConstruction(t *testing.T) {
	buf := &bytes.Buffer{}
	reply := NewReply(buf, ReplyConfig{ContentType: "application/json", AllowedOrigin: "*"})

	test.AssertNoError(t, reply.Send(`{"ok":true}`))

	want := "HTTP/1.1 200 OK\r\nContent-Length: 11\r\nContent-Type: application/json\r\nAccess-Control-Allow-Origin: *\r\n\r\n{\"ok\":true}"
	test.AssertEqual(t, want, buf.String())
}

func TestReplyEndTwice(t *testing.T) {
	buf := &bytes.Buffer{}
	reply := NewReply(buf, ReplyConfig{AllowedOrigin: "*"})

	test.AssertNoError(t, reply.Send("first"))
	written := buf.Len()

	test.AssertErrorIs(t, reply.End([]byte("second")), ErrFinalizedTwice)
	test.AssertErrorIs(t, reply.Send("third"), ErrFinalizedTwice)
	test.AssertErrorIs(t, reply.SendFile("/etc/hostname"), ErrFinalizedTwice)
	test.AssertEqual(t, written, buf.Len())
}

func TestReplyStatusAfterEnd(t *testing.T) {
	reply := NewReply(&bytes.Buffer{}, ReplyConfig{AllowedOrigin: "*"})

	test.AssertNoError(t, reply.Status(StatusCreated))
	test.AssertNoError(t, reply.Status(StatusAccepted))
	test.AssertNoError(t, reply.Send("ok"))

	test.AssertErrorIs(t, reply.Status(StatusInternalServerError), ErrInvalidState)
	test.AssertEqual(t, StatusAccepted, reply.StatusCode())
}

func TestReplyUnknownStatus(t *testing.T) {
	buf := &bytes.Buffer{}
	reply := NewReply(buf, ReplyConfig{AllowedOrigin: "*"})

	test.AssertNoError(t, reply.Status(299))
	test.AssertNoError(t, reply.Send("x"))

	want := "HTTP/1.1 299 Unknown Status\r\nContent-Length: 1\r\nContent-Type: text/html\r\nAccess-Control-Allow-Origin: *\r\n\r\nx"
	test.AssertEqual(t, want, buf.String())
}

func TestReplySendFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")
	content := "<h1>Hello</h1>"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	buf := &bytes.Buffer{}
	reply := NewReply(buf, ReplyConfig{AllowedOrigin: "*"})

	test.AssertNoError(t, reply.SendFile(path))

	want := "HTTP/1.1 200 OK\r\nContent-Length: 14\r\nContent-Type: text/html\r\nAccess-Control-Allow-Origin: *\r\n\r\n" + content
	test.AssertEqual(t, want, buf.String())
}

func TestReplySendFileFromDirFileSystem(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "style.css"), []byte("body{}"), 0644); err != nil {
		t.Fatal(err)
	}

	buf := &bytes.Buffer{}
	reply := NewReply(buf, ReplyConfig{
		ContentType:   "text/css",
		AllowedOrigin: "*",
		Filesystem:    filesystem.NewDirFileSystem(dir),
	})

	test.AssertNoError(t, reply.SendFile("/style.css"))
	test.AssertEqual(t, true, bytes.HasSuffix(buf.Bytes(), []byte("Content-Type: text/css\r\nAccess-Control-Allow-Origin: *\r\n\r\nbody{}")))
}

func TestReplySendFileMissing(t *testing.T) {
	buf := &bytes.Buffer{}
	reply := NewReply(buf, ReplyConfig{AllowedOrigin: "*"})

	test.AssertErrorIs(t, reply.SendFile("/nonexistent/path"), ErrFileNotFound)
	test.AssertEqual(t, 0, buf.Len())
	test.AssertEqual(t, false, reply.Finalized())

	// The request can still be answered.
	test.AssertNoError(t, reply.Status(StatusNotFound))
	test.AssertNoError(t, reply.Send("missing"))
	test.AssertEqual(t, true, bytes.HasPrefix(buf.Bytes(), []byte("HTTP/1.1 404 Not Found\r\n")))
}

// countingFilesystem records how often each file was read.
type countingFilesystem struct {
	files map[string]string
	reads int
}

func (fs *countingFilesystem) ReadFile(path string) ([]byte, error) {
	fs.reads++
	content, ok := fs.files[path]
	if !ok {
		return nil, filesystem.ErrFileNotFound
	}
	return []byte(content), nil
}

func (fs *countingFilesystem) FileExists(path string) (bool, error) {
	_, ok := fs.files[path]
	return ok, nil
}

func TestReplySendFileChecksExistenceFirst(t *testing.T) {
	fs := &countingFilesystem{files: map[string]string{"/index.html": "home"}}

	buf := &bytes.Buffer{}
	reply := NewReply(buf, ReplyConfig{Filesystem: fs})

	test.AssertErrorIs(t, reply.SendFile("/missing.html"), ErrFileNotFound)
	test.AssertEqual(t, 0, fs.reads)
	test.AssertEqual(t, 0, buf.Len())

	test.AssertNoError(t, reply.SendFile("/index.html"))
	test.AssertEqual(t, 1, fs.reads)
	test.AssertEqual(t, true, bytes.HasSuffix(buf.Bytes(), []byte("\r\n\r\nhome")))
}

func TestReplySendFileDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	reply := NewReply(buf, ReplyConfig{})

	test.AssertErrorIs(t, reply.SendFile(t.TempDir()), ErrFileNotFound)
	test.AssertEqual(t, 0, buf.Len())
}

func TestReplyZeroConfigDefaults(t *testing.T) {
	buf := &bytes.Buffer{}
	reply := NewReply(buf, ReplyConfig{})

	test.AssertNoError(t, reply.Send("ok"))

	want := "HTTP/1.1 200 OK\r\nContent-Length: 2\r\nContent-Type: text/html\r\nAccess-Control-Allow-Origin: *\r\n\r\nok"
	test.AssertEqual(t, want, buf.String())
}

func TestReplyTransportError(t *testing.T) {
	reply := NewReply(failingWriter{}, ReplyConfig{AllowedOrigin: "*"})

	test.AssertErrorIs(t, reply.Send("lost"), ErrTransport)
	test.AssertEqual(t, true, reply.Finalized())
	test.AssertErrorIs(t, reply.Send("retry"), ErrFinalizedTwice)
}

func TestBuildHeaderBlock(t *testing.T) {
	got := string(BuildHeaderBlock(StatusTeapot, "text/plain", "https://example.com", 1234))
	want := "HTTP/1.1 418 I'm a Teapot\r\nContent-Length: 1234\r\nContent-Type: text/plain\r\nAccess-Control-Allow-Origin: https://example.com\r\n\r\n"
	test.AssertEqual(t, want, got)
}

func BenchmarkReplyEnd(b *testing.B) {
	body := []byte("benchmarking reply end")
	buf := &bytes.Buffer{}

	for b.Loop() {
		buf.Reset()
		reply := NewReply(buf, ReplyConfig{AllowedOrigin: "*"})
		if err := reply.End(body); err != nil {
			b.Fatal(err)
		}
	}
}
