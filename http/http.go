package http

const (
	DefaultReadBufferSize  = 4096 // 4kB
	DefaultWriteBufferSize = 4096 // 4kB
)

const (
	MethodGet     = "GET"
	MethodHead    = "HEAD"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodPatch   = "PATCH"
	MethodDelete  = "DELETE"
	MethodConnect = "CONNECT"
	MethodOptions = "OPTIONS"
	MethodTrace   = "TRACE"
)

var (
	protocolHttp11      = []byte("HTTP/1.1")
	contentLengthPrefix = []byte("Content-Length: ")
	contentTypePrefix   = []byte("Content-Type: ")
	allowOriginPrefix   = []byte("Access-Control-Allow-Origin: ")
	crlf                = []byte("\r\n")
)

// Handler produces a reply for a request.
type Handler interface {
	ServeHTTP(req *Request, reply *Reply)
}

type HandlerFunc func(req *Request, reply *Reply)

func (f HandlerFunc) ServeHTTP(req *Request, reply *Reply) {
	f(req, reply)
}
