package http

import "errors"

var (
	ErrBind              = errors.New("http: failed to bind listener")
	ErrAccept            = errors.New("http: failed to accept connection")
	ErrInvalidState      = errors.New("http: cannot modify status after response finalized")
	ErrFinalizedTwice    = errors.New("http: response already finalized")
	ErrFileNotFound      = errors.New("http: file not found")
	ErrUnknownStatusCode = errors.New("http: unknown status code")
	ErrTransport         = errors.New("http: transport failure")
	ErrMalformedRequest  = errors.New("http: malformed request")
	ErrServerClosed      = errors.New("http: server closed")
)
