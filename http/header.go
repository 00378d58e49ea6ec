package http

import (
	"iter"
	"strings"
)

const (
	HeaderAccept                        = "Accept"
	HeaderAcceptCharset                 = "Accept-Charset"
	HeaderAcceptEncoding                = "Accept-Encoding"
	HeaderAcceptLanguage                = "Accept-Language"
	HeaderAcceptPatch                   = "Accept-Patch"
	HeaderAcceptRanges                  = "Accept-Ranges"
	HeaderAccessControlAllowCredentials = "Access-Control-Allow-Credentials"
	HeaderAccessControlAllowHeaders     = "Access-Control-Allow-Headers"
	HeaderAccessControlAllowMethods     = "Access-Control-Allow-Methods"
	HeaderAccessControlAllowOrigin      = "Access-Control-Allow-Origin"
	HeaderAccessControlExposeHeaders    = "Access-Control-Expose-Headers"
	HeaderAccessControlMaxAge           = "Access-Control-Max-Age"
	HeaderAccessControlRequestHeaders   = "Access-Control-Request-Headers"
	HeaderAccessControlRequestMethod    = "Access-Control-Request-Method"
	HeaderAge                           = "Age"
	HeaderAllow                         = "Allow"
	HeaderAltSvc                        = "Alt-Svc"
	HeaderAuthorization                 = "Authorization"
	HeaderCacheControl                  = "Cache-Control"
	HeaderConnection                    = "Connection"
	HeaderContentDisposition            = "Content-Disposition"
	HeaderContentEncoding               = "Content-Encoding"
	HeaderContentLanguage               = "Content-Language"
	HeaderContentLength                 = "Content-Length"
	HeaderContentLocation               = "Content-Location"
	HeaderContentRange                  = "Content-Range"
	HeaderContentType                   = "Content-Type"
	HeaderCookie                        = "Cookie"
	HeaderDate                          = "Date"
	HeaderETag                          = "ETag"
	HeaderExpect                        = "Expect"
	HeaderExpires                       = "Expires"
	HeaderForwarded                     = "Forwarded"
	HeaderFrom                          = "From"
	HeaderHost                          = "Host"
	HeaderIfMatch                       = "If-Match"
	HeaderIfModifiedSince               = "If-Modified-Since"
	HeaderIfNoneMatch                   = "If-None-Match"
	HeaderIfRange                       = "If-Range"
	HeaderIfUnmodifiedSince             = "If-Unmodified-Since"
	HeaderKeepAlive                     = "Keep-Alive"
	HeaderLastModified                  = "Last-Modified"
	HeaderLink                          = "Link"
	HeaderLocation                      = "Location"
	HeaderMaxForwards                   = "Max-Forwards"
	HeaderOrigin                        = "Origin"
	HeaderPragma                        = "Pragma"
	HeaderProxyAuthenticate             = "Proxy-Authenticate"
	HeaderProxyAuthorization            = "Proxy-Authorization"
	HeaderPublicKeyPins                 = "Public-Key-Pins"
	HeaderRange                         = "Range"
	HeaderReferer                       = "Referer"
	HeaderRetryAfter                    = "Retry-After"
	HeaderSecWebSocketAccept            = "Sec-WebSocket-Accept"
	HeaderSecWebSocketExtensions        = "Sec-WebSocket-Extensions"
	HeaderSecWebSocketKey               = "Sec-WebSocket-Key"
	HeaderSecWebSocketProtocol          = "Sec-WebSocket-Protocol"
	HeaderSecWebSocketVersion           = "Sec-WebSocket-Version"
	HeaderServer                        = "Server"
	HeaderSetCookie                     = "Set-Cookie"
	HeaderStrictTransportSecurity       = "Strict-Transport-Security"
	HeaderTE                            = "TE"
	HeaderTk                            = "Tk"
	HeaderTrailer                       = "Trailer"
	HeaderTransferEncoding              = "Transfer-Encoding"
	HeaderUpgrade                       = "Upgrade"
	HeaderUserAgent                     = "User-Agent"
	HeaderVary                          = "Vary"
	HeaderVia                           = "Via"
	HeaderWarning                       = "Warning"
	HeaderWWWAuthenticate               = "WWW-Authenticate"
)

// knownHeaders maps lower case names to their canonical spelling.
var knownHeaders = func() map[string]string {
	names := []string{
		HeaderAccept, HeaderAcceptCharset, HeaderAcceptEncoding, HeaderAcceptLanguage,
		HeaderAcceptPatch, HeaderAcceptRanges, HeaderAccessControlAllowCredentials,
		HeaderAccessControlAllowHeaders, HeaderAccessControlAllowMethods,
		HeaderAccessControlAllowOrigin, HeaderAccessControlExposeHeaders,
		HeaderAccessControlMaxAge, HeaderAccessControlRequestHeaders,
		HeaderAccessControlRequestMethod, HeaderAge, HeaderAllow, HeaderAltSvc,
		HeaderAuthorization, HeaderCacheControl, HeaderConnection,
		HeaderContentDisposition, HeaderContentEncoding, HeaderContentLanguage,
		HeaderContentLength, HeaderContentLocation, HeaderContentRange,
		HeaderContentType, HeaderCookie, HeaderDate, HeaderETag, HeaderExpect,
		HeaderExpires, HeaderForwarded, HeaderFrom, HeaderHost, HeaderIfMatch,
		HeaderIfModifiedSince, HeaderIfNoneMatch, HeaderIfRange,
		HeaderIfUnmodifiedSince, HeaderKeepAlive, HeaderLastModified, HeaderLink,
		HeaderLocation, HeaderMaxForwards, HeaderOrigin, HeaderPragma,
		HeaderProxyAuthenticate, HeaderProxyAuthorization, HeaderPublicKeyPins,
		HeaderRange, HeaderReferer, HeaderRetryAfter, HeaderSecWebSocketAccept,
		HeaderSecWebSocketExtensions, HeaderSecWebSocketKey,
		HeaderSecWebSocketProtocol, HeaderSecWebSocketVersion, HeaderServer,
		HeaderSetCookie, HeaderStrictTransportSecurity, HeaderTE, HeaderTk,
		HeaderTrailer, HeaderTransferEncoding, HeaderUpgrade, HeaderUserAgent,
		HeaderVary, HeaderVia, HeaderWarning, HeaderWWWAuthenticate,
	}

	m := make(map[string]string, len(names))
	for _, name := range names {
		m[strings.ToLower(name)] = name
	}
	return m
}()

// CanonicalHeaderName returns the registered spelling of a well-known header
// name. Unknown names are returned unchanged.
func CanonicalHeaderName(name string) string {
	if canonical, found := knownHeaders[strings.ToLower(name)]; found {
		return canonical
	}
	return name
}

type headerField struct {
	name   string
	values []string
}

// Headers is an ordered, case-insensitive multimap of header fields.
// The zero value is ready to use.
type Headers struct {
	fields []headerField
}

func (h *Headers) index(name string) int {
	for i := range h.fields {
		if strings.EqualFold(h.fields[i].name, name) {
			return i
		}
	}
	return -1
}

// Add appends value to the values of name.
func (h *Headers) Add(name, value string) {
	if i := h.index(name); i >= 0 {
		h.fields[i].values = append(h.fields[i].values, value)
		return
	}
	h.fields = append(h.fields, headerField{
		name:   CanonicalHeaderName(name),
		values: []string{value},
	})
}

// Set replaces all values of name, keeping its original position.
func (h *Headers) Set(name, value string) {
	if i := h.index(name); i >= 0 {
		h.fields[i].values = []string{value}
		return
	}
	h.Add(name, value)
}

// Get returns the first value of name.
func (h *Headers) Get(name string) (string, bool) {
	i := h.index(name)
	if i < 0 {
		return "", false
	}
	return h.fields[i].values[0], true
}

// Values returns a copy of all values of name.
func (h *Headers) Values(name string) []string {
	i := h.index(name)
	if i < 0 {
		return nil
	}
	return append([]string(nil), h.fields[i].values...)
}

func (h *Headers) Has(name string) bool {
	return h.index(name) >= 0
}

func (h *Headers) Del(name string) {
	if i := h.index(name); i >= 0 {
		h.fields = append(h.fields[:i], h.fields[i+1:]...)
	}
}

// Len returns the number of distinct header names.
func (h *Headers) Len() int {
	return len(h.fields)
}

// All yields every name/value pair in insertion order.
func (h *Headers) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, field := range h.fields {
			for _, value := range field.values {
				if !yield(field.name, value) {
					return
				}
			}
		}
	}
}

func (h *Headers) Reset() {
	h.fields = h.fields[:0]
}
