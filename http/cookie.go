package http

import (
	"errors"
	"strings"
)

var ErrNoCookie = errors.New("http: named cookie not present")

// Cookie is a name/value pair sent by the client in a Cookie header.
type Cookie struct {
	Name  string
	Value string
}

func (c Cookie) String() string {
	return c.Name + "=" + c.Value
}

// Cookies parses every Cookie header of the request in order. Malformed pairs
// are skipped.
func (req *Request) Cookies() []Cookie {
	var cookies []Cookie

	for _, header := range req.Headers.Values(HeaderCookie) {
		for _, part := range strings.Split(header, ";") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			eq := strings.IndexByte(part, '=')
			if eq <= 0 {
				continue
			}

			name := strings.TrimSpace(part[:eq])
			if !validCookieName(name) {
				continue
			}

			value := strings.TrimSpace(part[eq+1:])
			if len(value) > 1 && value[0] == '"' && value[len(value)-1] == '"' {
				value = value[1 : len(value)-1]
			}

			cookies = append(cookies, Cookie{Name: name, Value: value})
		}
	}

	return cookies
}

// Cookie returns the first cookie called name.
func (req *Request) Cookie(name string) (Cookie, error) {
	for _, cookie := range req.Cookies() {
		if cookie.Name == name {
			return cookie, nil
		}
	}
	return Cookie{}, ErrNoCookie
}

// validCookieName reports whether name only holds RFC 6265 token characters.
func validCookieName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r <= 0x20 || r >= 0x7f || strings.ContainsRune("\"(),/:;<=>?@[\\]{}", r) {
			return false
		}
	}
	return true
}
