package http

import (
	"bufio"
	"errors"
	"strings"
	"testing"
)

func TestRequestCookie(t *testing.T) {
	reqData := "GET / HTTP/1.1\r\nCookie: test=value; other=\"quoted\"\r\nCookie: bad; =empty; SID=abc\r\n\r\n"

	req, err := ReadRequest(bufio.NewReader(strings.NewReader(reqData)), "")
	if err != nil {
		t.Fatalf("Request parse failed: %v", err)
	}

	cookie, err := req.Cookie("test")
	if err != nil {
		t.Errorf("Failed to get cookie: %v", err)
	}
	if cookie.Value != "value" {
		t.Errorf("Expected cookie value 'value', got '%s'", cookie.Value)
	}

	cookie, err = req.Cookie("other")
	if err != nil {
		t.Errorf("Failed to get cookie: %v", err)
	}
	if cookie.Value != "quoted" {
		t.Errorf("Expected unquoted value, got '%s'", cookie.Value)
	}

	if got := len(req.Cookies()); got != 3 {
		t.Errorf("Expected 3 cookies, got %d", got)
	}

	if _, err := req.Cookie("nonexistent"); !errors.Is(err, ErrNoCookie) {
		t.Errorf("Expected ErrNoCookie, got %v", err)
	}
}

func TestCookieString(t *testing.T) {
	cookie := Cookie{Name: "SID", Value: "abc"}
	if cookie.String() != "SID=abc" {
		t.Errorf("unexpected cookie string %q", cookie.String())
	}
}
