package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// MaxBodySize bounds request bodies read through Body.
const MaxBodySize = 1 << 20 // 1 MB

// ErrEmptyBody is returned by Body when the request carries no content.
var ErrEmptyBody = errors.New("empty request body")

// Request wraps *http.Request with small input helpers.
type Request struct {
	raw *http.Request
}

// NewRequest wraps a standard *http.Request.
func NewRequest(r *http.Request) *Request {
	return &Request{raw: r}
}

// Raw returns the underlying *http.Request.
func (req *Request) Raw() *http.Request { return req.raw }

// Body reads the whole body, up to MaxBodySize bytes.
func (req *Request) Body() ([]byte, error) {
	if req.raw.Body == nil {
		return nil, ErrEmptyBody
	}
	defer req.raw.Body.Close()
	body, err := io.ReadAll(io.LimitReader(req.raw.Body, MaxBodySize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("request body exceeds %d bytes", MaxBodySize)
	}
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}
	return body, nil
}

// ── Input helpers ────────────────────────────────────────────────────────────

// Query returns the query value of key, or the first fallback when empty.
func (req *Request) Query(key string, fallback ...string) string {
	v := req.raw.URL.Query().Get(key)
	if v == "" && len(fallback) > 0 {
		return fallback[0]
	}
	return v
}

// QueryBool reads a boolean query flag. A bare "?flag" counts as true.
func (req *Request) QueryBool(key string, fallback bool) bool {
	values, ok := req.raw.URL.Query()[key]
	if !ok || len(values) == 0 {
		return fallback
	}
	if values[0] == "" {
		return true
	}
	b, err := strconv.ParseBool(values[0])
	if err != nil {
		return fallback
	}
	return b
}

// RouteParam returns the chi URL parameter key.
func (req *Request) RouteParam(key string) string {
	return chi.URLParam(req.raw, key)
}

// Header returns a request header value.
func (req *Request) Header(key string) string {
	return req.raw.Header.Get(key)
}

// ContentType returns the Content-Type header value.
func (req *Request) ContentType() string {
	return req.raw.Header.Get("Content-Type")
}

// IsJSON reports whether the request carries or accepts JSON.
func (req *Request) IsJSON() bool {
	return strings.Contains(req.raw.Header.Get("Accept"), "application/json") ||
		strings.Contains(req.ContentType(), "application/json")
}
