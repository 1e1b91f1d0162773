// Package urlrewrite turns stored upload paths and development-host URLs in
// JSON responses into absolute URLs under the public base URL.
package urlrewrite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultUploadPrefix is the path prefix of files served from upload storage.
const DefaultUploadPrefix = "/uploads/"

// Rewriter rewrites URL-like strings. The zero value is not usable; call New.
type Rewriter struct {
	baseURL      string
	uploadPrefix string
	localHost    *regexp.Regexp
}

// New builds a Rewriter for baseURL. localPort is the port development
// builds embed in absolute URLs (http://localhost:<port>).
func New(baseURL string, localPort int) *Rewriter {
	return &Rewriter{
		baseURL:      strings.TrimRight(baseURL, "/"),
		uploadPrefix: DefaultUploadPrefix,
		localHost:    regexp.MustCompile(`^http://(localhost|127\.0\.0\.1):` + strconv.Itoa(localPort)),
	}
}

// BaseURL returns the public base URL without a trailing slash.
func (rw *Rewriter) BaseURL() string { return rw.baseURL }

// String rewrites a single string. Values that are neither upload paths nor
// development-host URLs are returned unchanged.
func (rw *Rewriter) String(s string) string {
	if loc := rw.localHost.FindStringIndex(s); loc != nil {
		return rw.baseURL + s[loc[1]:]
	}
	if strings.HasPrefix(s, rw.uploadPrefix) {
		return rw.baseURL + s
	}
	return s
}

// FullURL makes a stored path absolute. Empty input stays empty and
// absolute URLs are returned as-is.
func (rw *Rewriter) FullURL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return rw.String(path)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return rw.baseURL + path
}

// Value walks a decoded JSON value and rewrites every string in it. Maps
// and slices are modified in place.
func (rw *Rewriter) Value(v any) any {
	switch t := v.(type) {
	case string:
		return rw.String(t)
	case map[string]any:
		for k, inner := range t {
			t[k] = rw.Value(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = rw.Value(inner)
		}
		return t
	default:
		return v
	}
}

// RewriteJSON rewrites a JSON document. Numbers keep their original text.
func (rw *Rewriter) RewriteJSON(body []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var out bytes.Buffer
	enc := json.NewEncoder(&out)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rw.Value(doc)); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out.Bytes(), nil
}

// skip reports whether the request belongs to the upload endpoints, which
// must return relative paths so clients store them as-is.
func skip(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/upload") || strings.Contains(r.URL.RequestURI(), "/upload")
}

// Middleware buffers JSON responses and rewrites them before they are sent.
// A body that fails to decode is sent unchanged.
func (rw *Rewriter) Middleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			bw := &bufferedWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(bw, r)

			body := bw.buf.Bytes()
			if isJSON(w.Header().Get("Content-Type")) && len(body) > 0 {
				if out, err := rw.RewriteJSON(body); err == nil {
					body = out
				} else {
					logger.Warn("url rewrite failed", zap.Error(err), zap.String("path", r.URL.Path))
				}
			}

			w.Header().Del("Content-Length")
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(bw.status)
			_, _ = w.Write(body)
		})
	}
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "application/json")
}

// bufferedWriter holds the status and body until the handler returns.
type bufferedWriter struct {
	http.ResponseWriter
	buf         bytes.Buffer
	status      int
	wroteHeader bool
}

func (b *bufferedWriter) WriteHeader(code int) {
	if b.wroteHeader {
		return
	}
	b.status = code
	b.wroteHeader = true
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.wroteHeader = true
	return b.buf.Write(p)
}
