package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/artemis-health/artemis/internal/xhttp"
)

const (
	gzipEncoding = "gzip"
	// Bodies shorter than this are sent as-is; the gzip framing would eat
	// most of the saving.
	gzipMinSize = 1024
)

var gzipPool = sync.Pool{New: func() any { return gzip.NewWriter(io.Discard) }}

type gzipMode uint8

const (
	modeBuffering gzipMode = iota
	modeCompress
	modePassthrough
)

// gzipResponseWriter holds the first gzipMinSize bytes before choosing
// between compressing and passing the body through untouched.
type gzipResponseWriter struct {
	http.ResponseWriter
	mode   gzipMode
	status int
	buf    bytes.Buffer
	zw     *gzip.Writer
}

var (
	_ http.Flusher = (*gzipResponseWriter)(nil)
	_ io.Closer    = (*gzipResponseWriter)(nil)
)

func (g *gzipResponseWriter) WriteHeader(code int) {
	if code < http.StatusOK {
		g.ResponseWriter.WriteHeader(code)
		return
	}
	if g.status != 0 {
		return
	}
	g.status = code
	if !bodyAllowed(code) {
		g.commit(modePassthrough)
	}
}

func (g *gzipResponseWriter) Write(b []byte) (int, error) {
	if g.status == 0 {
		g.WriteHeader(http.StatusOK)
	}

	switch g.mode {
	case modeCompress:
		return g.zw.Write(b)
	case modePassthrough:
		return g.ResponseWriter.Write(b)
	}

	g.buf.Write(b)
	if g.buf.Len() < gzipMinSize {
		return len(b), nil
	}
	if err := g.commit(g.choose()); err != nil {
		return 0, err
	}
	return len(b), nil
}

// choose decides once enough of the body is known.
func (g *gzipResponseWriter) choose() gzipMode {
	h := g.Header()
	if h.Get(xhttp.ContentEncoding) != "" || g.buf.Len() < gzipMinSize {
		return modePassthrough
	}
	return modeCompress
}

// commit writes the status line and any buffered bytes in the chosen mode.
func (g *gzipResponseWriter) commit(mode gzipMode) error {
	if g.mode != modeBuffering {
		return nil
	}
	g.mode = mode

	if mode == modeCompress {
		g.Header().Set(xhttp.ContentEncoding, gzipEncoding)
		g.Header().Del(xhttp.ContentLength)
	}
	g.ResponseWriter.WriteHeader(g.status)

	pending := g.buf.Bytes()
	g.buf = bytes.Buffer{}
	if mode == modeCompress {
		g.zw = gzipPool.Get().(*gzip.Writer)
		g.zw.Reset(g.ResponseWriter)
		_, err := g.zw.Write(pending)
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	_, err := g.ResponseWriter.Write(pending)
	return err
}

func (g *gzipResponseWriter) Flush() {
	if g.mode == modeBuffering {
		if g.status == 0 {
			g.status = http.StatusOK
		}
		_ = g.commit(g.choose())
	}
	if g.zw != nil {
		_ = g.zw.Flush()
	}
	if f, ok := g.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (g *gzipResponseWriter) Close() error {
	if g.mode == modeBuffering {
		if g.status == 0 {
			g.status = http.StatusOK
		}
		return g.commit(modePassthrough)
	}
	if g.zw == nil {
		return nil
	}
	err := g.zw.Close()
	gzipPool.Put(g.zw)
	g.zw = nil
	return err
}

func (g *gzipResponseWriter) Unwrap() http.ResponseWriter {
	return g.ResponseWriter
}

// Gzip compresses response bodies of at least 1KB for clients that accept
// it. /metrics is left alone because promhttp negotiates its own encoding.
func Gzip(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead || r.URL.Path == "/metrics" || !acceptsGzip(r) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Add(xhttp.Vary, xhttp.AcceptEncoding)
		gw := &gzipResponseWriter{ResponseWriter: w}
		defer gw.Close() //nolint:errcheck

		next.ServeHTTP(gw, r)
	})
}

func acceptsGzip(r *http.Request) bool {
	for part := range strings.SplitSeq(r.Header.Get(xhttp.AcceptEncoding), ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(coding), gzipEncoding) {
			continue
		}
		return strings.ReplaceAll(strings.TrimSpace(params), " ", "") != "q=0"
	}
	return false
}

func bodyAllowed(status int) bool {
	return status != http.StatusNoContent && status != http.StatusNotModified
}
