package http

import (
	"log/slog"
	"net/http"
	"time"
)

// statusWriter captures the final status code and bytes written so the
// request log reflects what the client actually received.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Write records the implicit 200 when a handler writes without calling
// WriteHeader first.
func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// withLogging logs one line per request. Probe and scrape endpoints log at
// debug so they do not drown out the API traffic.
func withLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}

		next.ServeHTTP(sw, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"bytes", sw.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch r.URL.Path {
		case "/healthz", "/readyz", "/metrics":
			logger.Debug("request", attrs...)
		default:
			logger.Info("request", attrs...)
		}
	})
}
