package middleware

import (
	"net/http"
	"time"
)

type logger interface {
	Info(msg string, args ...any)
}

// ResponseRecorder remembers status and size of the written response
type ResponseRecorder struct {
	http.ResponseWriter

	status      int
	size        int
	wroteHeader bool
}

func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (w *ResponseRecorder) Write(p []byte) (int, error) {
	w.wroteHeader = true
	size, err := w.ResponseWriter.Write(p)
	w.size += size
	return size, err
}

func (w *ResponseRecorder) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	if !w.wroteHeader {
		w.status = statusCode
		w.wroteHeader = true
	}
}

// Let http.ResponseController reach Flush and friends of the wrapped writer
func (w *ResponseRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *ResponseRecorder) Status() int { return w.status }
func (w *ResponseRecorder) Size() int   { return w.size }

func LoggerMiddleware(l logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := NewResponseRecorder(w)
			next.ServeHTTP(rec, r)

			l.Info(
				"got HTTP request",
				"method", r.Method,
				"uri", r.RequestURI,
				"remote", r.RemoteAddr,
				"duration", time.Since(start),
				"status", rec.Status(),
				"size", rec.Size(),
			)
		})
	}
}
