package middleware

import (
	"net/http"
	"strings"

	"github.com/nkiryanov/fittrack/internal/handlers/render"
)

// Plain text 404 and 405 written by http.ServeMux, our handlers render json
type muxErrorWriter struct {
	http.ResponseWriter
	swallow bool
}

func (w *muxErrorWriter) WriteHeader(statusCode int) {
	plain := strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain")

	switch {
	case plain && statusCode == http.StatusNotFound:
		w.swallow = true
		render.ServiceError(w.ResponseWriter, "Route not found", statusCode)
	case plain && statusCode == http.StatusMethodNotAllowed:
		w.swallow = true
		render.ServiceError(w.ResponseWriter, "Method not allowed", statusCode)
	default:
		w.ResponseWriter.WriteHeader(statusCode)
	}
}

func (w *muxErrorWriter) Write(p []byte) (int, error) {
	if w.swallow {
		return len(p), nil
	}
	return w.ResponseWriter.Write(p)
}

func (w *muxErrorWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Render unknown route and wrong method responses of the mux as {"message": ...}
func JSONMuxErrors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&muxErrorWriter{ResponseWriter: w}, r)
	})
}
