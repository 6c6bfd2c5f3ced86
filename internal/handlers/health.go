package handlers

import (
	"net/http"
	"time"

	"github.com/nkiryanov/fittrack/internal/handlers/render"
)

func handleHealth(service string) http.Handler {
	type response struct {
		Status    string    `json:"status"`
		Service   string    `json:"service"`
		Timestamp time.Time `json:"timestamp"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, response{Status: "OK", Service: service, Timestamp: time.Now().UTC()})
	})
}
