package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

// errResponse is the failure body of the property and upload routes.
type errResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Message: msg}
}

func errorWith(msg string, err error) errResponse {
	return errResponse{Message: msg, Error: err.Error()}
}

// failResponse is the failure body of the enrichment and admin routes.
type failResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func failBody(msg string, err error) failResponse {
	f := failResponse{Message: msg}
	if err != nil {
		f.Error = err.Error()
	}
	return f
}
