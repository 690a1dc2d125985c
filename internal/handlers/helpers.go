package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/services/jobs"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteServiceError maps service errors onto HTTP status codes: validation
// failures become 400, missing jobs 404, everything else 500.
func WriteServiceError(w http.ResponseWriter, err error) error {
	var vErr *jobs.ValidationError
	switch {
	case errors.As(err, &vErr):
		return WriteError(w, http.StatusBadRequest, vErr.Message)
	case errors.Is(err, interfaces.ErrJobNotFound):
		return WriteError(w, http.StatusNotFound, "job not found")
	default:
		return WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// QueryInt parses an integer query parameter with a default.
func QueryInt(r *http.Request, name string, def int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
	}
	return def
}

// PathSuffix returns the path component after the given prefix, e.g. the
// job ID in /api/status/{id}.
func PathSuffix(r *http.Request, prefix string) string {
	if len(r.URL.Path) <= len(prefix) {
		return ""
	}
	return r.URL.Path[len(prefix):]
}
