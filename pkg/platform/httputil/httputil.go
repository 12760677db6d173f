// Package httputil holds the small JSON response helpers shared by middleware.
package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the fixed shape for authentication and authorization failures.
type ErrorResponse struct {
	Error    string `json:"error"`
	Required string `json:"required,omitempty"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the {error, required?} shape. required may be empty.
func WriteError(w http.ResponseWriter, status int, message, required string) {
	WriteJSON(w, status, ErrorResponse{Error: message, Required: required})
}
