// Package handlers implements the HTTP endpoints of the face service.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

// serviceName identifies this service in health payloads.
const serviceName = "face-recognition"

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// errOverloadedMessage matches the overload signal callers retry on.
const errOverloadedMessage = "Service overloaded, please try again later"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
