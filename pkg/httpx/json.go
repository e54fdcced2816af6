// Package httpx writes the JSON response shapes shared by the admin API and
// its clients.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every non-2xx API response. Code is a stable
// machine readable identifier; Message is shown to the operator.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
