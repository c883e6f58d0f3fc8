// Package shared centralizes JSON response and error envelope writing so
// every handler speaks the same dialect.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "caseflow/pkg/domainerrors"
)

// WriteJSON writes v with the given status. Encoding failures are ignored;
// the status line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteError translates a coded error into a status line and envelope.
// Uncoded errors become opaque 500s so internals never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	message := "internal server error"
	var de *dErrors.Error
	if errors.As(err, &de) {
		message = de.Message
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), ErrorBody{Error: message, Code: string(code)})
}
