package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingBody is returned by ParseJSON when the request has no body.
var ErrMissingBody = errors.New("missing request body")

// Envelope is the shape of every relay response body except /health.
type Envelope struct {
	Success  bool    `json:"success"`
	Markdown *string `json:"markdown,omitempty"`
	Error    string  `json:"error,omitempty"`
}

func ParseJSON(r *http.Request, model any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return ErrMissingBody
	}

	if err := json.NewDecoder(r.Body).Decode(model); err != nil {
		return fmt.Errorf("failed to decode request body: %w", err)
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(v)
}

func WriteSuccess(w http.ResponseWriter, markdown string) error {
	return WriteJSON(w, http.StatusOK, Envelope{Success: true, Markdown: &markdown})
}

func WriteError(w http.ResponseWriter, status int, message string) error {
	return WriteJSON(w, status, Envelope{Success: false, Error: message})
}
