// Package httpjson holds the JSON request and response helpers shared by the admin handlers.
package httpjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/scoreboard/go/internal/datastore"
	"github.com/mcdev12/scoreboard/go/internal/models"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx admin response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Write encodes v as the JSON response body with the given status
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// StatusFor maps an app error onto an HTTP status code
func StatusFor(err error) int {
	switch {
	case errors.Is(err, datastore.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as an ErrorResponse. Internal errors are logged and
// reported with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		msg = http.StatusText(status)
	}
	Write(w, status, ErrorResponse{Error: msg})
}

// Decode reads a JSON request body into v, rejecting unknown fields
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", models.ErrValidation, err)
	}
	return nil
}

// PathID parses the {id} path segment
func PathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id %q", models.ErrValidation, r.PathValue("id"))
	}
	return id, nil
}
