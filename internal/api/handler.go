// Package api provides HTTP handlers for the Recipe Road API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ashureev/recipe-road/internal/domain"
	"github.com/ashureev/recipe-road/internal/recipe"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// StatusFor maps a domain error to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrVoiceActive), errors.Is(err, domain.ErrNoRecipeSelected):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConfiguration), errors.Is(err, recipe.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err with its mapped status. Internal errors are not echoed.
func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		Error(w, status, "internal server error")
		return
	}
	Error(w, status, err.Error())
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, v interface{}) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body too large", domain.ErrInvalidArgument)
		}
		return fmt.Errorf("%w: invalid request body", domain.ErrInvalidArgument)
	}
	return nil
}
