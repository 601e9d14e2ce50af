package handler

// RESPONSE HELPERS:
// Every handler in this package answers through writeJSON or writeError, so
// the status line, Content-Type and body shape are decided in one place.
//
// ERROR SHAPE:
// Every error response from the API has the same body:
//
//	{"error": "not_found", "message": "subject not found with id abc123"}
//	{"error": "conflict", "message": "display name already in use", "field": "displayName"}
//
// auth.Admission writes the same shape for 401/500 answers it gives before a
// handler runs, so a client only ever parses one error format.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/stardylog/backend/internal/apperror"
)

// ErrorResponse is the body of every non-2xx JSON answer.
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable kind, e.g. "not_found"
	Message string `json:"message"`         // safe to show to the user
	Field   string `json:"field,omitempty"` // offending input, for validation and conflict errors
}

// writeJSON sends data with the given status code.
// Headers go first: once Encode writes the body, header changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// The status line is already out; logging is all that is left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError translates a service-layer error into an HTTP answer.
//
// STATUS MAPPING (first match wins, anywhere in the wrap chain):
//
//	apperror.ErrValidation      → 400 validation_error
//	apperror.ErrUnauthenticated → 401 unauthenticated
//	apperror.ErrForbidden       → 403 forbidden
//	apperror.ErrNotFound        → 404 not_found
//	apperror.ErrConflict        → 409 conflict
//	anything else               → 500 internal_error
//
// Services wrap with fmt.Errorf("doing x: %w", err), so errors.Is and
// errors.As see through any number of layers:
//
//	fmt.Errorf("creating subject: %w", apperror.Conflict(...))
//	  → *AppError{Err: ErrConflict} → ErrConflict ✓
//
// The services know nothing about HTTP; this is the only place statuses are
// chosen.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		for _, k := range errorKinds {
			if errors.Is(err, k.sentinel) {
				writeJSON(w, k.status, ErrorResponse{
					Error:   k.name,
					Message: appErr.Message,
					Field:   appErr.Field,
				})
				return
			}
		}
	}

	// Raw error text can carry SQL, file paths or driver details.
	// It goes to the log, never to the client.
	slog.Error("request failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

var errorKinds = []struct {
	sentinel error
	status   int
	name     string
}{
	{apperror.ErrValidation, http.StatusBadRequest, "validation_error"},
	{apperror.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{apperror.ErrForbidden, http.StatusForbidden, "forbidden"},
	{apperror.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperror.ErrConflict, http.StatusConflict, "conflict"},
}

// maxBodyBytes caps request bodies. Every payload this API accepts is tiny.
const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into dst. A malformed body becomes a
// validation error, so writeError answers it with 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}
