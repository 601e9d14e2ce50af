package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stardylog/backend/internal/apperror"
)

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"validation", apperror.ValidationFailed("name", "required"), http.StatusBadRequest, "validation_error"},
		{"unauthenticated", apperror.Unauthenticated(), http.StatusUnauthorized, "unauthenticated"},
		{"forbidden", apperror.Forbidden("no"), http.StatusForbidden, "forbidden"},
		{"not found", apperror.NotFound("subject", "x"), http.StatusNotFound, "not_found"},
		{"conflict", apperror.Conflict("displayName", "taken"), http.StatusConflict, "conflict"},
		{"wrapped", fmt.Errorf("layer: %w", apperror.NotFound("user", "u")), http.StatusNotFound, "not_found"},
		{"unknown", errors.New("sql: connection refused"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantType, body.Error)
			assert.NotContains(t, body.Message, "sql")
		})
	}
}

func TestWriteError_IncludesField(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, apperror.Conflict("displayName", "display name already in use"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "displayName", body.Field)
}
