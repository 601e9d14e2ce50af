package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stardylog/backend/internal/auth"
)

type statusCounter struct{ codes []int }

func (s *statusCounter) RecordHTTPStatus(code int) { s.codes = append(s.codes, code) }

// logLine runs one request through Logger and returns the decoded JSON log line.
func logLine(t *testing.T, h http.Handler, req *http.Request) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	Logger(logger, nil)(h).ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestLogger_Fields(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	})

	line := logLine(t, h, httptest.NewRequest(http.MethodPost, "/api/subjects", nil))

	assert.Equal(t, "request completed", line["msg"])
	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "POST", line["method"])
	assert.Equal(t, "/api/subjects", line["path"])
	assert.Equal(t, float64(http.StatusCreated), line["status"])
	assert.Equal(t, float64(5), line["bytes"])
	assert.NotContains(t, line, "subject")
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusUnauthorized, "WARN"},
		{http.StatusNotFound, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(tt.status) })

			line := logLine(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.level, line["level"])
		})
	}
}

func TestLogger_SubjectFromInnerMiddleware(t *testing.T) {
	// Simulates auth.Admission: the identity is attached to a context the
	// Logger never sees directly.
	withIdentity := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := auth.WithIdentity(r.Context(), auth.Authenticated("uid-7"))
			require.NoError(t, err)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	h := withIdentity(AnnotateSubject(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	line := logLine(t, h, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, "uid-7", line["subject"])
}

func TestLogger_RecordsStatus(t *testing.T) {
	counter := &statusCounter{}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := Logger(logger, counter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []int{http.StatusTeapot}, counter.codes)
}

func TestAnnotate_WithoutLoggerIsNoop(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.NotPanics(t, func() { Annotate(req.Context(), slog.String("k", "v")) })
}
