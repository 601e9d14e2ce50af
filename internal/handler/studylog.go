package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/stardylog/backend/internal/auth"
	"github.com/stardylog/backend/internal/service"
)

// StudyLogHandler records and lists timed study/break intervals.
type StudyLogHandler struct {
	logs   *service.StudyLogService
	logger *slog.Logger
}

func NewStudyLogHandler(logs *service.StudyLogService, logger *slog.Logger) *StudyLogHandler {
	return &StudyLogHandler{logs: logs, logger: logger}
}

// studyLogRequest mirrors the client's timer payload. Times are RFC 3339.
type studyLogRequest struct {
	SubjectName     string    `json:"subjectName"`
	SessionID       string    `json:"sessionId"`
	IntervalType    string    `json:"intervalType"`
	DurationSeconds int       `json:"durationSeconds"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
}

// HandleCreate handles POST /api/logs/study.
func (h *StudyLogHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	uid, err := auth.SubjectIDFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	var req studyLogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	log, err := h.logs.Record(r.Context(), uid, service.StudyLogInput{
		SubjectName:     req.SubjectName,
		SessionID:       req.SessionID,
		IntervalType:    req.IntervalType,
		DurationSeconds: req.DurationSeconds,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, log)
}

// HandleList handles GET /api/logs/study.
func (h *StudyLogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	uid, err := auth.SubjectIDFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	logs, err := h.logs.List(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
