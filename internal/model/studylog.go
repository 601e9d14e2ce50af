package model

import "time"

// Interval types a study log can record.
const (
	IntervalStudy = "study"
	IntervalBreak = "break"
)

// StudyLog is one timed interval of a study session.
//
// A client session (SessionID) is a sequence of study and break intervals.
// SubjectName is copied from the subject at logging time so that renaming or
// deleting a subject never rewrites history.
type StudyLog struct {
	ID              string    `json:"id"`
	UserUID         string    `json:"-"`
	SubjectName     string    `json:"subjectName"`
	SessionID       string    `json:"sessionId"`
	IntervalType    string    `json:"intervalType"`
	DurationSeconds int       `json:"durationSeconds"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
}
