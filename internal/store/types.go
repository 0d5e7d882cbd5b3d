package store

import (
	"encoding/json"
	"time"
)

// DefaultValidatorKind is the judging strategy used when neither the lesson
// nor the problem names one.
const DefaultValidatorKind = "exact-match"

// Lesson is a unit of content. Lessons are globally ordered by
// (CreatedAt, ID).
type Lesson struct {
	ID              int64          `json:"id"`
	Title           string         `json:"title"`
	BodyMD          string         `json:"body_md"`
	CreatedAt       time.Time      `json:"created_at"`
	ValidatorKind   string         `json:"validator_kind"`
	ValidatorConfig map[string]any `json:"validator_config"`
}

// Problem belongs to exactly one lesson. ValidatorKind and ValidatorConfig
// are optional per-problem overrides of the lesson defaults.
type Problem struct {
	ID              int64          `json:"id"`
	LessonID        int64          `json:"lesson_id"`
	PromptText      string         `json:"prompt_text"`
	AnswerText      string         `json:"answer_text"`
	CreatedAt       time.Time      `json:"created_at"`
	ValidatorKind   *string        `json:"validator_kind,omitempty"`
	ValidatorConfig map[string]any `json:"validator_config,omitempty"`
}

// NewLesson holds the fields needed to create a lesson.
type NewLesson struct {
	Title           string
	BodyMD          string
	ValidatorKind   string
	ValidatorConfig map[string]any
}

// NewProblem holds the fields needed to create a problem.
type NewProblem struct {
	LessonID        int64
	PromptText      string
	AnswerText      string
	ValidatorKind   *string
	ValidatorConfig map[string]any
}

// User is a learner. Lessons is the unlocked set in unlock order.
type User struct {
	ID           int64     `json:"user_id"`
	Username     string    `json:"username"`
	ActiveLesson *int64    `json:"active_lesson"`
	Lessons      []int64   `json:"lessons"`
	CreatedAt    time.Time `json:"-"`
}

// NewAttempt is an attempt record as submitted. UserID nil means anonymous.
type NewAttempt struct {
	UserID        *int64
	ProblemID     int64
	SubmittedText string
	IsCorrect     bool
	Stage         *string
	ErrorReason   *string
	Details       json.RawMessage
}

// AttemptRef identifies a persisted attempt.
type AttemptRef struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewState is the Leitner box and due date of one (user, lesson) pair.
type ReviewState struct {
	UserID    int64      `json:"-"`
	LessonID  int64      `json:"lesson_id"`
	Box       int        `json:"box"`
	DueAt     time.Time  `json:"due_at"`
	UpdatedAt *time.Time `json:"-"`
}

// LastAttempt is one row of the last-attempt-per-lesson report.
type LastAttempt struct {
	UserID         int64     `json:"user_id"`
	LessonID       int64     `json:"lesson_id"`
	LastAttemptUTC time.Time `json:"last_attempt_utc"`
}
