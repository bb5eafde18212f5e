package dto

import "time"

// DependentSummary is the denormalized progress view of one learner.
type DependentSummary struct {
	LearnerID        uint            `json:"learner_id"`
	FirstName        string          `json:"first_name"`
	LastName         string          `json:"last_name"`
	Level            string          `json:"level"`
	EnrollmentNumber string          `json:"enrollment_number"`
	Lessons          []LessonSummary `json:"lessons"`
	Quizzes          []QuizSummary   `json:"quizzes"`
	Tests            []TestSummary   `json:"tests"`
}

type LessonSummary struct {
	LessonID    uint       `json:"lesson_id"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	CurrentPage int        `json:"current_page"`
	CompletedAt *time.Time `json:"completed_at"`
}

type QuizSummary struct {
	QuizID      uint      `json:"quiz_id"`
	Title       string    `json:"title"`
	Difficulty  string    `json:"difficulty"`
	Status      string    `json:"status"`
	Score       float64   `json:"score"`
	Total       float64   `json:"total"`
	Percentage  float64   `json:"percentage"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type TestSummary struct {
	TestID      uint      `json:"test_id"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	Feedback    string    `json:"feedback"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ProgressResetResponse reports how many progress rows were cleared.
type ProgressResetResponse struct {
	Dependents     int   `json:"dependents"`
	LessonsCleared int64 `json:"lessons_cleared"`
}
