package models

import (
	"time"

	"gorm.io/datatypes"
)

// Level is a school year. Learners belong to exactly one level.
type Level struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:120;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Program is the curriculum of a level.
type Program struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	LevelID   uint      `gorm:"not null;index" json:"level_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Level     *Level    `gorm:"foreignKey:LevelID" json:"level,omitempty"`
}

// Unit groups lessons inside a program.
type Unit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	ProgramID uint      `gorm:"not null;index" json:"program_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Lesson is teaching material authored by a teacher.
type Lesson struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	TeacherID   uint           `gorm:"not null;index" json:"teacher_id"`
	ProgramID   uint           `gorm:"not null;index" json:"program_id"`
	UnitID      *uint          `gorm:"index" json:"unit_id"`
	MediaRef    string         `gorm:"size:512" json:"-"`
	MediaURL    string         `gorm:"size:512" json:"media_url"`
	Pages       datatypes.JSON `json:"pages"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Program     *Program       `gorm:"foreignKey:ProgramID" json:"program,omitempty"`
}

const (
	LessonProgressNotStarted = "not_started"
	LessonProgressInProgress = "in_progress"
	LessonProgressCompleted  = "completed"
)

// LessonProgress tracks how far a learner got through a lesson.
type LessonProgress struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	StudentID   uint       `gorm:"not null;uniqueIndex:idx_progress_student_lesson" json:"student_id"`
	LessonID    uint       `gorm:"not null;uniqueIndex:idx_progress_student_lesson" json:"lesson_id"`
	Status      string     `gorm:"size:16;not null" json:"status"`
	CurrentPage int        `gorm:"not null;default:0" json:"current_page"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Lesson      *Lesson    `gorm:"foreignKey:LessonID" json:"lesson,omitempty"`
}
