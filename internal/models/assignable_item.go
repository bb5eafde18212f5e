package models

import "time"

const (
	ItemKindTest = "test"
	ItemKindQuiz = "quiz"
)

// AssignableItem is a teacher-authored test or quiz that learners of the
// program's level respond to.
type AssignableItem struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Kind         string    `gorm:"size:16;index;not null" json:"kind"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	Instructions string    `gorm:"type:text" json:"instructions"`
	Difficulty   string    `gorm:"size:32" json:"difficulty"`
	TeacherID    uint      `gorm:"not null;index" json:"teacher_id"`
	ProgramID    uint      `gorm:"not null;index" json:"program_id"`
	LessonID     *uint     `gorm:"index" json:"lesson_id"`
	UnitID       *uint     `gorm:"index" json:"unit_id"`
	MediaRef     string    `gorm:"size:512" json:"-"`
	MediaURL     string    `gorm:"size:512" json:"media_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Program      *Program  `gorm:"foreignKey:ProgramID" json:"program,omitempty"`
}

// LevelID returns the cohort the item is published to, or zero when the
// program was not loaded.
func (i AssignableItem) LevelID() uint {
	if i.Program == nil {
		return 0
	}
	return i.Program.LevelID
}
