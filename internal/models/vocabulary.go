package models

import "time"

// VocabularyCategory groups vocabulary words.
type VocabularyCategory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:120;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Vocabulary is an illustrated word with optional pronunciation audio.
type Vocabulary struct {
	ID         uint                `gorm:"primaryKey" json:"id"`
	Word       string              `gorm:"size:255;not null" json:"word"`
	CategoryID uint                `gorm:"not null;index" json:"category_id"`
	TeacherID  uint                `gorm:"not null;index" json:"teacher_id"`
	ImageRef   string              `gorm:"size:512;not null" json:"-"`
	ImageURL   string              `gorm:"size:512;not null" json:"image_url"`
	AudioRef   string              `gorm:"size:512" json:"-"`
	AudioURL   string              `gorm:"size:512" json:"audio_url"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
	Category   *VocabularyCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
