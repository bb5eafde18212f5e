package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is the audit trail of administrative and grading actions.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"not null;index" json:"actor_id"`
	ActorRole  string            `gorm:"size:16;not null" json:"actor_role"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID   *uint             `json:"entity_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
}

// AllModels lists every persisted model in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Level{},
		&Program{},
		&Unit{},
		&User{},
		&GuardianLink{},
		&Lesson{},
		&LessonProgress{},
		&AssignableItem{},
		&Submission{},
		&Notification{},
		&Message{},
		&VocabularyCategory{},
		&Vocabulary{},
		&GameSection{},
		&Game{},
		&GameScore{},
		&UploadRecord{},
		&ActivityLog{},
	}
}
