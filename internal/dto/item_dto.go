package dto

import (
	"time"

	"github.com/noah-isme/sekolah-go-api/internal/models"
)

// ItemCreateRequest creates a test or quiz; sent as multipart form data next
// to an optional media file.
type ItemCreateRequest struct {
	Kind         string `form:"kind" json:"kind" validate:"required,oneof=test quiz"`
	Title        string `form:"title" json:"title" validate:"required,min=1,max=255"`
	Instructions string `form:"instructions" json:"instructions" validate:"omitempty,max=10000"`
	Difficulty   string `form:"difficulty" json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	ProgramID    uint   `form:"program_id" json:"program_id" validate:"required,gt=0"`
	LessonID     *uint  `form:"lesson_id" json:"lesson_id" validate:"omitempty,gt=0"`
	UnitID       *uint  `form:"unit_id" json:"unit_id" validate:"omitempty,gt=0"`
}

// ItemUpdateRequest updates the provided fields only.
type ItemUpdateRequest struct {
	Title        *string `form:"title" json:"title" validate:"omitempty,min=1,max=255"`
	Instructions *string `form:"instructions" json:"instructions" validate:"omitempty,max=10000"`
	Difficulty   *string `form:"difficulty" json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
}

type ItemResponse struct {
	ID           uint      `json:"id"`
	Kind         string    `json:"kind"`
	Title        string    `json:"title"`
	Instructions string    `json:"instructions"`
	Difficulty   string    `json:"difficulty,omitempty"`
	TeacherID    uint      `json:"teacher_id"`
	ProgramID    uint      `json:"program_id"`
	LevelID      uint      `json:"level_id"`
	LessonID     *uint     `json:"lesson_id,omitempty"`
	UnitID       *uint     `json:"unit_id,omitempty"`
	MediaURL     string    `json:"media_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewItemResponse(item models.AssignableItem) ItemResponse {
	return ItemResponse{
		ID:           item.ID,
		Kind:         item.Kind,
		Title:        item.Title,
		Instructions: item.Instructions,
		Difficulty:   item.Difficulty,
		TeacherID:    item.TeacherID,
		ProgramID:    item.ProgramID,
		LevelID:      item.LevelID(),
		LessonID:     item.LessonID,
		UnitID:       item.UnitID,
		MediaURL:     item.MediaURL,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
}

func NewItemResponseSlice(items []models.AssignableItem) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewItemResponse(item))
	}
	return out
}
