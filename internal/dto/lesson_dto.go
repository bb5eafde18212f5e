package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/sekolah-go-api/internal/models"
)

// LessonPage is one page of lesson content.
type LessonPage struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// LessonCreateRequest is submitted as multipart form data next to an
// optional media file. Pages holds a JSON array of LessonPage.
type LessonCreateRequest struct {
	Title       string `form:"title" json:"title" validate:"required,min=1,max=255"`
	Description string `form:"description" json:"description" validate:"omitempty,max=5000"`
	ProgramID   uint   `form:"program_id" json:"program_id" validate:"required,gt=0"`
	UnitID      *uint  `form:"unit_id" json:"unit_id" validate:"omitempty,gt=0"`
	Pages       string `form:"pages" json:"pages" validate:"omitempty"`
}

// LessonUpdateRequest updates the provided fields only.
type LessonUpdateRequest struct {
	Title       *string `form:"title" json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `form:"description" json:"description" validate:"omitempty,max=5000"`
	UnitID      *uint   `form:"unit_id" json:"unit_id" validate:"omitempty,gt=0"`
	Pages       *string `form:"pages" json:"pages"`
}

// LessonProgressRequest reports how far a learner got.
type LessonProgressRequest struct {
	CurrentPage int  `json:"current_page" validate:"gte=0"`
	Completed   bool `json:"completed"`
}

type LessonResponse struct {
	ID          uint         `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	TeacherID   uint         `json:"teacher_id"`
	ProgramID   uint         `json:"program_id"`
	LevelID     uint         `json:"level_id"`
	UnitID      *uint        `json:"unit_id,omitempty"`
	MediaURL    string       `json:"media_url,omitempty"`
	Pages       []LessonPage `json:"pages"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type LessonProgressResponse struct {
	LessonID    uint       `json:"lesson_id"`
	Status      string     `json:"status"`
	CurrentPage int        `json:"current_page"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewLessonResponse converts a lesson model. Unparseable pages render as an empty list.
func NewLessonResponse(lesson models.Lesson) LessonResponse {
	pages := []LessonPage{}
	if len(lesson.Pages) > 0 {
		var decoded []LessonPage
		if err := json.Unmarshal(lesson.Pages, &decoded); err == nil && decoded != nil {
			pages = decoded
		}
	}

	resp := LessonResponse{
		ID:          lesson.ID,
		Title:       lesson.Title,
		Description: lesson.Description,
		TeacherID:   lesson.TeacherID,
		ProgramID:   lesson.ProgramID,
		UnitID:      lesson.UnitID,
		MediaURL:    lesson.MediaURL,
		Pages:       pages,
		CreatedAt:   lesson.CreatedAt,
		UpdatedAt:   lesson.UpdatedAt,
	}
	if lesson.Program != nil {
		resp.LevelID = lesson.Program.LevelID
	}
	return resp
}

func NewLessonResponseSlice(lessons []models.Lesson) []LessonResponse {
	out := make([]LessonResponse, 0, len(lessons))
	for _, lesson := range lessons {
		out = append(out, NewLessonResponse(lesson))
	}
	return out
}

func NewLessonProgressResponse(progress models.LessonProgress) LessonProgressResponse {
	return LessonProgressResponse{
		LessonID:    progress.LessonID,
		Status:      progress.Status,
		CurrentPage: progress.CurrentPage,
		CompletedAt: progress.CompletedAt,
		UpdatedAt:   progress.UpdatedAt,
	}
}
