package dto

import "github.com/noah-isme/sekolah-go-api/internal/models"

type VocabularyCategoryRequest struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

// VocabularyRequest is sent as multipart form data with an image and an
// optional audio file.
type VocabularyRequest struct {
	Word       string `form:"word" json:"word" validate:"required,min=1,max=255"`
	CategoryID uint   `form:"category_id" json:"category_id" validate:"required,gt=0"`
}

type VocabularyCategoryResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type VocabularyResponse struct {
	ID           uint   `json:"id"`
	Word         string `json:"word"`
	CategoryID   uint   `json:"category_id"`
	CategoryName string `json:"category_name"`
	TeacherID    uint   `json:"teacher_id"`
	ImageURL     string `json:"image_url"`
	AudioURL     string `json:"audio_url,omitempty"`
}

func NewVocabularyCategoryResponseSlice(categories []models.VocabularyCategory) []VocabularyCategoryResponse {
	out := make([]VocabularyCategoryResponse, 0, len(categories))
	for _, category := range categories {
		out = append(out, VocabularyCategoryResponse{ID: category.ID, Name: category.Name})
	}
	return out
}

func NewVocabularyResponse(word models.Vocabulary) VocabularyResponse {
	resp := VocabularyResponse{
		ID:           word.ID,
		Word:         word.Word,
		CategoryID:   word.CategoryID,
		CategoryName: Unavailable,
		TeacherID:    word.TeacherID,
		ImageURL:     word.ImageURL,
		AudioURL:     word.AudioURL,
	}
	if word.Category != nil {
		resp.CategoryName = word.Category.Name
	}
	return resp
}

func NewVocabularyResponseSlice(words []models.Vocabulary) []VocabularyResponse {
	out := make([]VocabularyResponse, 0, len(words))
	for _, word := range words {
		out = append(out, NewVocabularyResponse(word))
	}
	return out
}
