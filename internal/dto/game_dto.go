package dto

import (
	"time"

	"github.com/noah-isme/sekolah-go-api/internal/models"
)

type GameSectionRequest struct {
	Name string `form:"name" json:"name" validate:"required,min=1,max=255"`
}

type GameRequest struct {
	Name      string `form:"name" json:"name" validate:"required,min=1,max=255"`
	URL       string `form:"url" json:"url" validate:"required,url,max=512"`
	SectionID uint   `form:"section_id" json:"section_id" validate:"required,gt=0"`
}

type GameSectionResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	ImageURL  string `json:"image_url,omitempty"`
	CreatedBy uint   `json:"created_by"`
}

type GameResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	SectionID   uint   `json:"section_id"`
	SectionName string `json:"section_name"`
	ImageURL    string `json:"image_url"`
	CreatedBy   uint   `json:"created_by"`
}

type GameScoreResponse struct {
	ID            uint      `json:"id"`
	GameID        uint      `json:"game_id"`
	GameName      string    `json:"game_name"`
	LearnerID     uint      `json:"learner_id"`
	LearnerName   string    `json:"learner_name,omitempty"`
	ScreenshotURL string    `json:"screenshot_url"`
	Reviewed      bool      `json:"reviewed"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

func NewGameSectionResponse(section models.GameSection) GameSectionResponse {
	return GameSectionResponse{ID: section.ID, Name: section.Name, ImageURL: section.ImageURL, CreatedBy: section.CreatedBy}
}

func NewGameSectionResponseSlice(sections []models.GameSection) []GameSectionResponse {
	out := make([]GameSectionResponse, 0, len(sections))
	for _, section := range sections {
		out = append(out, NewGameSectionResponse(section))
	}
	return out
}

func NewGameResponse(game models.Game) GameResponse {
	resp := GameResponse{
		ID:          game.ID,
		Name:        game.Name,
		URL:         game.URL,
		SectionID:   game.SectionID,
		SectionName: Unavailable,
		ImageURL:    game.ImageURL,
		CreatedBy:   game.CreatedBy,
	}
	if game.Section != nil {
		resp.SectionName = game.Section.Name
	}
	return resp
}

func NewGameResponseSlice(games []models.Game) []GameResponse {
	out := make([]GameResponse, 0, len(games))
	for _, game := range games {
		out = append(out, NewGameResponse(game))
	}
	return out
}

func NewGameScoreResponse(score models.GameScore) GameScoreResponse {
	resp := GameScoreResponse{
		ID:            score.ID,
		GameID:        score.GameID,
		GameName:      Unavailable,
		LearnerID:     score.LearnerID,
		ScreenshotURL: score.ScreenshotURL,
		Reviewed:      score.Reviewed,
		SubmittedAt:   score.SubmittedAt,
	}
	if score.Game != nil {
		resp.GameName = score.Game.Name
	}
	if score.Learner != nil {
		resp.LearnerName = score.Learner.FullName()
	}
	return resp
}

func NewGameScoreResponseSlice(scores []models.GameScore) []GameScoreResponse {
	out := make([]GameScoreResponse, 0, len(scores))
	for _, score := range scores {
		out = append(out, NewGameScoreResponse(score))
	}
	return out
}
