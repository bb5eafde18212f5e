package dto

import (
	"time"

	"github.com/noah-isme/sekolah-go-api/internal/models"
)

// CorrectionRequest is the instructor's verdict on a submission.
type CorrectionRequest struct {
	Status   string   `form:"status" json:"status" validate:"required,oneof=submitted corrected rejected"`
	Feedback *string  `form:"feedback" json:"feedback" validate:"omitempty,max=10000"`
	Score    *float64 `form:"score" json:"score" validate:"omitempty,gte=0"`
	MaxScore *float64 `form:"max_score" json:"max_score" validate:"omitempty,gt=0"`
}

// SubmissionResponse is the learner's view of their own submission.
type SubmissionResponse struct {
	ID            uint       `json:"id"`
	ItemID        uint       `json:"item_id"`
	ItemKind      string     `json:"item_kind"`
	ItemTitle     string     `json:"item_title"`
	AnonymousID   string     `json:"anonymous_id"`
	ArtifactURL   string     `json:"artifact_url"`
	Status        string     `json:"status"`
	Feedback      *string    `json:"feedback"`
	CorrectionURL *string    `json:"correction_url"`
	Score         *float64   `json:"score,omitempty"`
	MaxScore      *float64   `json:"max_score,omitempty"`
	Percentage    *float64   `json:"percentage,omitempty"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	CorrectedAt   *time.Time `json:"corrected_at"`
}

// AnonymousSubmissionResponse is what instructors see: the learner is only
// known through the anonymous id.
type AnonymousSubmissionResponse struct {
	ID            uint       `json:"id"`
	ItemID        uint       `json:"item_id"`
	ItemTitle     string     `json:"item_title"`
	AnonymousID   string     `json:"anonymous_id"`
	ArtifactURL   string     `json:"artifact_url"`
	Status        string     `json:"status"`
	Feedback      *string    `json:"feedback"`
	CorrectionURL *string    `json:"correction_url"`
	Score         *float64   `json:"score,omitempty"`
	MaxScore      *float64   `json:"max_score,omitempty"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	CorrectedAt   *time.Time `json:"corrected_at"`
}

func NewSubmissionResponse(submission models.Submission) SubmissionResponse {
	resp := SubmissionResponse{
		ID:            submission.ID,
		ItemID:        submission.ItemID,
		ItemKind:      Unavailable,
		ItemTitle:     Unavailable,
		AnonymousID:   submission.AnonymousID,
		ArtifactURL:   submission.ArtifactURL,
		Status:        submission.Status,
		Feedback:      submission.Feedback,
		CorrectionURL: submission.CorrectionURL,
		Score:         submission.Score,
		MaxScore:      submission.MaxScore,
		Percentage:    submission.Percentage(),
		SubmittedAt:   submission.SubmittedAt,
		CorrectedAt:   submission.CorrectedAt,
	}
	if submission.Item != nil {
		resp.ItemKind = submission.Item.Kind
		resp.ItemTitle = submission.Item.Title
	}
	return resp
}

func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	out := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		out = append(out, NewSubmissionResponse(submission))
	}
	return out
}

func NewAnonymousSubmissionResponse(submission models.Submission) AnonymousSubmissionResponse {
	resp := AnonymousSubmissionResponse{
		ID:            submission.ID,
		ItemID:        submission.ItemID,
		ItemTitle:     Unavailable,
		AnonymousID:   submission.AnonymousID,
		ArtifactURL:   submission.ArtifactURL,
		Status:        submission.Status,
		Feedback:      submission.Feedback,
		CorrectionURL: submission.CorrectionURL,
		Score:         submission.Score,
		MaxScore:      submission.MaxScore,
		SubmittedAt:   submission.SubmittedAt,
		CorrectedAt:   submission.CorrectedAt,
	}
	if submission.Item != nil {
		resp.ItemTitle = submission.Item.Title
	}
	return resp
}

func NewAnonymousSubmissionResponseSlice(submissions []models.Submission) []AnonymousSubmissionResponse {
	out := make([]AnonymousSubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		out = append(out, NewAnonymousSubmissionResponse(submission))
	}
	return out
}
