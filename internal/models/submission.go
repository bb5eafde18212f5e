package models

import "time"

// Submission is one learner's response to one assignable item.
type Submission struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	ItemID        uint            `gorm:"not null;uniqueIndex:idx_submission_learner_item" json:"item_id"`
	LearnerID     uint            `gorm:"not null;uniqueIndex:idx_submission_learner_item;index" json:"learner_id"`
	AnonymousID   string          `gorm:"size:64;not null;uniqueIndex" json:"anonymous_id"`
	ArtifactRef   string          `gorm:"size:512;not null" json:"-"`
	ArtifactURL   string          `gorm:"size:512;not null" json:"artifact_url"`
	Status        string          `gorm:"size:16;not null;default:pending" json:"status"`
	Feedback      *string         `gorm:"type:text" json:"feedback"`
	CorrectionRef *string         `gorm:"size:512" json:"-"`
	CorrectionURL *string         `gorm:"size:512" json:"correction_url"`
	Score         *float64        `json:"score"`
	MaxScore      *float64        `json:"max_score"`
	SubmittedAt   time.Time       `gorm:"not null" json:"submitted_at"`
	CorrectedAt   *time.Time      `json:"corrected_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Item          *AssignableItem `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	Learner       *User           `gorm:"foreignKey:LearnerID" json:"learner,omitempty"`
}

const (
	SubmissionStatusPending   = "pending"
	SubmissionStatusSubmitted = "submitted"
	SubmissionStatusCorrected = "corrected"
	SubmissionStatusRejected  = "rejected"
)

// IsCorrected reports whether the submission reached its terminal state.
func (s Submission) IsCorrected() bool {
	return s.Status == SubmissionStatusCorrected
}

// Percentage returns score/max_score as a percentage when both are known.
func (s Submission) Percentage() *float64 {
	if s.Score == nil || s.MaxScore == nil || *s.MaxScore <= 0 {
		return nil
	}
	value := (*s.Score / *s.MaxScore) * 100
	return &value
}
