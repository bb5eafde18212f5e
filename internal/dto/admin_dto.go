package dto

import (
	"time"

	"github.com/noah-isme/sekolah-go-api/internal/models"
)

// UserListRequest defines filters for listing accounts.
type UserListRequest struct {
	Page     int
	PageSize int
	Search   string
	Role     string
	Status   string
	LevelID  uint
}

// UserListResponse wraps a paginated user listing.
type UserListResponse struct {
	Items      []UserResponse `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// UserStatusRequest approves or rejects a pending account.
type UserStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

// GuardianLinkRequest links a guardian to a learner.
type GuardianLinkRequest struct {
	GuardianID  uint `json:"guardian_id" validate:"required,gt=0"`
	DependentID uint `json:"dependent_id" validate:"required,gt=0"`
}

// ActivityListRequest defines filters for retrieving activity logs.
type ActivityListRequest struct {
	Page       int
	PageSize   int
	ActorID    uint
	Action     string
	EntityType string
}

// ActivityResponse serializes activity log entries.
type ActivityResponse struct {
	ID         uint                   `json:"id"`
	ActorID    uint                   `json:"actor_id"`
	ActorRole  string                 `json:"actor_role"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   *uint                  `json:"entity_id"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}

// ActivityListResponse wraps paginated activity logs.
type ActivityListResponse struct {
	Items      []ActivityResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// NewActivityResponse converts a model into an activity DTO.
func NewActivityResponse(entry models.ActivityLog) ActivityResponse {
	metadata := map[string]interface{}{}
	for key, value := range entry.Metadata {
		metadata[key] = value
	}

	return ActivityResponse{
		ID:         entry.ID,
		ActorID:    entry.ActorID,
		ActorRole:  entry.ActorRole,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Metadata:   metadata,
		CreatedAt:  entry.CreatedAt,
	}
}
