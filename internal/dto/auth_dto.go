package dto

import (
	"time"

	"github.com/noah-isme/sekolah-go-api/internal/models"
)

// RegisterRequest is the self-registration payload. Role specific fields are
// checked by the auth service.
type RegisterRequest struct {
	FirstName        string `json:"first_name" validate:"required,min=1,max=120"`
	LastName         string `json:"last_name" validate:"required,min=1,max=120"`
	Email            string `json:"email" validate:"required,email,max=255"`
	Password         string `json:"password" validate:"required,min=8,max=72"`
	Role             string `json:"role" validate:"required,oneof=student parent teacher"`
	Phone            string `json:"phone" validate:"omitempty,max=32"`
	LevelID          *uint  `json:"level_id" validate:"omitempty,gt=0"`
	EnrollmentNumber string `json:"enrollment_number" validate:"omitempty,max=64"`
	DependentIDs     []uint `json:"dependent_ids" validate:"omitempty,dive,gt=0"`
	Specialty        string `json:"specialty" validate:"omitempty,max=120"`
	Matricule        string `json:"matricule" validate:"omitempty,max=64"`
}

// LoginRequest carries credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID               uint      `json:"id"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	Status           string    `json:"status"`
	Phone            string    `json:"phone,omitempty"`
	LevelID          *uint     `json:"level_id,omitempty"`
	LevelName        string    `json:"level_name,omitempty"`
	EnrollmentNumber string    `json:"enrollment_number,omitempty"`
	Specialty        string    `json:"specialty,omitempty"`
	Matricule        string    `json:"matricule,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// AuthResponse is returned by a successful login.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// NewUserResponse converts a user model into its public view.
func NewUserResponse(user models.User) UserResponse {
	resp := UserResponse{
		ID:               user.ID,
		FirstName:        user.FirstName,
		LastName:         user.LastName,
		Email:            user.Email,
		Role:             user.Role,
		Status:           user.Status,
		Phone:            user.Phone,
		LevelID:          user.LevelID,
		EnrollmentNumber: user.EnrollmentNumber,
		Specialty:        user.Specialty,
		Matricule:        user.Matricule,
		CreatedAt:        user.CreatedAt,
	}
	if user.Level != nil {
		resp.LevelName = user.Level.Name
	}
	return resp
}

// NewUserResponseSlice converts users into their public view.
func NewUserResponseSlice(users []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, NewUserResponse(user))
	}
	return out
}
