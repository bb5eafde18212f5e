package models

import "time"

const (
	UserRoleStudent = "student"
	UserRoleParent  = "parent"
	UserRoleTeacher = "teacher"
	UserRoleAdmin   = "admin"
)

const (
	// UserStatusPending marks an account awaiting administrator approval.
	UserStatusPending = "pending"
	// UserStatusApproved marks an account allowed to sign in.
	UserStatusApproved = "approved"
	// UserStatusRejected marks an account refused by an administrator.
	UserStatusRejected = "rejected"
)

// User is any account of the school platform. Role decides which of the
// role-specific columns are populated.
type User struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	FirstName        string    `gorm:"size:120;not null" json:"first_name"`
	LastName         string    `gorm:"size:120;not null" json:"last_name"`
	Email            string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash     string    `gorm:"size:255;not null" json:"-"`
	Role             string    `gorm:"size:16;index;not null" json:"role"`
	Status           string    `gorm:"size:16;index;not null;default:pending" json:"status"`
	Phone            string    `gorm:"size:32" json:"phone,omitempty"`
	LevelID          *uint     `gorm:"index" json:"level_id,omitempty"`
	EnrollmentNumber string    `gorm:"size:64" json:"enrollment_number,omitempty"`
	Specialty        string    `gorm:"size:120" json:"specialty,omitempty"`
	Matricule        string    `gorm:"size:64" json:"matricule,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Level            *Level    `gorm:"foreignKey:LevelID" json:"level,omitempty"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// IsApproved reports whether the account may sign in.
func (u User) IsApproved() bool {
	return u.Status == UserStatusApproved
}

// GuardianLink associates a parent account with one of their children.
type GuardianLink struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	GuardianID  uint      `gorm:"not null;uniqueIndex:idx_guardian_dependent" json:"guardian_id"`
	DependentID uint      `gorm:"not null;uniqueIndex:idx_guardian_dependent;index" json:"dependent_id"`
	CreatedAt   time.Time `json:"created_at"`
	Guardian    *User     `gorm:"foreignKey:GuardianID" json:"guardian,omitempty"`
	Dependent   *User     `gorm:"foreignKey:DependentID" json:"dependent,omitempty"`
}
