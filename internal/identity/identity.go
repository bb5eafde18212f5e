// Package identity resolves authenticated principals into roles and checks
// the capability each operation requires.
package identity

import (
	"strings"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
)

// Role is the resolved role of a principal.
type Role string

const (
	RoleLearner       Role = "student"
	RoleGuardian      Role = "parent"
	RoleInstructor    Role = "teacher"
	RoleAdministrator Role = "admin"
)

// Capability names an operation-level permission.
type Capability string

const (
	CapSubmitWork          Capability = "submit_work"
	CapManageItems         Capability = "manage_items"
	CapViewItems           Capability = "view_items"
	CapCorrectWork         Capability = "correct_work"
	CapViewDependents      Capability = "view_dependents"
	CapManageLessons       Capability = "manage_lessons"
	CapTrackLessons        Capability = "track_lessons"
	CapViewLessons         Capability = "view_lessons"
	CapSendMessages        Capability = "send_messages"
	CapReadNotifications   Capability = "read_notifications"
	CapManageVocabulary    Capability = "manage_vocabulary"
	CapViewVocabulary      Capability = "view_vocabulary"
	CapManageGames         Capability = "manage_games"
	CapPlayGames           Capability = "play_games"
	CapViewGames           Capability = "view_games"
	CapViewLearnerProgress Capability = "view_learner_progress"
	CapManageUsers         Capability = "manage_users"
	CapManageCurriculum    Capability = "manage_curriculum"
	CapViewActivity        Capability = "view_activity"
	CapUploadFiles         Capability = "upload_files"
)

var everyone = []Role{RoleLearner, RoleGuardian, RoleInstructor, RoleAdministrator}

var capabilityRoles = map[Capability][]Role{
	CapSubmitWork:          {RoleLearner},
	CapManageItems:         {RoleInstructor},
	CapViewItems:           {RoleLearner, RoleInstructor, RoleAdministrator},
	CapCorrectWork:         {RoleInstructor},
	CapViewDependents:      {RoleGuardian},
	CapManageLessons:       {RoleInstructor},
	CapTrackLessons:        {RoleLearner},
	CapViewLessons:         {RoleLearner, RoleInstructor, RoleAdministrator},
	CapSendMessages:        everyone,
	CapReadNotifications:   everyone,
	CapManageVocabulary:    {RoleInstructor},
	CapViewVocabulary:      {RoleLearner, RoleInstructor},
	CapManageGames:         {RoleInstructor},
	CapPlayGames:           {RoleLearner},
	CapViewGames:           {RoleLearner, RoleInstructor},
	CapViewLearnerProgress: {RoleInstructor, RoleAdministrator},
	CapManageUsers:         {RoleAdministrator},
	CapManageCurriculum:    {RoleAdministrator},
	CapViewActivity:        {RoleAdministrator},
	CapUploadFiles:         everyone,
}

var (
	// ErrNoPrincipal is returned when a request carries no authenticated principal.
	ErrNoPrincipal = apperror.Unauthorized("authentication required")
	// ErrInsufficientRole is returned when the principal's role lacks a capability.
	ErrInsufficientRole = apperror.Forbidden("insufficient permissions")
)

// Principal is the authenticated caller of an operation.
type Principal struct {
	UserID uint
	Role   Role
}

// ParseRole normalises a raw role discriminator.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleLearner:
		return RoleLearner, true
	case RoleGuardian:
		return RoleGuardian, true
	case RoleInstructor:
		return RoleInstructor, true
	case RoleAdministrator:
		return RoleAdministrator, true
	default:
		return "", false
	}
}

// Resolve returns the principal's role.
func Resolve(p *Principal) (Role, error) {
	if p == nil || p.UserID == 0 {
		return "", ErrNoPrincipal
	}
	role, ok := ParseRole(string(p.Role))
	if !ok {
		return "", ErrInsufficientRole
	}
	return role, nil
}

// Authorize resolves the principal and checks it holds the capability.
func Authorize(p *Principal, capability Capability) (Principal, error) {
	role, err := Resolve(p)
	if err != nil {
		return Principal{}, err
	}
	if !Allows(role, capability) {
		return Principal{}, ErrInsufficientRole
	}
	return Principal{UserID: p.UserID, Role: role}, nil
}

// Allows reports whether role holds capability.
func Allows(role Role, capability Capability) bool {
	for _, allowed := range capabilityRoles[capability] {
		if allowed == role {
			return true
		}
	}
	return false
}

// Is reports whether the principal resolves to role.
func (p Principal) Is(role Role) bool {
	resolved, err := Resolve(&p)
	return err == nil && resolved == role
}
