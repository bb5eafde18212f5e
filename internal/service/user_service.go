package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
	"github.com/noah-isme/sekolah-go-api/internal/conversation"
	"github.com/noah-isme/sekolah-go-api/internal/database"
	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
)

// UserService covers account administration and guardian links.
type UserService interface {
	List(ctx context.Context, principal identity.Principal, req dto.UserListRequest) (dto.UserListResponse, error)
	Get(ctx context.Context, principal identity.Principal, id uint) (dto.UserResponse, error)
	SetStatus(ctx context.Context, principal identity.Principal, id uint, req dto.UserStatusRequest) (dto.UserResponse, error)
	LinkGuardian(ctx context.Context, principal identity.Principal, req dto.GuardianLinkRequest) error
	UnlinkGuardian(ctx context.Context, principal identity.Principal, req dto.GuardianLinkRequest) error
	Dependents(ctx context.Context, principal identity.Principal) ([]dto.UserResponse, error)
	Contacts(ctx context.Context, principal identity.Principal, role string) ([]dto.ContactResponse, error)
}

type userService struct {
	users     repository.UserRepository
	guardians repository.GuardianRepository
	activity  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserService constructs the user administration service.
func NewUserService(users repository.UserRepository, guardians repository.GuardianRepository, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		users:     users,
		guardians: guardians,
		activity:  activity,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) List(ctx context.Context, principal identity.Principal, req dto.UserListRequest) (dto.UserListResponse, error) {
	if _, err := authorize(principal, identity.CapManageUsers); err != nil {
		return dto.UserListResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	filter := repository.UserFilter{
		Search:   strings.TrimSpace(req.Search),
		Role:     strings.ToLower(strings.TrimSpace(req.Role)),
		Status:   strings.ToLower(strings.TrimSpace(req.Status)),
		Page:     req.Page,
		PageSize: pageSize,
	}
	if req.LevelID > 0 {
		filter.LevelID = uintPtr(req.LevelID)
	}

	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return dto.UserListResponse{}, err
	}

	return dto.UserListResponse{
		Items:      dto.NewUserResponseSlice(users),
		Pagination: dto.NewPaginationMeta(req.Page, pageSize, total),
	}, nil
}

func (s *userService) Get(ctx context.Context, principal identity.Principal, id uint) (dto.UserResponse, error) {
	if _, err := authorize(principal, identity.CapManageUsers); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return dto.UserResponse{}, translateRepoError(err, "user not found")
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) SetStatus(ctx context.Context, principal identity.Principal, id uint, req dto.UserStatusRequest) (dto.UserResponse, error) {
	admin, err := authorize(principal, identity.CapManageUsers)
	if err != nil {
		return dto.UserResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}
	if id == admin.UserID {
		return dto.UserResponse{}, apperror.InvalidState("administrators cannot change their own status")
	}

	user, err := s.users.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		return dto.UserResponse{}, translateRepoError(err, "user not found")
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      admin,
		Action:     "user." + req.Status,
		EntityType: "user",
		EntityID:   uintPtr(user.ID),
		Metadata:   map[string]interface{}{"role": user.Role},
	})

	return dto.NewUserResponse(user), nil
}

func (s *userService) LinkGuardian(ctx context.Context, principal identity.Principal, req dto.GuardianLinkRequest) error {
	admin, err := authorize(principal, identity.CapManageUsers)
	if err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return err
	}

	if err := s.expectRole(ctx, req.GuardianID, models.UserRoleParent, "guardian not found"); err != nil {
		return err
	}
	if err := s.expectRole(ctx, req.DependentID, models.UserRoleStudent, "dependent not found"); err != nil {
		return err
	}

	if err := s.guardians.Link(ctx, req.GuardianID, req.DependentID); err != nil {
		if database.IsUniqueViolation(err) {
			return apperror.Conflict("guardian already linked to dependent")
		}
		return err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      admin,
		Action:     "guardian.link",
		EntityType: "user",
		EntityID:   uintPtr(req.DependentID),
		Metadata:   map[string]interface{}{"guardian_id": req.GuardianID},
	})
	return nil
}

func (s *userService) UnlinkGuardian(ctx context.Context, principal identity.Principal, req dto.GuardianLinkRequest) error {
	admin, err := authorize(principal, identity.CapManageUsers)
	if err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return err
	}

	if err := s.guardians.Unlink(ctx, req.GuardianID, req.DependentID); err != nil {
		return translateRepoError(err, "guardian link not found")
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      admin,
		Action:     "guardian.unlink",
		EntityType: "user",
		EntityID:   uintPtr(req.DependentID),
		Metadata:   map[string]interface{}{"guardian_id": req.GuardianID},
	})
	return nil
}

func (s *userService) Dependents(ctx context.Context, principal identity.Principal) ([]dto.UserResponse, error) {
	guardian, err := authorize(principal, identity.CapViewDependents)
	if err != nil {
		return nil, err
	}

	dependents, err := s.guardians.ListDependents(ctx, guardian.UserID)
	if err != nil {
		return nil, err
	}
	return dto.NewUserResponseSlice(dependents), nil
}

// Contacts lists approved users of a role the caller can message.
func (s *userService) Contacts(ctx context.Context, principal identity.Principal, role string) ([]dto.ContactResponse, error) {
	caller, err := authorize(principal, identity.CapSendMessages)
	if err != nil {
		return nil, err
	}

	role = strings.ToLower(strings.TrimSpace(role))
	if _, ok := identity.ParseRole(role); !ok {
		return nil, apperror.Validation("unknown role")
	}

	users, _, err := s.users.List(ctx, repository.UserFilter{Role: role, Status: models.UserStatusApproved})
	if err != nil {
		return nil, err
	}

	contacts := make([]dto.ContactResponse, 0, len(users))
	for _, user := range users {
		if user.ID == caller.UserID {
			continue
		}
		contacts = append(contacts, dto.ContactResponse{
			ID:             user.ID,
			FirstName:      user.FirstName,
			LastName:       user.LastName,
			Role:           user.Role,
			ConversationID: conversation.Key(caller.UserID, user.ID),
		})
	}
	return contacts, nil
}

func (s *userService) expectRole(ctx context.Context, id uint, role, notFound string) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return translateRepoError(err, notFound)
	}
	if user.Role != role {
		return apperror.NotFound(notFound)
	}
	return nil
}
