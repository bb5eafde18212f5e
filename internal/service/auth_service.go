package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
	"github.com/noah-isme/sekolah-go-api/internal/database"
	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
)

var (
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = apperror.Unauthorized("invalid email or password")
	// ErrAccountPending is returned to accounts awaiting approval.
	ErrAccountPending = apperror.Forbidden("account awaiting administrator approval")
	// ErrAccountRejected is returned to accounts refused by an administrator.
	ErrAccountRejected = apperror.Forbidden("account has been rejected")
)

// AuthConfig carries token and hashing parameters.
type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

// AuthService registers accounts and issues access tokens.
type AuthService interface {
	Register(ctx context.Context, req dto.RegisterRequest) (dto.UserResponse, error)
	Login(ctx context.Context, req dto.LoginRequest) (dto.AuthResponse, error)
	EnsureAdmin(ctx context.Context, email, password string) error
}

type authService struct {
	users      repository.UserRepository
	guardians  repository.GuardianRepository
	curriculum repository.CurriculumRepository
	validator  *validator.Validate
	cfg        AuthConfig
	logger     zerolog.Logger
	now        func() time.Time
}

// NewAuthService constructs the auth service.
func NewAuthService(users repository.UserRepository, guardians repository.GuardianRepository, curriculum repository.CurriculumRepository, validate *validator.Validate, cfg AuthConfig, logger zerolog.Logger) AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		cfg.BcryptCost = bcrypt.DefaultCost
	}

	return &authService{
		users:      users,
		guardians:  guardians,
		curriculum: curriculum,
		validator:  validate,
		cfg:        cfg,
		logger:     logger.With().Str("component", "auth_service").Logger(),
		now:        time.Now,
	}
}

func (s *authService) Register(ctx context.Context, req dto.RegisterRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}

	user := models.User{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     req.Email,
		Role:      req.Role,
		Status:    models.UserStatusPending,
		Phone:     strings.TrimSpace(req.Phone),
	}

	switch req.Role {
	case models.UserRoleStudent:
		if req.LevelID == nil || strings.TrimSpace(req.EnrollmentNumber) == "" {
			return dto.UserResponse{}, apperror.Validation("learners need a level and an enrollment number")
		}
		if _, err := s.curriculum.GetLevel(ctx, *req.LevelID); err != nil {
			return dto.UserResponse{}, translateRepoError(err, "level not found")
		}
		user.LevelID = req.LevelID
		user.EnrollmentNumber = strings.TrimSpace(req.EnrollmentNumber)
	case models.UserRoleParent:
		if user.Phone == "" || len(req.DependentIDs) == 0 {
			return dto.UserResponse{}, apperror.Validation("guardians need a phone number and at least one dependent")
		}
		dependents, err := s.users.ListByIDs(ctx, req.DependentIDs)
		if err != nil {
			return dto.UserResponse{}, err
		}
		if len(dependents) != len(uniqueIDs(req.DependentIDs)) {
			return dto.UserResponse{}, apperror.NotFound("dependent not found")
		}
		for _, dependent := range dependents {
			if dependent.Role != models.UserRoleStudent {
				return dto.UserResponse{}, apperror.Validation("dependents must be learners")
			}
		}
	case models.UserRoleTeacher:
		if strings.TrimSpace(req.Specialty) == "" || strings.TrimSpace(req.Matricule) == "" {
			return dto.UserResponse{}, apperror.Validation("instructors need a specialty and a matricule")
		}
		user.Specialty = strings.TrimSpace(req.Specialty)
		user.Matricule = strings.TrimSpace(req.Matricule)
	default:
		return dto.UserResponse{}, apperror.Validation("role cannot self-register")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return dto.UserResponse{}, err
	}
	user.PasswordHash = string(hash)

	if err := s.users.Create(ctx, &user); err != nil {
		if database.IsUniqueViolation(err) {
			return dto.UserResponse{}, apperror.Conflict("email already registered")
		}
		return dto.UserResponse{}, err
	}

	if req.Role == models.UserRoleParent {
		for _, dependentID := range uniqueIDs(req.DependentIDs) {
			if err := s.guardians.Link(ctx, user.ID, dependentID); err != nil && !database.IsUniqueViolation(err) {
				return dto.UserResponse{}, err
			}
		}
	}

	s.logger.Info().Uint("user_id", user.ID).Str("role", user.Role).Msg("account registered")
	return dto.NewUserResponse(user), nil
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (dto.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AuthResponse{}, err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AuthResponse{}, ErrInvalidCredentials
		}
		return dto.AuthResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return dto.AuthResponse{}, ErrInvalidCredentials
	}

	switch user.Status {
	case models.UserStatusApproved:
	case models.UserStatusRejected:
		return dto.AuthResponse{}, ErrAccountRejected
	default:
		return dto.AuthResponse{}, ErrAccountPending
	}

	token, expiresAt, err := s.issueToken(user)
	if err != nil {
		return dto.AuthResponse{}, err
	}

	return dto.AuthResponse{Token: token, ExpiresAt: expiresAt, User: dto.NewUserResponse(user)}, nil
}

// EnsureAdmin creates the bootstrap administrator when it does not exist yet.
func (s *authService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return err
	}

	admin := models.User{
		FirstName:    "Administrator",
		LastName:     "",
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.UserRoleAdmin,
		Status:       models.UserStatusApproved,
	}
	if err := s.users.Create(ctx, &admin); err != nil && !database.IsUniqueViolation(err) {
		return err
	}

	s.logger.Info().Str("email", admin.Email).Msg("bootstrap administrator ensured")
	return nil
}

func (s *authService) issueToken(user models.User) (string, time.Time, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.cfg.TokenTTL)

	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(user.ID), 10),
		"role": user.Role,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
