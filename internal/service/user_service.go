package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/role-approval-api/internal/dto"
	"github.com/noah-isme/role-approval-api/internal/models"
	"github.com/noah-isme/role-approval-api/internal/repository"
	appErrors "github.com/noah-isme/role-approval-api/pkg/errors"
)

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.UserWithRole, error)
	Create(ctx context.Context, user *models.User) error
}

type userRoleLookup interface {
	FindByName(ctx context.Context, name string) (*models.Role, error)
}

// UserService handles super-admin user management.
type UserService struct {
	repo      userRepository
	roles     userRoleLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, roles userRoleLookup, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, roles: roles, validator: validate, logger: logger}
}

// CreateByAdmin creates a user holding any role directly, without an approval task.
func (s *UserService) CreateByAdmin(ctx context.Context, req dto.CreateUserRequest, actorID string) (*models.UserWithRole, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid user payload")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "User with this email already exists.")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check email")
	}

	role, err := s.roles.FindByName(ctx, req.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Role '%s' does not exist.", req.Role))
		}
		return nil, appErrors.Internal(err, "failed to resolve role")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}
	user := models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		Name:         req.Name,
		RoleID:       role.ID,
	}
	if country := strings.TrimSpace(req.Country); country != "" {
		user.Country = &country
	}
	if err := s.repo.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "User with this email already exists.")
		}
		return nil, appErrors.Internal(err, "failed to create user")
	}

	s.logger.Info("user created by admin",
		zap.String("user_id", user.ID),
		zap.String("role", role.Name),
		zap.String("actor_id", actorID),
	)
	return &models.UserWithRole{User: user, RoleName: role.Name, RoleTier: role.Tier}, nil
}
