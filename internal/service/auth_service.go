package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/role-approval-api/internal/dto"
	"github.com/noah-isme/role-approval-api/internal/models"
	"github.com/noah-isme/role-approval-api/internal/repository"
	appErrors "github.com/noah-isme/role-approval-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.UserWithRole, error)
	FindByID(ctx context.Context, id string) (*models.UserWithRole, error)
	Create(ctx context.Context, user *models.User) error
}

type authRoleRepository interface {
	FindByName(ctx context.Context, name string) (*models.Role, error)
	FindBaseline(ctx context.Context) (*models.Role, error)
}

type pendingRequestCreator interface {
	CreatePendingRequest(ctx context.Context, userID string, role *models.Role, evidence []models.EvidenceFile) (*models.Task, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// requestableRoles are the role names accepted at self-registration.
var requestableRoles = map[string]struct{}{
	models.RoleGeneralPublic:  {},
	models.RoleEpidemiologist: {},
	models.RoleMedicalOfficer: {},
	models.RoleAdmin:          {},
}

// AuthService provides registration, login and token use cases.
type AuthService struct {
	users     authUserRepository
	roles     authRoleRepository
	tasks     pendingRequestCreator
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users authUserRepository, roles authRoleRepository, tasks pendingRequestCreator, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = time.Hour
	}
	svc := &AuthService{users: users, roles: roles, tasks: tasks, validator: validate, logger: logger, config: config}
	if err := svc.validator.RegisterValidation("requestable_role", func(fl validator.FieldLevel) bool {
		_, ok := requestableRoles[fl.Field().String()]
		return ok
	}); err != nil {
		panic(fmt.Sprintf("register requestable_role validation: %v", err))
	}
	return svc
}

// Register creates a baseline account and, for privileged roles, a pending approval task.
// The evidence policy is checked before the user row is written.
func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest, evidence []models.EvidenceFile) (*dto.RegisterResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid registration payload")
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "User with this email already exists.")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check email")
	}

	requested, err := s.roles.FindByName(ctx, req.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Role '%s' does not exist.", req.Role))
		}
		return nil, appErrors.Internal(err, "failed to resolve role")
	}
	if !requested.IsBaseline() {
		if err := CheckEvidencePolicy(requested, len(evidence)); err != nil {
			return nil, err
		}
	}
	baseline, err := s.roles.FindBaseline(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "baseline role is not configured")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}
	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		Name:         req.Name,
		RoleID:       baseline.ID,
	}
	if country := strings.TrimSpace(req.Country); country != "" {
		user.Country = &country
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "User with this email already exists.")
		}
		return nil, appErrors.Internal(err, "failed to create user")
	}

	resp := &dto.RegisterResponse{UserID: user.ID, Role: baseline.Name}
	if requested.IsBaseline() {
		resp.Message = "Registration successful. You are registered as General Public."
		return resp, nil
	}

	task, err := s.tasks.CreatePendingRequest(ctx, user.ID, requested, evidence)
	if err != nil {
		s.logger.Error("registered user without approval task", zap.String("user_id", user.ID), zap.Error(err))
		return nil, err
	}
	resp.TaskID = &task.ID
	resp.Message = fmt.Sprintf("Registration successful. An approval task is PENDING for your role: %s.", requested.Name)
	return resp, nil
}

// Authenticate verifies credentials and returns the user with its role.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*models.UserWithRole, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Internal(err, "failed to fetch user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}
	return user, nil
}

// Login authenticates a user and returns a signed access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid login payload")
	}
	user, err := s.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	token, err := s.IssueToken(user.ID, user.Email, user.RoleName)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", zap.String("user_id", user.ID))
	return token, nil
}

// IssueToken signs an HS256 access token for the given identity.
func (s *AuthService) IssueToken(userID, email, roleName string) (*models.TokenResponse, error) {
	issuedAt := time.Now().UTC()
	claims := &models.JWTClaims{
		UserID: userID,
		Email:  email,
		Role:   roleName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create access token")
	}
	return &models.TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
	}, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}
