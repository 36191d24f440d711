package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/role-approval-api/internal/dto"
	"github.com/noah-isme/role-approval-api/internal/models"
	"github.com/noah-isme/role-approval-api/internal/repository"
	appErrors "github.com/noah-isme/role-approval-api/pkg/errors"
)

type authCodeStore interface {
	Save(ctx context.Context, code string, grant models.AuthCode, ttl time.Duration) error
	Consume(ctx context.Context, code string) (*models.AuthCode, error)
}

type credentialVerifier interface {
	Authenticate(ctx context.Context, email, password string) (*models.UserWithRole, error)
}

type tokenIssuer interface {
	IssueToken(userID, email, roleName string) (*models.TokenResponse, error)
}

// OAuthConfig describes the single registered client.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	CodeTTL      time.Duration
}

// OAuthService implements the authorization code grant for one confidential client.
type OAuthService struct {
	codes       authCodeStore
	credentials credentialVerifier
	tokens      tokenIssuer
	cfg         OAuthConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewOAuthService constructs the service.
func NewOAuthService(codes authCodeStore, credentials credentialVerifier, tokens tokenIssuer, cfg OAuthConfig, logger *zap.Logger) *OAuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 5 * time.Minute
	}
	return &OAuthService{
		codes:       codes,
		credentials: credentials,
		tokens:      tokens,
		cfg:         cfg,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Authorize verifies the resource owner and returns the redirect location carrying a fresh code.
func (s *OAuthService) Authorize(ctx context.Context, req dto.AuthorizeRequest) (string, error) {
	if req.ClientID != s.cfg.ClientID {
		return "", appErrors.Clone(appErrors.ErrValidation, "Invalid client_id")
	}
	redirect, err := url.Parse(req.RedirectURI)
	if err != nil || redirect.Scheme == "" || redirect.Host == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "Invalid redirect_uri")
	}
	user, err := s.credentials.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return "", err
	}
	code, err := newAuthorizationCode()
	if err != nil {
		return "", appErrors.Internal(err, "failed to generate authorization code")
	}
	grant := models.AuthCode{
		UserID:      user.ID,
		Email:       user.Email,
		RoleName:    user.RoleName,
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		ExpiresAt:   s.now().Add(s.cfg.CodeTTL),
	}
	if err := s.codes.Save(ctx, code, grant, s.cfg.CodeTTL); err != nil {
		return "", appErrors.Internal(err, "failed to store authorization code")
	}

	query := redirect.Query()
	query.Set("code", code)
	if req.State != "" {
		query.Set("state", req.State)
	}
	redirect.RawQuery = query.Encode()
	s.logger.Info("authorization code issued", zap.String("user_id", user.ID), zap.String("client_id", req.ClientID))
	return redirect.String(), nil
}

// Exchange trades a single-use authorization code for an access token.
func (s *OAuthService) Exchange(ctx context.Context, req dto.TokenRequest) (*models.TokenResponse, error) {
	if req.GrantType != "authorization_code" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Unsupported grant type.")
	}
	if req.ClientID != s.cfg.ClientID || subtle.ConstantTimeCompare([]byte(req.ClientSecret), []byte(s.cfg.ClientSecret)) != 1 {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Invalid client credentials.")
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Missing authorization code.")
	}
	grant, err := s.codes.Consume(ctx, req.Code)
	if err != nil {
		if errors.Is(err, repository.ErrAuthCodeNotFound) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "Invalid authorization code.")
		}
		return nil, appErrors.Internal(err, "failed to load authorization code")
	}
	if s.now().After(grant.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Authorization code expired.")
	}
	if grant.ClientID != req.ClientID || grant.RedirectURI != req.RedirectURI {
		return nil, appErrors.Clone(appErrors.ErrValidation, "redirect_uri mismatch.")
	}
	return s.tokens.IssueToken(grant.UserID, grant.Email, grant.RoleName)
}

func newAuthorizationCode() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
