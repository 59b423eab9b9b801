package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type authProfileRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.Profile, error)
	Ensure(ctx context.Context, profile *models.Profile) error
	Role(ctx context.Context, userID string) (string, error)
}

// AuthConfig describes how provider tokens are verified.
type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// AuthService verifies access tokens issued by the identity provider and resolves
// the caller's role from user_roles on every request.
type AuthService struct {
	profiles authProfileRepository
	logger   *zap.Logger
	config   AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(profiles authProfileRepository, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{profiles: profiles, logger: logger, config: config}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.AccessClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	if s.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.config.Audience))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.AccessClaims)
	if !ok || !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// Authenticate validates the token, provisions the profile on first sight and
// resolves the stored role. Users without a role row are students.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*models.Identity, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	identity := &models.Identity{
		UserID:   claims.Subject,
		Email:    claims.Email,
		FullName: claims.UserMetadata.FullName,
	}

	profile, err := s.profiles.FindByUserID(ctx, identity.UserID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		fresh := &models.Profile{
			UserID:        identity.UserID,
			Email:         identity.Email,
			FullName:      identity.FullName,
			EmailVerified: claims.UserMetadata.EmailVerified,
		}
		if err := s.profiles.Ensure(ctx, fresh); err != nil {
			return nil, appErrors.Internal(err, "failed to provision profile")
		}
		s.logger.Info("profile provisioned", zap.String("user_id", identity.UserID))
	case err != nil:
		return nil, appErrors.Internal(err, "failed to load profile")
	default:
		if profile.FullName != "" {
			identity.FullName = profile.FullName
		}
	}

	raw, err := s.profiles.Role(ctx, identity.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to resolve role")
	}
	identity.Role = models.RoleStudent
	if raw != "" {
		role, err := models.ParseRole(raw)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, fmt.Sprintf("unrecognised role %q", raw))
		}
		identity.Role = role
	}
	return identity, nil
}
