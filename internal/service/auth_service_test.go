package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type fakeAuthProfiles struct {
	profiles map[string]*models.Profile
	roles    map[string]string
	ensured  []string
}

func (f *fakeAuthProfiles) FindByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthProfiles) Ensure(ctx context.Context, profile *models.Profile) error {
	if f.profiles == nil {
		f.profiles = map[string]*models.Profile{}
	}
	f.profiles[profile.UserID] = profile
	f.ensured = append(f.ensured, profile.UserID)
	return nil
}

func (f *fakeAuthProfiles) Role(ctx context.Context, userID string) (string, error) {
	return f.roles[userID], nil
}

func signToken(t *testing.T, secret string, claims models.AccessClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func accessClaims(sub string, ttl time.Duration) models.AccessClaims {
	return models.AccessClaims{
		Email:        sub + "@example.com",
		UserMetadata: models.UserMetadata{FullName: "Ada Lovelace", EmailVerified: true},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
}

func TestAuthServiceAuthenticateProvisionsAndDefaultsToStudent(t *testing.T) {
	repo := &fakeAuthProfiles{}
	svc := NewAuthService(repo, zap.NewNop(), AuthConfig{Secret: "secret", Audience: "authenticated"})

	identity, err := svc.Authenticate(context.Background(), signToken(t, "secret", accessClaims("user-1", time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "user-1", identity.UserID)
	assert.Equal(t, models.RoleStudent, identity.Role)
	assert.Equal(t, "Ada Lovelace", identity.FullName)
	assert.Equal(t, []string{"user-1"}, repo.ensured)
	assert.True(t, repo.profiles["user-1"].EmailVerified)
}

func TestAuthServiceAuthenticateUsesStoredRole(t *testing.T) {
	repo := &fakeAuthProfiles{
		profiles: map[string]*models.Profile{"user-2": {UserID: "user-2", FullName: "Grace Hopper"}},
		roles:    map[string]string{"user-2": "tutor"},
	}
	svc := NewAuthService(repo, nil, AuthConfig{Secret: "secret"})

	identity, err := svc.Authenticate(context.Background(), signToken(t, "secret", accessClaims("user-2", time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, models.RoleTutor, identity.Role)
	assert.Equal(t, "Grace Hopper", identity.FullName)
	assert.Empty(t, repo.ensured)
}

func TestAuthServiceRejectsBadTokens(t *testing.T) {
	svc := NewAuthService(&fakeAuthProfiles{}, nil, AuthConfig{Secret: "secret", Audience: "authenticated"})

	wrongAudience := accessClaims("user-3", time.Hour)
	wrongAudience.Audience = jwt.ClaimStrings{"other"}
	noSubject := accessClaims("", time.Hour)

	cases := map[string]string{
		"garbage":        "not-a-token",
		"wrong secret":   signToken(t, "other", accessClaims("user-3", time.Hour)),
		"expired":        signToken(t, "secret", accessClaims("user-3", -time.Minute)),
		"wrong audience": signToken(t, "secret", wrongAudience),
		"no subject":     signToken(t, "secret", noSubject),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), token)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestAuthServiceRejectsUnknownRole(t *testing.T) {
	repo := &fakeAuthProfiles{
		profiles: map[string]*models.Profile{"user-4": {UserID: "user-4"}},
		roles:    map[string]string{"user-4": "superuser"},
	}
	svc := NewAuthService(repo, nil, AuthConfig{Secret: "secret"})

	_, err := svc.Authenticate(context.Background(), signToken(t, "secret", accessClaims("user-4", time.Hour)))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
