package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

// ContextUserKey is the gin context key storing the authenticated *models.Identity.
const ContextUserKey = "currentUser"

// streamTokenParam carries the token for EventSource clients, which cannot set headers.
const streamTokenParam = "access_token"

// Authenticator resolves an access token into the caller's identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Identity, error)
}

// JWT protects routes by requiring a valid access token. The caller's role is
// resolved from storage on every request.
func JWT(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		identity, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, identity)
		c.Next()
	}
}

// CurrentIdentity returns the identity stored by JWT.
func CurrentIdentity(c *gin.Context) (*models.Identity, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	identity, ok := value.(*models.Identity)
	return identity, ok && identity != nil
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if token := c.Query(streamTokenParam); token != "" && strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
			return token, nil
		}
		return "", appErrors.ErrUnauthorized
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
