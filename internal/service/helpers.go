package service

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

// lookupError maps a repository read failure onto NOT_FOUND or INTERNAL_ERROR.
func lookupError(err error, notFound, failed string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Internal(err, failed)
}

func forbidden(message string) error {
	return appErrors.Clone(appErrors.ErrForbidden, message)
}

func requireRole(actor models.Identity, roles ...models.Role) error {
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return forbidden("role not permitted for this action")
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
