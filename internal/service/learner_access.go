package service

import (
	"context"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type parentChecker interface {
	IsParentOf(ctx context.Context, parentID, childID string) (bool, error)
}

// learnerAccess decides who may read a learner's progress and goals: the learner, a linked
// parent, tutors and admins.
type learnerAccess struct {
	parents parentChecker
}

func (a learnerAccess) check(ctx context.Context, actor models.Identity, learnerID string) error {
	if learnerID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "learner_id is required")
	}
	switch actor.Role {
	case models.RoleAdmin, models.RoleTutor:
		return nil
	case models.RoleStudent:
		if actor.UserID == learnerID {
			return nil
		}
		if a.parents == nil {
			return forbidden("not allowed to view this learner")
		}
		ok, err := a.parents.IsParentOf(ctx, actor.UserID, learnerID)
		if err != nil {
			return appErrors.Internal(err, "failed to check parent link")
		}
		if !ok {
			return forbidden("not allowed to view this learner")
		}
		return nil
	default:
		return forbidden("unknown role")
	}
}
