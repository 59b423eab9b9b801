package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const profileColumns = `id, user_id, email, full_name, phone, avatar_url, email_verified, created_at, updated_at`

// ProfileRepository manages profiles, role assignments and parent/child links.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs a ProfileRepository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByUserID fetches a profile.
func (r *ProfileRepository) FindByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Ensure creates the profile on first sight of a user and refreshes email and name.
func (r *ProfileRepository) Ensure(ctx context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	const query = `INSERT INTO profiles (id, user_id, email, full_name, email_verified, created_at, updated_at)
		VALUES (:id, :user_id, :email, :full_name, :email_verified, :created_at, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET email = EXCLUDED.email,
			full_name = CASE WHEN EXCLUDED.full_name <> '' THEN EXCLUDED.full_name ELSE profiles.full_name END,
			email_verified = profiles.email_verified OR EXCLUDED.email_verified,
			updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	return nil
}

// UpdateContact updates the editable profile fields.
func (r *ProfileRepository) UpdateContact(ctx context.Context, userID, fullName string, phone, avatarURL *string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE profiles SET full_name = $2, phone = $3, avatar_url = $4, updated_at = $5 WHERE user_id = $1`,
		userID, fullName, phone, avatarURL, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return requireAffected(res)
}

// Role returns the stored role of a user, or "" when none is assigned.
func (r *ProfileRepository) Role(ctx context.Context, userID string) (string, error) {
	var role string
	if err := r.db.GetContext(ctx, &role, `SELECT role FROM user_roles WHERE user_id = $1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("load user role: %w", err)
	}
	return role, nil
}

// SetRole replaces the user's role.
func (r *ProfileRepository) SetRole(ctx context.Context, userID string, role models.Role) error {
	const query = `INSERT INTO user_roles (user_id, role, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role`
	if _, err := r.db.ExecContext(ctx, query, userID, role, time.Now().UTC()); err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	return nil
}

// ListUsers returns profiles joined with their role for admin screens.
func (r *ProfileRepository) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.UserSummary, int, error) {
	base := ` FROM profiles p LEFT JOIN user_roles ur ON ur.user_id = p.user_id WHERE 1=1`
	var args []interface{}
	if filter.Role != nil {
		args = append(args, *filter.Role)
		base += fmt.Sprintf(" AND COALESCE(ur.role, 'student') = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		base += fmt.Sprintf(" AND (LOWER(p.full_name) LIKE $%d OR LOWER(p.email) LIKE $%d)", len(args), len(args))
	}
	page, size := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT p.user_id, p.email, p.full_name, COALESCE(ur.role, 'student') AS role, p.created_at%s ORDER BY p.created_at DESC LIMIT %d OFFSET %d`, base, size, (page-1)*size)
	var users []models.UserSummary
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*)`+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

// CountUsers returns the number of profiles.
func (r *ProfileRepository) CountUsers(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM profiles`); err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return total, nil
}

// LinkChild connects a parent to a child account.
func (r *ProfileRepository) LinkChild(ctx context.Context, link *models.ParentLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	link.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO parent_child_accounts (id, parent_id, child_id, created_at) VALUES (:id, :parent_id, :child_id, :created_at)
		ON CONFLICT (parent_id, child_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return fmt.Errorf("link child: %w", err)
	}
	return nil
}

// UnlinkChild removes a parent/child link.
func (r *ProfileRepository) UnlinkChild(ctx context.Context, parentID, childID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM parent_child_accounts WHERE parent_id = $1 AND child_id = $2`, parentID, childID)
	if err != nil {
		return fmt.Errorf("unlink child: %w", err)
	}
	return requireAffected(res)
}

// Children lists the children linked to a parent.
func (r *ProfileRepository) Children(ctx context.Context, parentID string) ([]models.ParentLink, error) {
	const query = `SELECT l.id, l.parent_id, l.child_id, COALESCE(p.full_name, '') AS child_name, l.created_at
		FROM parent_child_accounts l
		LEFT JOIN profiles p ON p.user_id = l.child_id
		WHERE l.parent_id = $1 ORDER BY child_name`
	var links []models.ParentLink
	if err := r.db.SelectContext(ctx, &links, query, parentID); err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return links, nil
}

// IsParentOf reports whether parentID is linked to childID.
func (r *ProfileRepository) IsParentOf(ctx context.Context, parentID, childID string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM parent_child_accounts WHERE parent_id = $1 AND child_id = $2)`, parentID, childID); err != nil {
		return false, fmt.Errorf("check parent link: %w", err)
	}
	return exists, nil
}

// FindUserIDByEmail resolves a user id from an email address.
func (r *ProfileRepository) FindUserIDByEmail(ctx context.Context, email string) (string, error) {
	var userID string
	if err := r.db.GetContext(ctx, &userID, `SELECT user_id FROM profiles WHERE LOWER(email) = LOWER($1)`, email); err != nil {
		return "", err
	}
	return userID, nil
}
