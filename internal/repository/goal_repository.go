package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/database"
)

// ErrUnknownLearner reports a goal for a learner with no profile.
var ErrUnknownLearner = errors.New("learner profile not found")

const goalColumns = `id, learner_id, tutor_id, subject, goal_text, target_date, is_achieved, achieved_date, created_at, updated_at`

// GoalRepository persists learning goals.
type GoalRepository struct {
	db *sqlx.DB
}

// NewGoalRepository constructs a GoalRepository.
func NewGoalRepository(db *sqlx.DB) *GoalRepository {
	return &GoalRepository{db: db}
}

// List returns goals for a learner, optionally for one subject.
func (r *GoalRepository) List(ctx context.Context, learnerID, subject string) ([]models.LearningGoal, error) {
	query := `SELECT ` + goalColumns + ` FROM learning_goals WHERE learner_id = $1`
	args := []interface{}{learnerID}
	if subject != "" {
		query += ` AND subject = $2`
		args = append(args, subject)
	}
	query += ` ORDER BY is_achieved ASC, target_date ASC NULLS LAST, created_at DESC`

	var goals []models.LearningGoal
	if err := r.db.SelectContext(ctx, &goals, query, args...); err != nil {
		return nil, fmt.Errorf("list learning goals: %w", err)
	}
	return goals, nil
}

// FindByID fetches a goal.
func (r *GoalRepository) FindByID(ctx context.Context, id string) (*models.LearningGoal, error) {
	var goal models.LearningGoal
	if err := r.db.GetContext(ctx, &goal, `SELECT `+goalColumns+` FROM learning_goals WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &goal, nil
}

// Create inserts a goal. A foreign key violation maps to ErrUnknownLearner.
func (r *GoalRepository) Create(ctx context.Context, goal *models.LearningGoal) error {
	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	goal.CreatedAt = now
	goal.UpdatedAt = now

	const query = `INSERT INTO learning_goals (id, learner_id, tutor_id, subject, goal_text, target_date, is_achieved, achieved_date, created_at, updated_at)
		VALUES (:id, :learner_id, :tutor_id, :subject, :goal_text, :target_date, :is_achieved, :achieved_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, goal); err != nil {
		if database.HasCode(err, database.CodeForeignKeyMissing) {
			return ErrUnknownLearner
		}
		return fmt.Errorf("create learning goal: %w", err)
	}
	return nil
}

// SetAchieved flips the achieved flag and stamps or clears the achieved date.
func (r *GoalRepository) SetAchieved(ctx context.Context, id string, achieved bool, on *models.Date) (*models.LearningGoal, error) {
	const query = `UPDATE learning_goals SET is_achieved = $2, achieved_date = $3, updated_at = $4 WHERE id = $1 RETURNING ` + goalColumns
	var goal models.LearningGoal
	if err := r.db.GetContext(ctx, &goal, query, id, achieved, on, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &goal, nil
}

// Delete removes a goal.
func (r *GoalRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM learning_goals WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete learning goal: %w", err)
	}
	return nil
}
