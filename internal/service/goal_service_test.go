package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type fakeGoalRepo struct {
	goals    map[string]*models.LearningGoal
	learners map[string]bool
}

func (f *fakeGoalRepo) List(_ context.Context, learnerID, subject string) ([]models.LearningGoal, error) {
	var out []models.LearningGoal
	for _, g := range f.goals {
		if g.LearnerID == learnerID && (subject == "" || g.Subject == subject) {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (f *fakeGoalRepo) FindByID(_ context.Context, id string) (*models.LearningGoal, error) {
	g, ok := f.goals[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *g
	return &out, nil
}

func (f *fakeGoalRepo) Create(_ context.Context, goal *models.LearningGoal) error {
	if f.learners != nil && !f.learners[goal.LearnerID] {
		return repository.ErrUnknownLearner
	}
	goal.ID = fmt.Sprintf("goal-%d", len(f.goals)+1)
	stored := *goal
	f.goals[goal.ID] = &stored
	return nil
}

func (f *fakeGoalRepo) SetAchieved(_ context.Context, id string, achieved bool, on *models.Date) (*models.LearningGoal, error) {
	g, ok := f.goals[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	g.IsAchieved = achieved
	g.AchievedDate = on
	out := *g
	return &out, nil
}

func (f *fakeGoalRepo) Delete(_ context.Context, id string) error {
	delete(f.goals, id)
	return nil
}

func TestGoalServiceLifecycle(t *testing.T) {
	repo := &fakeGoalRepo{goals: map[string]*models.LearningGoal{}}
	tutors := &fakeTutorLookup{tutors: []models.Tutor{{ID: "tutor-1", UserID: tutorActor.UserID}, {ID: "tutor-2", UserID: otherTutor.UserID}}}
	svc := NewGoalService(repo, tutors, fakeParents{"parent-1": {studentActor.UserID}}, nil, zap.NewNop(), time.UTC)
	svc.now = func() time.Time { return time.Date(2030, 6, 3, 10, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	_, err := svc.Create(ctx, studentActor, CreateGoalRequest{LearnerID: studentActor.UserID, Subject: "Maths", GoalText: "Master algebra"})
	assertAppError(t, err, appErrors.ErrForbidden)

	goal, err := svc.Create(ctx, tutorActor, CreateGoalRequest{LearnerID: studentActor.UserID, Subject: " Maths ", GoalText: "Master algebra"})
	require.NoError(t, err)
	assert.Equal(t, "tutor-1", goal.TutorID)
	assert.Equal(t, "Maths", goal.Subject)

	achieved, err := svc.SetAchieved(ctx, tutorActor, goal.ID, true)
	require.NoError(t, err)
	assert.True(t, achieved.IsAchieved)
	require.NotNil(t, achieved.AchievedDate)
	assert.Equal(t, "2030-06-03", achieved.AchievedDate.String())

	cleared, err := svc.SetAchieved(ctx, tutorActor, goal.ID, false)
	require.NoError(t, err)
	assert.False(t, cleared.IsAchieved)
	assert.Nil(t, cleared.AchievedDate)

	_, err = svc.SetAchieved(ctx, otherTutor, goal.ID, true)
	assertAppError(t, err, appErrors.ErrForbidden)

	goals, err := svc.List(ctx, models.Identity{UserID: "parent-1", Role: models.RoleStudent}, studentActor.UserID, "Maths")
	require.NoError(t, err)
	assert.Len(t, goals, 1)

	_, err = svc.List(ctx, otherStudent, studentActor.UserID, "")
	assertAppError(t, err, appErrors.ErrForbidden)

	require.NoError(t, svc.Delete(ctx, tutorActor, goal.ID))
	err = svc.Delete(ctx, tutorActor, goal.ID)
	assertAppError(t, err, appErrors.ErrNotFound)
}

func TestGoalServiceUnknownLearner(t *testing.T) {
	repo := &fakeGoalRepo{goals: map[string]*models.LearningGoal{}, learners: map[string]bool{studentActor.UserID: true}}
	tutors := &fakeTutorLookup{tutors: []models.Tutor{{ID: "tutor-1", UserID: tutorActor.UserID}}}
	svc := NewGoalService(repo, tutors, fakeParents{}, nil, zap.NewNop(), time.UTC)

	_, err := svc.Create(context.Background(), tutorActor, CreateGoalRequest{LearnerID: "ghost", Subject: "Maths", GoalText: "Fractions"})
	assertAppError(t, err, appErrors.ErrNotFound)
	assert.Empty(t, repo.goals)
}
