package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/export"
	"github.com/noah-isme/tutorhub-api/pkg/storage"
)

type fakeProgressRepo struct {
	mu      sync.Mutex
	entries []models.ProgressEntry
}

func (f *fakeProgressRepo) Create(_ context.Context, entry *models.ProgressEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.BookingID == entry.BookingID {
			return repository.ErrDuplicateProgress
		}
	}
	entry.ID = fmt.Sprintf("progress-%d", len(f.entries)+1)
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeProgressRepo) List(_ context.Context, filter models.ProgressFilter) ([]models.ProgressEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ProgressEntry
	for _, e := range f.entries {
		if e.LearnerID == filter.LearnerID && (filter.Subject == "" || e.Subject == filter.Subject) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeProgressRepo) TutorSessions(_ context.Context, tutorID string) ([]models.TutorSession, error) {
	return []models.TutorSession{{BookingID: "b-1", HasProgress: len(f.entries) > 0}}, nil
}

type fakeParents map[string][]string

func (f fakeParents) IsParentOf(_ context.Context, parentID, childID string) (bool, error) {
	for _, c := range f[parentID] {
		if c == childID {
			return true, nil
		}
	}
	return false, nil
}

type progressFixture struct {
	svc           *ProgressService
	repo          *fakeProgressRepo
	bookings      *fakeBookingRepo
	notifications *recordingNotifications
}

func newProgressFixture(t *testing.T) *progressFixture {
	t.Helper()
	bookings := newFakeBookingRepo()
	bookings.tutorUser["tutor-1"] = tutorActor.UserID
	subject := "Maths"
	bookings.bookings["b-done"] = &models.Booking{ID: "b-done", TutorID: "tutor-1", StudentID: studentActor.UserID, SessionDate: mustParseDate(t, "2030-06-03"), StartTime: ct(9, 0), EndTime: ct(10, 0), Status: models.BookingCompleted, Subject: &subject}
	bookings.bookings["b-open"] = &models.Booking{ID: "b-open", TutorID: "tutor-1", StudentID: studentActor.UserID, SessionDate: mustParseDate(t, "2030-06-04"), StartTime: ct(9, 0), EndTime: ct(10, 0), Status: models.BookingConfirmed}

	tutors := &fakeTutorLookup{tutors: []models.Tutor{{ID: "tutor-1", UserID: tutorActor.UserID}, {ID: "tutor-2", UserID: otherTutor.UserID}}}
	repo := &fakeProgressRepo{}
	notifications := &recordingNotifications{}
	effects := NewSideEffects(notifications, nil, nil, nil, zap.NewNop())
	parents := fakeParents{"parent-1": {studentActor.UserID}}
	svc := NewProgressService(repo, bookings, tutors, parents, effects, nil, zap.NewNop())
	return &progressFixture{svc: svc, repo: repo, bookings: bookings, notifications: notifications}
}

func TestProgressServiceAddOncePerBooking(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()
	req := AddProgressRequest{BookingID: "b-done", SkillLevel: "Good", Note: "Solid grasp of fractions"}

	entry, err := f.svc.Add(ctx, tutorActor, req)
	require.NoError(t, err)
	assert.Equal(t, models.SkillGood, entry.SkillLevel)
	assert.Equal(t, "Maths", entry.Subject)
	assert.Equal(t, studentActor.UserID, entry.LearnerID)

	notes := f.notifications.all()
	require.Len(t, notes, 1)
	assert.Equal(t, studentActor.UserID, notes[0].UserID)
	assert.Equal(t, models.NotificationProgressUpdate, notes[0].Type)
	assert.Equal(t, "Progress Update", notes[0].Title)
	assert.Equal(t, "Your tutor has updated your progress for Maths.", notes[0].Message)

	_, err = f.svc.Add(ctx, tutorActor, req)
	assertAppError(t, err, appErrors.ErrConflict)
	assert.Len(t, f.repo.entries, 1)
	assert.Len(t, f.notifications.all(), 1, "no second notification")
}

func TestProgressServiceAddPreconditions(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor models.Identity
		req   AddProgressRequest
		want  *appErrors.Error
	}{
		{"student cannot record", studentActor, AddProgressRequest{BookingID: "b-done", SkillLevel: "Good", Note: "x"}, appErrors.ErrForbidden},
		{"other tutor", otherTutor, AddProgressRequest{BookingID: "b-done", SkillLevel: "Good", Note: "x"}, appErrors.ErrForbidden},
		{"not completed", tutorActor, AddProgressRequest{BookingID: "b-open", SkillLevel: "Good", Note: "x"}, appErrors.ErrPreconditionFailed},
		{"unknown level", tutorActor, AddProgressRequest{BookingID: "b-done", SkillLevel: "Brilliant", Note: "x"}, appErrors.ErrValidation},
		{"missing note", tutorActor, AddProgressRequest{BookingID: "b-done", SkillLevel: "Good"}, appErrors.ErrValidation},
		{"missing booking", tutorActor, AddProgressRequest{BookingID: "b-none", SkillLevel: "Good", Note: "x"}, appErrors.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Add(ctx, tc.actor, tc.req)
			assertAppError(t, err, tc.want)
		})
	}
}

func TestProgressServiceReadAccess(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()
	_, err := f.svc.Add(ctx, tutorActor, AddProgressRequest{BookingID: "b-done", SkillLevel: "Excellent", Note: "great"})
	require.NoError(t, err)
	filter := models.ProgressFilter{LearnerID: studentActor.UserID}

	for _, actor := range []models.Identity{studentActor, adminActor, tutorActor, {UserID: "parent-1", Role: models.RoleStudent}} {
		entries, err := f.svc.List(ctx, actor, filter)
		require.NoError(t, err, actor.UserID)
		assert.Len(t, entries, 1, actor.UserID)
	}

	entries, err := f.svc.List(ctx, otherTutor, filter)
	require.NoError(t, err)
	assert.Empty(t, entries, "tutors only see their own entries")

	_, err = f.svc.List(ctx, otherStudent, filter)
	assertAppError(t, err, appErrors.ErrForbidden)
}

func TestBuildChart(t *testing.T) {
	d := func(raw string) models.Date { return mustParseDate(t, raw) }
	entries := []models.ProgressEntry{
		{Subject: "Physics", SessionDate: d("2030-06-10"), SkillLevel: models.SkillExcellent},
		{Subject: "Maths", SessionDate: d("2030-06-05"), SkillLevel: models.SkillGood},
		{Subject: "Maths", SessionDate: d("2030-06-01"), SkillLevel: models.SkillNeedsSupport},
		{Subject: "Physics", SessionDate: d("2030-06-02"), SkillLevel: models.SkillSatisfactory},
	}

	series := BuildChart(entries)
	require.Len(t, series, 2)
	assert.Equal(t, "Maths", series[0].Subject)
	assert.Equal(t, []int{1, 3}, []int{series[0].Points[0].Ordinal, series[0].Points[1].Ordinal})
	assert.Equal(t, 3, series[0].Latest)
	assert.InDelta(t, 2.0, series[0].Average, 0.001)
	assert.Equal(t, "Physics", series[1].Subject)
	assert.Equal(t, 4, series[1].Latest)
	assert.Empty(t, BuildChart(nil))
}

func TestExportServiceProgressReport(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()
	homework := "Worksheet 4"
	_, err := f.svc.Add(ctx, tutorActor, AddProgressRequest{BookingID: "b-done", SkillLevel: "Good", Note: "steady", Homework: &homework})
	require.NoError(t, err)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	downloads := NewDownloadService(store, storage.NewSignedURLSigner("secret", time.Minute), "/api/v1")
	exporter := NewExportService(f.svc, downloads, zap.NewNop())

	result, err := exporter.ProgressReport(ctx, studentActor, models.ProgressFilter{LearnerID: studentActor.UserID}, export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rows)
	assert.True(t, strings.HasPrefix(result.Link.URL, "/api/v1/downloads/"))

	token := strings.TrimPrefix(result.Link.URL, "/api/v1/downloads/")
	rc, key, err := downloads.Open(ctx, token)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, result.Key, key)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Worksheet 4")
	assert.Contains(t, string(body), "Session Date")

	_, err = exporter.ProgressReport(ctx, studentActor, models.ProgressFilter{LearnerID: studentActor.UserID}, export.Format("xlsx"))
	assertAppError(t, err, appErrors.ErrValidation)

	_, _, err = downloads.Open(ctx, token+"x")
	assertAppError(t, err, appErrors.ErrForbidden)
}
