package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/export"
	"github.com/noah-isme/tutorhub-api/pkg/storage"
)

type progressStub struct {
	entries []models.ProgressEntry
	err     error
}

func (p progressStub) List(context.Context, models.Identity, models.ProgressFilter) ([]models.ProgressEntry, error) {
	return p.entries, p.err
}

func sampleProgress() []models.ProgressEntry {
	homework := "Exercises 4.1-4.3"
	date, _ := models.ParseDate("2030-01-07")
	return []models.ProgressEntry{
		{ID: "p-1", LearnerID: "learner-1", Subject: "Math", SessionDate: date, SkillLevel: models.SkillGood, Note: "Factorised quadratics", Homework: &homework, TutorName: "Ada"},
		{ID: "p-2", LearnerID: "learner-1", Subject: "Physics", SessionDate: date, SkillLevel: models.SkillSatisfactory, Note: "Kinematics recap", TutorName: "Ada"},
	}
}

func newExportServiceForTest(t *testing.T, entries []models.ProgressEntry) (*ExportService, *DownloadService) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	files := NewDownloadService(store, storage.NewSignedURLSigner("secret", time.Hour), "/api/v1")
	return NewExportService(progressStub{entries: entries}, files, zap.NewNop()), files
}

func TestExportServiceProgressCSV(t *testing.T) {
	svc, files := newExportServiceForTest(t, sampleProgress())
	actor := models.Identity{UserID: "learner-1", Role: models.RoleStudent}

	result, err := svc.ProgressReport(context.Background(), actor, models.ProgressFilter{LearnerID: "learner-1"}, export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rows)
	assert.True(t, strings.HasPrefix(result.Key, "exports/learner-1/"))
	assert.True(t, strings.HasPrefix(result.Link.URL, "/api/v1/downloads/"))

	token := strings.TrimPrefix(result.Link.URL, "/api/v1/downloads/")
	rc, key, err := files.Open(context.Background(), token)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, result.Key, key)

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Factorised quadratics")
	assert.Contains(t, string(body), "Exercises 4.1-4.3")
}

func TestExportServiceProgressPDF(t *testing.T) {
	svc, _ := newExportServiceForTest(t, sampleProgress())
	actor := models.Identity{UserID: "learner-1", Role: models.RoleStudent}

	result, err := svc.ProgressReport(context.Background(), actor, models.ProgressFilter{LearnerID: "learner-1", Subject: "Math"}, export.FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasSuffix(result.Key, ".pdf"))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportServiceForTest(t, nil)

	_, err := svc.ProgressReport(context.Background(), models.Identity{UserID: "u"}, models.ProgressFilter{LearnerID: "u"}, export.Format("xlsx"))
	require.Error(t, err)
}

func TestProgressTableSubtitle(t *testing.T) {
	at := time.Date(2030, 1, 7, 12, 0, 0, 0, time.UTC)
	table := ProgressTable(models.ProgressFilter{Subject: "Math"}, sampleProgress(), at)

	assert.Contains(t, table.Subtitle, "Subject: Math")
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "", table.Rows[1]["homework"])
	assert.Equal(t, string(models.SkillGood), table.Rows[0]["skill"])
}
