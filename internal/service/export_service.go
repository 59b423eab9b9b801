package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/export"
)

type progressLister interface {
	List(ctx context.Context, actor models.Identity, filter models.ProgressFilter) ([]models.ProgressEntry, error)
}

// ExportResult describes a rendered report stored for download.
type ExportResult struct {
	Key         string               `json:"key"`
	Format      export.Format        `json:"format"`
	ContentType string               `json:"content_type"`
	Rows        int                  `json:"rows"`
	Link        *models.DownloadLink `json:"link"`
}

// ExportService renders progress reports and stores them behind a signed link.
type ExportService struct {
	progress  progressLister
	downloads *DownloadService
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(progress progressLister, downloads *DownloadService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{progress: progress, downloads: downloads, logger: logger, now: time.Now}
}

// ProgressReport renders the learner's progress in format and returns a download link.
func (s *ExportService) ProgressReport(ctx context.Context, actor models.Identity, filter models.ProgressFilter, format export.Format) (*ExportResult, error) {
	renderer, err := export.ForFormat(format)
	if err != nil {
		return nil, appErrors.Validation(err, "unsupported export format")
	}
	entries, err := s.progress.List(ctx, actor, filter)
	if err != nil {
		return nil, err
	}

	table := ProgressTable(filter, entries, s.now())
	payload, err := renderer.Render(table)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render report")
	}

	key := fmt.Sprintf("exports/%s/%s.%s", filter.LearnerID, uuid.NewString(), renderer.Extension())
	if err := s.downloads.Put(ctx, key, renderer.ContentType(), bytes.NewReader(payload)); err != nil {
		return nil, err
	}
	link, err := s.downloads.Link(actor.UserID, key)
	if err != nil {
		return nil, err
	}
	s.logger.Info("progress report exported", zap.String("learner_id", filter.LearnerID), zap.String("key", key), zap.Int("rows", len(entries)))
	return &ExportResult{Key: key, Format: export.Format(renderer.Extension()), ContentType: renderer.ContentType(), Rows: len(entries), Link: link}, nil
}

// ProgressTable lays progress entries out as an export table.
func ProgressTable(filter models.ProgressFilter, entries []models.ProgressEntry, generatedAt time.Time) export.Table {
	subtitle := "All subjects"
	if filter.Subject != "" {
		subtitle = "Subject: " + filter.Subject
	}
	table := export.Table{
		Title:    "Learner Progress Report",
		Subtitle: fmt.Sprintf("%s | generated %s", subtitle, generatedAt.UTC().Format("2006-01-02 15:04 MST")),
		Columns: []export.Column{
			{Key: "date", Label: "Session Date", Width: 1},
			{Key: "subject", Label: "Subject", Width: 1.2},
			{Key: "tutor", Label: "Tutor", Width: 1.2},
			{Key: "skill", Label: "Skill Level", Width: 1},
			{Key: "note", Label: "Note", Width: 3},
			{Key: "homework", Label: "Homework", Width: 2},
		},
		Rows: make([]map[string]string, 0, len(entries)),
	}
	for _, e := range entries {
		homework := ""
		if e.Homework != nil {
			homework = *e.Homework
		}
		table.Rows = append(table.Rows, map[string]string{
			"date":     e.SessionDate.String(),
			"subject":  e.Subject,
			"tutor":    e.TutorName,
			"skill":    string(e.SkillLevel),
			"note":     e.Note,
			"homework": homework,
		})
	}
	return table
}
