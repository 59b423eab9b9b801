package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/realtime"
)

type certificateRepository interface {
	Create(ctx context.Context, cert *models.Certificate) error
	FindByID(ctx context.Context, id string) (*models.Certificate, error)
	List(ctx context.Context, tutorID string, pendingOnly bool) ([]models.Certificate, error)
	SetApproval(ctx context.Context, id string, approved bool, adminID string) (*models.Certificate, error)
	Delete(ctx context.Context, id string) error
}

// UploadPolicy bounds accepted uploads.
type UploadPolicy struct {
	MaxBytes     int64
	AllowedMIMEs []string
}

func (p UploadPolicy) check(contentType string, size int64) error {
	if size <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if p.MaxBytes > 0 && size > p.MaxBytes {
		return appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", p.MaxBytes))
	}
	if len(p.AllowedMIMEs) == 0 {
		return nil
	}
	mime := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, allowed := range p.AllowedMIMEs {
		if strings.EqualFold(allowed, mime) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrUnsupportedMedia, fmt.Sprintf("content type %q not accepted", mime))
}

// Upload is a file received from a client.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// CertificateService stores tutors' qualification documents and their approval state.
type CertificateService struct {
	repo    certificateRepository
	tutors  tutorLookup
	files   *DownloadService
	effects *SideEffects
	policy  UploadPolicy
	logger  *zap.Logger
}

// NewCertificateService constructs CertificateService.
func NewCertificateService(repo certificateRepository, tutors tutorLookup, files *DownloadService, effects *SideEffects, policy UploadPolicy, logger *zap.Logger) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{repo: repo, tutors: tutors, files: files, effects: effects, policy: policy, logger: logger}
}

// Upload stores a certificate under certificates/<user_id>/ and records it for approval.
func (s *CertificateService) Upload(ctx context.Context, actor models.Identity, upload Upload) (*models.Certificate, error) {
	if actor.Role != models.RoleTutor {
		return nil, forbidden("only tutors upload certificates")
	}
	if err := s.policy.check(upload.ContentType, upload.Size); err != nil {
		return nil, err
	}
	tutor, err := s.tutors.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, lookupError(err, "tutor profile not found", "failed to load tutor profile")
	}

	name := safeFileName(upload.FileName)
	key := fmt.Sprintf("certificates/%s/%s-%s", actor.UserID, uuid.NewString(), name)
	if err := s.files.Put(ctx, key, upload.ContentType, upload.Body); err != nil {
		return nil, err
	}
	cert := &models.Certificate{
		TutorID:     tutor.ID,
		FileName:    name,
		StorageKey:  key,
		ContentType: upload.ContentType,
		SizeBytes:   upload.Size,
	}
	if err := s.repo.Create(ctx, cert); err != nil {
		if rmErr := s.files.Remove(ctx, key); rmErr != nil {
			s.logger.Warn("orphaned certificate object", zap.String("key", key), zap.Error(rmErr))
		}
		return nil, appErrors.Internal(err, "failed to record certificate")
	}
	s.logger.Info("certificate uploaded", zap.String("tutor_id", tutor.ID), zap.String("key", key), zap.Int64("size", upload.Size))
	s.effects.Publish(ctx, realtime.TableCertificates, realtime.OpInsert, cert.ID, actor.UserID)
	return cert, nil
}

// List returns certificates. Tutors see their own; admins may filter by tutor and pending state.
func (s *CertificateService) List(ctx context.Context, actor models.Identity, tutorID string, pendingOnly bool) ([]models.Certificate, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTutor:
		tutor, err := s.tutors.FindByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, lookupError(err, "tutor profile not found", "failed to load tutor profile")
		}
		tutorID = tutor.ID
	default:
		return nil, forbidden("not allowed to list certificates")
	}
	certs, err := s.repo.List(ctx, tutorID, pendingOnly)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list certificates")
	}
	return certs, nil
}

// SetApproval records an admin decision and notifies the tutor.
func (s *CertificateService) SetApproval(ctx context.Context, actor models.Identity, id string, approved bool) (*models.Certificate, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only admins approve certificates")
	}
	cert, err := s.repo.SetApproval(ctx, id, approved, actor.UserID)
	if err != nil {
		return nil, lookupError(err, "certificate not found", "failed to update certificate")
	}
	tutor, err := s.tutors.FindByID(ctx, cert.TutorID)
	if err != nil {
		s.logger.Warn("certificate tutor lookup failed", zap.String("certificate_id", id), zap.Error(err))
		return cert, nil
	}
	status := "rejected"
	if approved {
		status = "approved"
	}
	s.effects.Notify(ctx, models.Notification{
		UserID:    tutor.UserID,
		Title:     "Certificate Reviewed",
		Message:   fmt.Sprintf("Your certificate %s was %s.", cert.FileName, status),
		Type:      models.NotificationCertificate,
		RelatedID: &cert.ID,
	})
	s.effects.Publish(ctx, realtime.TableCertificates, realtime.OpUpdate, cert.ID, tutor.UserID)
	return cert, nil
}

// Link issues a signed download link for the owner or an admin.
func (s *CertificateService) Link(ctx context.Context, actor models.Identity, id string) (*models.DownloadLink, error) {
	cert, err := s.authorized(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.files.Link(actor.UserID, cert.StorageKey)
}

// Delete removes a certificate and its stored file.
func (s *CertificateService) Delete(ctx context.Context, actor models.Identity, id string) error {
	cert, err := s.authorized(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupError(err, "certificate not found", "failed to delete certificate")
	}
	if err := s.files.Remove(ctx, cert.StorageKey); err != nil {
		s.logger.Warn("delete certificate object failed", zap.String("key", cert.StorageKey), zap.Error(err))
	}
	return nil
}

func (s *CertificateService) authorized(ctx context.Context, actor models.Identity, id string) (*models.Certificate, error) {
	cert, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "certificate not found", "failed to load certificate")
	}
	if actor.IsAdmin() {
		return cert, nil
	}
	tutor, err := s.tutors.FindByUserID(ctx, actor.UserID)
	if err != nil || tutor.ID != cert.TutorID {
		return nil, forbidden("certificate belongs to another tutor")
	}
	return cert, nil
}

func safeFileName(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "file"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
