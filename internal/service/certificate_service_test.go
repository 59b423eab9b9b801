package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/storage"
)

type fakeCertificateRepo struct {
	seq   int
	certs map[string]*models.Certificate
}

func (f *fakeCertificateRepo) Create(_ context.Context, cert *models.Certificate) error {
	if f.certs == nil {
		f.certs = map[string]*models.Certificate{}
	}
	f.seq++
	cert.ID = fmt.Sprintf("cert-%d", f.seq)
	stored := *cert
	f.certs[cert.ID] = &stored
	return nil
}

func (f *fakeCertificateRepo) FindByID(_ context.Context, id string) (*models.Certificate, error) {
	c, ok := f.certs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *c
	return &out, nil
}

func (f *fakeCertificateRepo) List(_ context.Context, tutorID string, pendingOnly bool) ([]models.Certificate, error) {
	var out []models.Certificate
	for _, c := range f.certs {
		if tutorID != "" && c.TutorID != tutorID {
			continue
		}
		if pendingOnly && c.IsApproved {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeCertificateRepo) SetApproval(_ context.Context, id string, approved bool, adminID string) (*models.Certificate, error) {
	c, ok := f.certs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c.IsApproved = approved
	c.ApprovedBy = &adminID
	out := *c
	return &out, nil
}

func (f *fakeCertificateRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.certs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.certs, id)
	return nil
}

func newCertificateFixture(t *testing.T) (*CertificateService, *DownloadService, *recordingNotifications) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	files := NewDownloadService(store, storage.NewSignedURLSigner("secret", time.Minute), "/api/v1")
	tutors := &fakeTutorLookup{tutors: []models.Tutor{{ID: "tutor-1", UserID: tutorActor.UserID}, {ID: "tutor-2", UserID: otherTutor.UserID}}}
	notifications := &recordingNotifications{}
	effects := NewSideEffects(notifications, nil, nil, nil, zap.NewNop())
	policy := UploadPolicy{MaxBytes: 1024, AllowedMIMEs: []string{"application/pdf", "image/png"}}
	return NewCertificateService(&fakeCertificateRepo{}, tutors, files, effects, policy, zap.NewNop()), files, notifications
}

func pdfUpload(name, body string) Upload {
	return Upload{FileName: name, ContentType: "application/pdf", Size: int64(len(body)), Body: strings.NewReader(body)}
}

func TestCertificateServiceUploadAndApprove(t *testing.T) {
	svc, files, notifications := newCertificateFixture(t)
	ctx := context.Background()

	cert, err := svc.Upload(ctx, tutorActor, pdfUpload("../My Degree.pdf", "%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "tutor-1", cert.TutorID)
	assert.Equal(t, "My_Degree.pdf", cert.FileName)
	assert.True(t, strings.HasPrefix(cert.StorageKey, "certificates/"+tutorActor.UserID+"/"))

	keys, err := files.List(ctx, "certificates/"+tutorActor.UserID)
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	pending, err := svc.List(ctx, adminActor, "", true)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = svc.SetApproval(ctx, tutorActor, cert.ID, true)
	assertAppError(t, err, appErrors.ErrForbidden)
	approved, err := svc.SetApproval(ctx, adminActor, cert.ID, true)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)

	notes := notifications.all()
	require.Len(t, notes, 1)
	assert.Equal(t, tutorActor.UserID, notes[0].UserID)
	assert.Equal(t, models.NotificationCertificate, notes[0].Type)

	pending, err = svc.List(ctx, adminActor, "", true)
	require.NoError(t, err)
	assert.Empty(t, pending)

	link, err := svc.Link(ctx, tutorActor, cert.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.URL, "/api/v1/downloads/"))
	_, err = svc.Link(ctx, otherTutor, cert.ID)
	assertAppError(t, err, appErrors.ErrForbidden)

	require.NoError(t, svc.Delete(ctx, tutorActor, cert.ID))
	keys, err = files.List(ctx, "certificates/"+tutorActor.UserID)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestCertificateServiceUploadPolicy(t *testing.T) {
	svc, _, _ := newCertificateFixture(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, studentActor, pdfUpload("a.pdf", "x"))
	assertAppError(t, err, appErrors.ErrForbidden)

	_, err = svc.Upload(ctx, tutorActor, pdfUpload("big.pdf", strings.Repeat("x", 2048)))
	assertAppError(t, err, appErrors.ErrPayloadTooLarge)

	_, err = svc.Upload(ctx, tutorActor, Upload{FileName: "a.exe", ContentType: "application/x-msdownload", Size: 3, Body: strings.NewReader("abc")})
	assertAppError(t, err, appErrors.ErrUnsupportedMedia)

	_, err = svc.Upload(ctx, tutorActor, pdfUpload("empty.pdf", ""))
	assertAppError(t, err, appErrors.ErrValidation)

	_, err = svc.Upload(ctx, tutorActor, Upload{FileName: "scan.png", ContentType: "image/PNG; charset=binary", Size: 3, Body: strings.NewReader("png")})
	require.NoError(t, err)
}
