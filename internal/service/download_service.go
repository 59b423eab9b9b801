package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/storage"
)

// DownloadService issues and redeems signed links to stored objects.
type DownloadService struct {
	store     storage.ObjectStore
	signer    *storage.SignedURLSigner
	apiPrefix string
}

// NewDownloadService constructs DownloadService.
func NewDownloadService(store storage.ObjectStore, signer *storage.SignedURLSigner, apiPrefix string) *DownloadService {
	prefix := strings.TrimRight(apiPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &DownloadService{store: store, signer: signer, apiPrefix: prefix}
}

// Link signs key on behalf of subject.
func (s *DownloadService) Link(subject, key string) (*models.DownloadLink, error) {
	token, expiresAt, err := s.signer.Generate(subject, key)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign download link")
	}
	return &models.DownloadLink{URL: s.apiPrefix + "/downloads/" + token, ExpiresAt: expiresAt}, nil
}

// Open redeems token and returns the object stream and its key.
func (s *DownloadService) Open(ctx context.Context, token string) (io.ReadCloser, string, error) {
	_, key, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "download link is invalid or expired")
	}
	rc, err := s.store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "failed to open file")
	}
	return rc, key, nil
}

// Put stores r under key.
func (s *DownloadService) Put(ctx context.Context, key, contentType string, r io.Reader) error {
	if err := s.store.Put(ctx, key, contentType, r); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "failed to store file")
	}
	return nil
}

// Remove deletes key. Missing objects are ignored.
func (s *DownloadService) Remove(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "failed to delete file")
	}
	return nil
}

// List returns stored keys under prefix.
func (s *DownloadService) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "failed to list files")
	}
	return keys, nil
}
