package affiliations

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fedsport/backend/internal/access"
	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/pkg/apperr"
	"github.com/fedsport/backend/pkg/storage"
)

// DocumentStorage is the object store holding affiliation paperwork.
type DocumentStorage interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	PresignUpload(ctx context.Context, key, contentType string) (string, error)
	PresignDownload(ctx context.Context, key string) (string, error)
	List(ctx context.Context, prefix string) ([]storage.Object, error)
}

// Document is a stored file with a time-limited download link.
type Document struct {
	storage.Object
	DownloadURL string `json:"download_url"`
}

// UploadTicket lets a client PUT a file straight to storage.
type UploadTicket struct {
	Key         string `json:"key"`
	UploadURL   string `json:"upload_url"`
	ContentType string `json:"content_type"`
}

// Documents manages the paperwork reviewed at the document gate.
type Documents struct {
	store  Store
	files  DocumentStorage
	logger *zap.Logger
}

// NewDocuments creates the documents service.
func NewDocuments(store Store, files DocumentStorage, logger *zap.Logger) *Documents {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Documents{store: store, files: files, logger: logger}
}

// Upload stores a file for the athlete's own affiliation while documents are under review.
func (d *Documents) Upload(ctx context.Context, actor models.Actor, id uuid.UUID, filename string, size int64, body io.Reader) (*storage.Object, error) {
	contentType, err := d.checkUpload(ctx, actor, id, filename, size)
	if err != nil {
		return nil, err
	}
	key := storage.DocumentKey(id.String(), filename)
	if err := d.files.Upload(ctx, key, contentType, body, size); err != nil {
		d.logger.Error("document upload failed", zap.String("affiliation_id", id.String()), zap.Error(err))
		return nil, apperr.Wrap(err, apperr.KindUnavailable, "document storage unavailable")
	}
	d.logger.Info("affiliation document stored", zap.String("affiliation_id", id.String()), zap.String("key", key))
	return &storage.Object{Key: key, Name: strings.TrimPrefix(key, storage.DocumentPrefix(id.String())), Size: size}, nil
}

// UploadURL issues a presigned PUT for a file of the athlete's own affiliation.
func (d *Documents) UploadURL(ctx context.Context, actor models.Actor, id uuid.UUID, filename string) (*UploadTicket, error) {
	contentType, err := d.checkUpload(ctx, actor, id, filename, 0)
	if err != nil {
		return nil, err
	}
	key := storage.DocumentKey(id.String(), filename)
	url, err := d.files.PresignUpload(ctx, key, contentType)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindUnavailable, "document storage unavailable")
	}
	return &UploadTicket{Key: key, UploadURL: url, ContentType: contentType}, nil
}

// List returns an affiliation's documents for administrator review.
func (d *Documents) List(ctx context.Context, actor models.Actor, id uuid.UUID) ([]Document, error) {
	if err := access.Authorize(actor, access.ViewAffiliationDocuments); err != nil {
		return nil, err
	}
	if _, err := d.store.Get(ctx, id); err != nil {
		return nil, apperr.Wrap(err, apperr.KindOf(err), "affiliation not found")
	}
	objects, err := d.files.List(ctx, storage.DocumentPrefix(id.String()))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindUnavailable, "document storage unavailable")
	}
	docs := make([]Document, 0, len(objects))
	for _, o := range objects {
		url, err := d.files.PresignDownload(ctx, o.Key)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindUnavailable, "document storage unavailable")
		}
		docs = append(docs, Document{Object: o, DownloadURL: url})
	}
	return docs, nil
}

func (d *Documents) checkUpload(ctx context.Context, actor models.Actor, id uuid.UUID, filename string, size int64) (string, error) {
	if err := access.Authorize(actor, access.UploadAffiliationDocument); err != nil {
		return "", err
	}
	a, err := d.store.Get(ctx, id)
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindOf(err), "affiliation not found")
	}
	if err := access.AuthorizeOwner(actor, access.UploadAffiliationDocument, a.AthleteID); err != nil {
		return "", apperr.New(apperr.KindNotFound, "affiliation not found")
	}
	if a.DocumentGate != models.GatePending || a.Status == models.AffiliationRejected {
		return "", apperr.New(apperr.KindInvalidState, "documents can only be added while under review")
	}
	contentType, ok := storage.DocumentContentType(filename)
	if !ok {
		return "", apperr.New(apperr.KindValidation, "documents must be pdf, jpeg or png")
	}
	if size > storage.MaxDocumentSize {
		return "", apperr.New(apperr.KindValidation, "document exceeds 10MB")
	}
	return contentType, nil
}
