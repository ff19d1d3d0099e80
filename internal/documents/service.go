package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"patent-backend/internal/applications"
	"patent-backend/internal/shared/storage/object"
	"patent-backend/internal/shared/telemetry"
	"patent-backend/internal/workflow"
)

// ApplicationReader resolves an application the actor may see.
type ApplicationReader interface {
	Get(ctx context.Context, id string, actor workflow.Actor) (applications.Application, error)
}

var allowedMime = map[string]bool{
	mimePDF:      true,
	"image/png":  true,
	"image/jpeg": true,
}

// Service contains business logic for application documents.
type Service struct {
	Store    object.ObjectStore
	Repo     Repo
	Apps     ApplicationReader
	MaxBytes int64
	Now      func() time.Time
}

// NewService constructs a Service. A non-positive maxBytes falls back to 10MB.
func NewService(store object.ObjectStore, repo Repo, apps ApplicationReader, maxBytes int64) *Service {
	return &Service{Store: store, Repo: repo, Apps: apps, MaxBytes: maxBytes, Now: time.Now}
}

// Upload stores an attachment for an application the actor may see.
// PDFs are parsed to record their page count.
func (s *Service) Upload(ctx context.Context, applicationID string, kind Kind, fileName string, r io.Reader, actor workflow.Actor) (Document, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return Document{}, fmt.Errorf("%w: file name required", ErrInvalidInput)
	}
	if _, ok := ParseKind(string(kind)); !ok {
		return Document{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, kind)
	}
	app, err := s.Apps.Get(ctx, applicationID, actor)
	if err != nil {
		return Document{}, err
	}

	data, err := s.readLimited(r)
	if err != nil {
		return Document{}, err
	}

	mimeType := http.DetectContentType(data)
	if !allowedMime[mimeType] {
		return Document{}, fmt.Errorf("%w: unsupported file type %s", ErrInvalidInput, mimeType)
	}
	var pageCount *int
	if mimeType == mimePDF {
		pages, err := countPages(data)
		if err != nil {
			return Document{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		pageCount = &pages
	}

	storageKey, size, _, err := s.Store.Save(ctx, app.ID, fileName, bytes.NewReader(data))
	if err != nil {
		return Document{}, err
	}

	doc := Document{
		ID:            uuid.NewString(),
		ApplicationID: app.ID,
		Kind:          kind,
		FileName:      fileName,
		MimeType:      mimeType,
		SizeBytes:     size,
		PageCount:     pageCount,
		StorageKey:    storageKey,
		UploadedBy:    actor.ID,
		CreatedAt:     s.now(),
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		s.discard(storageKey, app.ID)
		return Document{}, err
	}
	telemetry.Info("document.uploaded", map[string]any{
		"application_id": app.ID,
		"document_id":    doc.ID,
		"kind":           string(kind),
		"size_bytes":     size,
	})
	return doc, nil
}

// discard removes an object whose metadata row could not be written. It
// runs detached from the request context, which may already be cancelled.
func (s *Service) discard(storageKey, applicationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Store.Delete(ctx, storageKey); err != nil {
		telemetry.Error("document.orphaned", map[string]any{
			"application_id": applicationID,
			"storage_key":    storageKey,
			"error":          err.Error(),
		})
		return
	}
	telemetry.Warn("document.discarded", map[string]any{
		"application_id": applicationID,
		"storage_key":    storageKey,
	})
}

// List returns the documents of an application the actor may see.
func (s *Service) List(ctx context.Context, applicationID string, actor workflow.Actor) ([]Document, error) {
	if _, err := s.Apps.Get(ctx, applicationID, actor); err != nil {
		return nil, err
	}
	return s.Repo.ListByApplication(ctx, applicationID)
}

// Download is either a presigned link or an open reader for a document.
type Download struct {
	Document Document
	URL      string
	Body     io.ReadCloser
}

// Download resolves a document for an actor allowed to see its
// application. Stores that presign return a URL, others an open reader
// the caller must close.
func (s *Service) Download(ctx context.Context, documentID string, actor workflow.Actor) (Download, error) {
	doc, err := s.Repo.GetByID(ctx, documentID)
	if err != nil {
		return Download{}, err
	}
	if _, err := s.Apps.Get(ctx, doc.ApplicationID, actor); err != nil {
		return Download{}, err
	}
	if p, ok := s.Store.(object.Presigner); ok {
		url, err := p.PresignGet(ctx, doc.StorageKey, doc.FileName, 0)
		if err != nil {
			return Download{}, err
		}
		return Download{Document: doc, URL: url}, nil
	}
	rc, err := s.Store.Open(ctx, doc.StorageKey)
	if err != nil {
		return Download{}, err
	}
	return Download{Document: doc, Body: rc}, nil
}

func (s *Service) readLimited(r io.Reader) ([]byte, error) {
	limit := s.MaxBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	return data, nil
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}
