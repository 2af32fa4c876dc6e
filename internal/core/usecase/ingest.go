package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pldubois/ragdoc/internal/core/domain"
	"github.com/pldubois/ragdoc/internal/core/ports"
)

// IngestDocumentUseCase accepts an uploaded file, persists it, and hands it
// to the indexing worker through the queue.
type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	doc := newUploadedDocument(filename, mimeType)

	if err := uc.storage.Save(ctx, doc.StoragePath, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}
	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	slog.Info("document_uploaded",
		"document_id", doc.ID,
		"filename", doc.Filename,
		"mime_type", doc.MimeType,
	)
	return doc, nil
}

// newUploadedDocument builds the initial record. The storage key couples the
// generated id with a sanitized filename so stored objects stay unique and
// traceable.
func newUploadedDocument(filename, mimeType string) *domain.Document {
	id := uuid.NewString()
	now := time.Now().UTC()
	return &domain.Document{
		ID:          id,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: id + "_" + sanitizeFilename(filename),
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// sanitizeFilename reduces a client-supplied name to its base and a safe
// character set. Names with nothing usable left become "document.bin".
func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}

	var b strings.Builder
	b.Grow(len(base))
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
