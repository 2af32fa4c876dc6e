// Package extractor turns stored documents into plain text for segmentation.
package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pldubois/ragdoc/internal/core/domain"
	"github.com/pldubois/ragdoc/internal/core/ports"
)

// maxDocumentBytes caps how much of a stored document is read into memory.
const maxDocumentBytes = 64 << 20

// Dispatcher selects the extraction strategy by file extension, falling
// back to the declared MIME type when the extension is unknown.
type Dispatcher struct {
	storage ports.ObjectStorage
}

func NewDispatcher(storage ports.ObjectStorage) *Dispatcher {
	return &Dispatcher{storage: storage}
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	if doc == nil {
		return "", domain.WrapError(domain.ErrInvalidArgument, "extract text", fmt.Errorf("document is nil"))
	}

	reader, err := d.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open stored document %s: %w", doc.StoragePath, err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, maxDocumentBytes+1))
	if err != nil {
		return "", fmt.Errorf("read stored document %s: %w", doc.StoragePath, err)
	}
	if len(raw) > maxDocumentBytes {
		return "", domain.WrapError(domain.ErrInvalidArgument, "extract text",
			fmt.Errorf("document exceeds %d bytes", maxDocumentBytes))
	}

	switch resolveFormat(doc.Filename, doc.MimeType) {
	case formatPDF:
		return extractPDF(raw)
	case formatDOCX:
		return extractDOCX(raw)
	case formatXLSX:
		return extractXLSX(raw)
	case formatPlaintext:
		return extractPlaintext(raw), nil
	default:
		return "", domain.WrapError(domain.ErrInvalidArgument, "extract text",
			fmt.Errorf("unsupported document format: %s (%s)", doc.Filename, doc.MimeType))
	}
}

type format int

const (
	formatUnknown format = iota
	formatPlaintext
	formatPDF
	formatDOCX
	formatXLSX
)

func resolveFormat(filename, mimeType string) format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".markdown", ".log", ".csv":
		return formatPlaintext
	case ".pdf":
		return formatPDF
	case ".docx":
		return formatDOCX
	case ".xlsx":
		return formatXLSX
	}

	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	switch {
	case strings.HasPrefix(mimeType, "text/"):
		return formatPlaintext
	case mimeType == "application/json":
		return formatPlaintext
	case mimeType == "application/pdf":
		return formatPDF
	case mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return formatDOCX
	case mimeType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return formatXLSX
	}
	return formatUnknown
}
