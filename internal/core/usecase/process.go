package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/pldubois/ragdoc/internal/core/domain"
	"github.com/pldubois/ragdoc/internal/core/ports"
)

// ProcessDocumentUseCase runs the ingestion pipeline for one uploaded
// document: extract text, segment, embed, index.
type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.TextExtractor
	segmenter ports.Segmenter
	embedder  ports.Embedder
	index     ports.VectorIndex
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	segmenter ports.Segmenter,
	embedder ports.Embedder,
	index ports.VectorIndex,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		segmenter: segmenter,
		embedder:  embedder,
		index:     index,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	chunkCount, charCount, err := uc.pipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveIndexingResult(ctx, documentID, chunkCount, charCount); err != nil {
		return fmt.Errorf("save indexing result: %w", err)
	}
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusIndexed, ""); err != nil {
		return fmt.Errorf("set status=indexed: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) pipeline(ctx context.Context, documentID string) (chunkCount, charCount int, err error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch document by id: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return 0, 0, fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return 0, 0, domain.WrapError(domain.ErrInvalidArgument, "extract text", errors.New("empty extracted text"))
	}

	chunks, err := uc.segmenter.Segment(text, doc.Filename)
	if err != nil {
		return 0, 0, fmt.Errorf("segment document: %w", err)
	}
	if len(chunks) == 0 {
		return 0, 0, domain.WrapError(domain.ErrInvalidArgument, "segment document", errors.New("segmentation produced zero chunks"))
	}

	texts := make([]string, len(chunks))
	records := make([]domain.MetadataRecord, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
		records[i] = domain.MetadataRecord{Text: chunk.Text, Source: chunk.Source}
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, 0, domain.WrapError(domain.ErrUpstreamUnavailable, "embed chunks", err)
	}
	if len(vectors) != len(chunks) {
		return 0, 0, domain.WrapError(
			domain.ErrInvalidArgument,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}

	if err := uc.index.Add(ctx, vectors, records); err != nil {
		return 0, 0, fmt.Errorf("index chunks: %w", err)
	}
	return len(chunks), len(text), nil
}
