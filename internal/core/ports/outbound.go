package ports

import (
	"context"
	"io"

	"github.com/pldubois/ragdoc/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveIndexingResult(ctx context.Context, id string, chunkCount, charCount int) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Segmenter splits raw text into bounded, sentence-aligned chunks.
type Segmenter interface {
	Segment(text, source string) ([]domain.Chunk, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores chunk vectors with positional metadata and answers
// nearest-neighbor queries by squared Euclidean distance.
type VectorIndex interface {
	Add(ctx context.Context, vectors [][]float32, records []domain.MetadataRecord) error
	Search(ctx context.Context, vector []float32, k int) ([]domain.Neighbor, error)
	Len() int
}

// AnswerGenerator creates the final user-facing answer from assembled context.
type AnswerGenerator interface {
	Generate(ctx context.Context, contextText, question string) (string, error)
}
