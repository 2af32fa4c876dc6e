package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pldubois/ragdoc/internal/core/domain"
	"github.com/pldubois/ragdoc/internal/core/ports"
)

const (
	defaultTopK = 5

	// Mean similarity below this flags the answer as likely ungrounded.
	// Assumes roughly unit-normalized embeddings; see similarityFromDistance.
	hallucinationThreshold = 0.5

	answerEmptyCorpus = "There are no documents indexed yet. Upload documents before asking questions."
	answerNoResults   = "No relevant information was found in the indexed documents."
)

// QueryUseCase retrieves grounding context for a question and aggregates it
// into an answer with a confidence score and a hallucination-risk flag.
type QueryUseCase struct {
	embedder  ports.Embedder
	index     ports.VectorIndex
	generator ports.AnswerGenerator
	topK      int
}

func NewQueryUseCase(
	embedder ports.Embedder,
	index ports.VectorIndex,
	generator ports.AnswerGenerator,
	topK int,
) *QueryUseCase {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &QueryUseCase{
		embedder:  embedder,
		index:     index,
		generator: generator,
		topK:      topK,
	}
}

func (uc *QueryUseCase) Answer(ctx context.Context, question string) (*domain.QueryResponse, error) {
	queryVector, err := uc.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpstreamUnavailable, "embed query", err)
	}

	if uc.index.Len() == 0 {
		return uc.lowConfidenceResponse(question, answerEmptyCorpus), nil
	}

	neighbors, err := uc.index.Search(ctx, queryVector, uc.topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	if len(neighbors) == 0 {
		return uc.lowConfidenceResponse(question, answerNoResults), nil
	}

	sources := make([]domain.SourceChunk, 0, len(neighbors))
	for rank, n := range neighbors {
		sources = append(sources, domain.SourceChunk{
			Document:   n.Record.Source,
			Chunk:      n.Record.Text,
			Score:      similarityFromDistance(n.Distance),
			ChunkIndex: rank,
		})
	}

	contextText := assembleContext(sources)
	answer, err := uc.generator.Generate(ctx, contextText, question)
	if err != nil {
		slog.Warn("answer_generation_failed", "error", err)
	}
	if err != nil || strings.TrimSpace(answer) == "" {
		// Retrieval succeeded; degrade to an extractive answer instead of
		// discarding it because generation is down or came back blank.
		answer = extractiveAnswer(question, sources)
	}

	confidence := meanScore(sources)
	return &domain.QueryResponse{
		Query:               question,
		Answer:              answer,
		Sources:             sources,
		Confidence:          confidence,
		NumChunksRetrieved:  len(sources),
		IsHallucinationRisk: confidence < hallucinationThreshold,
		Timestamp:           time.Now().UTC(),
	}, nil
}

func (uc *QueryUseCase) AnswerBatch(ctx context.Context, questions []string) (*domain.BulkQueryResponse, error) {
	out := &domain.BulkQueryResponse{
		TotalQueries: len(questions),
		Results:      make([]domain.QueryResponse, 0, len(questions)),
	}

	var confidenceSum float64
	for _, question := range questions {
		resp, err := uc.Answer(ctx, question)
		if err != nil {
			slog.Warn("bulk_query_failed", "question", question, "error", err)
			out.Failed++
			continue
		}
		out.Successful++
		confidenceSum += resp.Confidence
		out.Results = append(out.Results, *resp)
	}
	if out.Successful > 0 {
		out.AvgConfidence = confidenceSum / float64(out.Successful)
	}
	return out, nil
}

func (uc *QueryUseCase) lowConfidenceResponse(question, answer string) *domain.QueryResponse {
	return &domain.QueryResponse{
		Query:               question,
		Answer:              answer,
		Sources:             []domain.SourceChunk{},
		Confidence:          0.0,
		NumChunksRetrieved:  0,
		IsHallucinationRisk: true,
		Timestamp:           time.Now().UTC(),
	}
}

// similarityFromDistance converts squared Euclidean distance into a [0,1]
// score. Unit-normalized embeddings keep the distance within [0,4]; the
// clamp guards inputs outside that assumption.
func similarityFromDistance(distance float64) float64 {
	similarity := 1.0 - distance/2.0
	if similarity < 0 {
		return 0
	}
	return similarity
}

// assembleContext joins retrieved chunks in rank order, each under a 1-based
// "Source N" label, separated by blank lines.
func assembleContext(sources []domain.SourceChunk) string {
	var b strings.Builder
	for i, src := range sources {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Source %d (%s):\n%s", i+1, src.Document, src.Chunk)
	}
	return b.String()
}

func meanScore(sources []domain.SourceChunk) float64 {
	if len(sources) == 0 {
		return 0
	}
	var sum float64
	for _, src := range sources {
		sum += src.Score
	}
	return sum / float64(len(sources))
}
