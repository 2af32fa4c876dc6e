package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pldubois/ragdoc/internal/core/domain"
)

type queryEmbedderFake struct {
	query   string
	err     error
	perCall map[string]error
}

func (f *queryEmbedderFake) Embed(context.Context, []string) ([][]float32, error) { return nil, nil }
func (f *queryEmbedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.query = text
	if f.perCall != nil {
		if err, ok := f.perCall[text]; ok {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

type queryIndexFake struct {
	length    int
	k         int
	neighbors []domain.Neighbor
	err       error
	searched  bool
}

func (f *queryIndexFake) Add(context.Context, [][]float32, []domain.MetadataRecord) error {
	return nil
}
func (f *queryIndexFake) Len() int { return f.length }
func (f *queryIndexFake) Search(_ context.Context, _ []float32, k int) ([]domain.Neighbor, error) {
	f.searched = true
	f.k = k
	if f.err != nil {
		return nil, f.err
	}
	return f.neighbors, nil
}

type queryGeneratorFake struct {
	contextText string
	question    string
	err         error
}

func (f *queryGeneratorFake) Generate(_ context.Context, contextText, question string) (string, error) {
	f.contextText = contextText
	f.question = question
	if f.err != nil {
		return "", f.err
	}
	return "generated answer", nil
}

func twoNeighbors() []domain.Neighbor {
	return []domain.Neighbor{
		{Distance: 0.2, Ordinal: 0, Record: domain.MetadataRecord{Text: "first chunk", Source: "a.txt"}},
		{Distance: 0.6, Ordinal: 1, Record: domain.MetadataRecord{Text: "second chunk", Source: "b.txt"}},
	}
}

func TestQueryAnswerAggregatesSources(t *testing.T) {
	embedder := &queryEmbedderFake{}
	index := &queryIndexFake{length: 2, neighbors: twoNeighbors()}
	generator := &queryGeneratorFake{}
	uc := NewQueryUseCase(embedder, index, generator, 5)

	resp, err := uc.Answer(context.Background(), "what is in the first chunk?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if resp.Answer != "generated answer" {
		t.Fatalf("answer = %q", resp.Answer)
	}
	if resp.NumChunksRetrieved != 2 || len(resp.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d/%d", resp.NumChunksRetrieved, len(resp.Sources))
	}
	if resp.Sources[0].Score != 0.9 || resp.Sources[1].Score != 0.7 {
		t.Fatalf("scores = %f, %f", resp.Sources[0].Score, resp.Sources[1].Score)
	}
	if got := resp.Confidence; got < 0.799 || got > 0.801 {
		t.Fatalf("confidence = %f, want 0.8", got)
	}
	if resp.IsHallucinationRisk {
		t.Fatalf("confidence 0.8 must not be flagged as hallucination risk")
	}
	if resp.Sources[0].ChunkIndex != 0 || resp.Sources[1].ChunkIndex != 1 {
		t.Fatalf("chunk indexes not rank ordered: %+v", resp.Sources)
	}

	if !strings.Contains(generator.contextText, "Source 1 (a.txt):\nfirst chunk") {
		t.Fatalf("context missing labeled first source:\n%s", generator.contextText)
	}
	if !strings.Contains(generator.contextText, "Source 2 (b.txt):\nsecond chunk") {
		t.Fatalf("context missing labeled second source:\n%s", generator.contextText)
	}
	if generator.question != "what is in the first chunk?" {
		t.Fatalf("generator got question %q", generator.question)
	}
}

func TestQueryAnswerDefaultTopK(t *testing.T) {
	index := &queryIndexFake{length: 1, neighbors: twoNeighbors()[:1]}
	uc := NewQueryUseCase(&queryEmbedderFake{}, index, &queryGeneratorFake{}, 0)

	if _, err := uc.Answer(context.Background(), "q"); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if index.k != 5 {
		t.Fatalf("expected default k=5, got %d", index.k)
	}
}

func TestQueryAnswerEmbedFailure(t *testing.T) {
	uc := NewQueryUseCase(
		&queryEmbedderFake{err: errors.New("embed down")},
		&queryIndexFake{length: 1},
		&queryGeneratorFake{},
		5,
	)

	_, err := uc.Answer(context.Background(), "q")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestQueryAnswerEmptyCorpus(t *testing.T) {
	index := &queryIndexFake{length: 0}
	uc := NewQueryUseCase(&queryEmbedderFake{}, index, &queryGeneratorFake{}, 5)

	resp, err := uc.Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if index.searched {
		t.Fatalf("empty corpus must short-circuit before searching")
	}
	if resp.Answer != answerEmptyCorpus {
		t.Fatalf("answer = %q", resp.Answer)
	}
	if resp.Confidence != 0 || !resp.IsHallucinationRisk || resp.NumChunksRetrieved != 0 {
		t.Fatalf("empty corpus response not low-confidence: %+v", resp)
	}
	if resp.Sources == nil || len(resp.Sources) != 0 {
		t.Fatalf("sources must be empty, not nil")
	}
}

func TestQueryAnswerNoResults(t *testing.T) {
	index := &queryIndexFake{length: 3, neighbors: nil}
	uc := NewQueryUseCase(&queryEmbedderFake{}, index, &queryGeneratorFake{}, 5)

	resp, err := uc.Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if resp.Answer != answerNoResults {
		t.Fatalf("answer = %q", resp.Answer)
	}
	if !resp.IsHallucinationRisk {
		t.Fatalf("no-results response must be flagged as risk")
	}
}

func TestQueryAnswerGeneratorFailureFallsBackToExtractive(t *testing.T) {
	index := &queryIndexFake{length: 2, neighbors: []domain.Neighbor{
		{Distance: 0.2, Record: domain.MetadataRecord{Text: "The warehouse holds spare parts. Shipping runs daily.", Source: "ops.txt"}},
	}}
	uc := NewQueryUseCase(
		&queryEmbedderFake{},
		index,
		&queryGeneratorFake{err: errors.New("generator down")},
		5,
	)

	resp, err := uc.Answer(context.Background(), "what does the warehouse hold?")
	if err != nil {
		t.Fatalf("generator failure must not fail the query: %v", err)
	}
	if resp.Answer == "" {
		t.Fatalf("expected extractive fallback answer")
	}
	if !strings.Contains(resp.Answer, "warehouse") {
		t.Fatalf("fallback answer should come from retrieved context, got %q", resp.Answer)
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("sources lost in fallback: %d", len(resp.Sources))
	}
}

type blankGeneratorFake struct{}

func (blankGeneratorFake) Generate(context.Context, string, string) (string, error) {
	return "   ", nil
}

func TestQueryAnswerBlankGenerationFallsBackToExtractive(t *testing.T) {
	index := &queryIndexFake{length: 1, neighbors: []domain.Neighbor{
		{Distance: 0.2, Record: domain.MetadataRecord{Text: "The warehouse holds spare parts.", Source: "ops.txt"}},
	}}
	uc := NewQueryUseCase(&queryEmbedderFake{}, index, blankGeneratorFake{}, 5)

	resp, err := uc.Answer(context.Background(), "what does the warehouse hold?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if strings.TrimSpace(resp.Answer) == "" {
		t.Fatalf("blank generation must fall back to a non-empty answer")
	}
	if !strings.Contains(resp.Answer, "warehouse") {
		t.Fatalf("fallback answer should come from retrieved context, got %q", resp.Answer)
	}
}

func TestQueryAnswerFlagsLowConfidence(t *testing.T) {
	index := &queryIndexFake{length: 2, neighbors: []domain.Neighbor{
		{Distance: 1.8, Record: domain.MetadataRecord{Text: "far", Source: "x.txt"}},
		{Distance: 1.9, Record: domain.MetadataRecord{Text: "farther", Source: "y.txt"}},
	}}
	uc := NewQueryUseCase(&queryEmbedderFake{}, index, &queryGeneratorFake{}, 5)

	resp, err := uc.Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !resp.IsHallucinationRisk {
		t.Fatalf("confidence %f must be flagged as hallucination risk", resp.Confidence)
	}
}

func TestSimilarityFromDistanceClamp(t *testing.T) {
	if got := similarityFromDistance(0); got != 1 {
		t.Fatalf("distance 0 similarity = %f, want 1", got)
	}
	if got := similarityFromDistance(2); got != 0 {
		t.Fatalf("distance 2 similarity = %f, want 0", got)
	}
	if got := similarityFromDistance(10); got != 0 {
		t.Fatalf("similarity must clamp at 0, got %f", got)
	}
}

func TestAnswerBatchCountsOutcomes(t *testing.T) {
	embedder := &queryEmbedderFake{perCall: map[string]error{
		"bad question": errors.New("embed down"),
	}}
	index := &queryIndexFake{length: 1, neighbors: []domain.Neighbor{
		{Distance: 0.4, Record: domain.MetadataRecord{Text: "chunk", Source: "a.txt"}},
	}}
	uc := NewQueryUseCase(embedder, index, &queryGeneratorFake{}, 5)

	resp, err := uc.AnswerBatch(context.Background(), []string{"good one", "bad question", "good two"})
	if err != nil {
		t.Fatalf("AnswerBatch() error = %v", err)
	}
	if resp.TotalQueries != 3 {
		t.Fatalf("total = %d, want 3", resp.TotalQueries)
	}
	if resp.Successful != 2 || resp.Failed != 1 {
		t.Fatalf("successful/failed = %d/%d, want 2/1", resp.Successful, resp.Failed)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(resp.Results))
	}
	// Each successful answer has one source at distance 0.4, similarity 0.8.
	if got := resp.AvgConfidence; got < 0.799 || got > 0.801 {
		t.Fatalf("avg confidence = %f, want 0.8", got)
	}
}
