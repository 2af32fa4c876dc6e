package usecase

import (
	"strings"
	"testing"

	"github.com/pldubois/ragdoc/internal/core/domain"
)

func TestExtractiveAnswerPicksOverlappingSentences(t *testing.T) {
	sources := []domain.SourceChunk{
		{Chunk: "The invoice total is 4200 euro. Payment is due in thirty days. Weather was nice."},
	}

	answer := extractiveAnswer("what is the invoice total?", sources)
	if !strings.Contains(answer, "invoice total is 4200 euro") {
		t.Fatalf("answer = %q", answer)
	}
	if strings.Contains(answer, "Weather") {
		t.Fatalf("irrelevant sentence leaked into answer: %q", answer)
	}
}

func TestExtractiveAnswerFallsBackToFirstChunk(t *testing.T) {
	sources := []domain.SourceChunk{
		{Chunk: "Zebra xylophone quartz"},
		{Chunk: "Another chunk"},
	}

	answer := extractiveAnswer("completely unrelated words", sources)
	if answer != "Zebra xylophone quartz" {
		t.Fatalf("answer = %q, want first chunk snippet", answer)
	}
}

func TestExtractiveAnswerTruncatesLongFallback(t *testing.T) {
	long := strings.Repeat("a", 500)
	answer := extractiveAnswer("nomatch", []domain.SourceChunk{{Chunk: long}})
	if len(answer) != 300 {
		t.Fatalf("fallback length = %d, want 300", len(answer))
	}
}

func TestExtractiveAnswerNoSources(t *testing.T) {
	if got := extractiveAnswer("anything", nil); got != noAnswerMarker {
		t.Fatalf("answer = %q, want marker", got)
	}
}

func TestSplitRoughSentences(t *testing.T) {
	got := splitRoughSentences("One. Two! Three? Four")
	want := []string{"One.", "Two!", "Three?", "Four"}
	if len(got) != len(want) {
		t.Fatalf("sentences = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sentence %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTokenOverlap(t *testing.T) {
	q := toTokenSet("what is the total")
	full := tokenOverlap(q, toTokenSet("the total is what"))
	none := tokenOverlap(q, toTokenSet("unrelated words entirely"))
	if full != 1 {
		t.Fatalf("full overlap = %f, want 1", full)
	}
	if none != 0 {
		t.Fatalf("no overlap = %f, want 0", none)
	}

	partial := tokenOverlap(q, toTokenSet("the total"))
	if partial <= none || partial >= full {
		t.Fatalf("partial overlap = %f, expected between 0 and 1", partial)
	}
}
