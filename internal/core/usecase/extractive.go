package usecase

import (
	"sort"
	"strings"
	"unicode"

	"github.com/pldubois/ragdoc/internal/core/domain"
)

const noAnswerMarker = "No answer available."

// extractiveAnswer builds a best-effort answer out of the retrieved context
// by pulling the sentences with the highest keyword overlap against the
// question. Used when the generator is unavailable; never returns "".
func extractiveAnswer(question string, sources []domain.SourceChunk) string {
	queryTokens := toTokenSet(question)

	type scoredSentence struct {
		text  string
		score float64
	}
	var candidates []scoredSentence
	for _, src := range sources {
		for _, sentence := range splitRoughSentences(src.Chunk) {
			overlap := tokenOverlap(queryTokens, toTokenSet(sentence))
			if overlap > 0 {
				candidates = append(candidates, scoredSentence{text: sentence, score: overlap})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > 0 {
		picked := make([]string, 0, 2)
		for _, c := range candidates {
			picked = append(picked, c.text)
			if len(picked) == 2 {
				break
			}
		}
		return strings.Join(picked, " ")
	}

	if len(sources) > 0 {
		snippet := strings.TrimSpace(sources[0].Chunk)
		if len(snippet) > 300 {
			snippet = snippet[:300]
		}
		if snippet != "" {
			return snippet
		}
	}
	return noAnswerMarker
}

// splitRoughSentences cuts text on sentence-final punctuation followed by
// whitespace. Coarser than the ingestion segmenter on purpose.
func splitRoughSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if i+1 < len(text) && text[i+1] != ' ' && text[i+1] != '\n' && text[i+1] != '\t' {
			continue
		}
		if s := strings.TrimSpace(text[start : i+1]); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func tokenOverlap(query, chunk map[string]struct{}) float64 {
	if len(query) == 0 || len(chunk) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := chunk[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
