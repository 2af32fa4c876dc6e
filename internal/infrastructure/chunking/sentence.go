package chunking

import (
	"strings"
	"unicode"
)

// span is a piece of the normalized document with absolute byte offsets.
type span struct {
	text  string
	start int
	end   int
}

// SentenceSplitter cuts one paragraph into sentence spans. base is the
// paragraph's offset inside the normalized document, so returned offsets are
// absolute. The splitter is a replaceable strategy: the default relies on a
// punctuation-and-case heuristic, callers may plug in locale-aware ones.
type SentenceSplitter func(paragraph string, base int) []span

// splitSentences breaks after '.', '!' or '?' followed by whitespace and
// then an uppercase letter or digit. A paragraph without such a boundary is
// one sentence.
func splitSentences(paragraph string, base int) []span {
	var out []span
	sentStart := 0

	runes := []rune(paragraph)
	byteAt := make([]int, len(runes)+1)
	{
		off := 0
		for i, r := range runes {
			byteAt[i] = off
			off += len(string(r))
		}
		byteAt[len(runes)] = off
	}

	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		j := i + 1
		if j >= len(runes) || !unicode.IsSpace(runes[j]) {
			continue
		}
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j >= len(runes) {
			break
		}
		if !unicode.IsUpper(runes[j]) && !unicode.IsDigit(runes[j]) {
			continue
		}

		out = appendSpan(out, paragraph, base, sentStart, byteAt[i+1])
		sentStart = byteAt[j]
		i = j - 1
	}

	out = appendSpan(out, paragraph, base, sentStart, len(paragraph))
	if len(out) == 0 {
		trimmed := strings.TrimSpace(paragraph)
		if trimmed != "" {
			out = appendSpan(out, paragraph, base, 0, len(paragraph))
		}
	}
	return out
}

func appendSpan(spans []span, paragraph string, base, start, end int) []span {
	raw := paragraph[start:end]
	lead := len(raw) - len(strings.TrimLeft(raw, " \t\n"))
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return spans
	}
	absStart := base + start + lead
	return append(spans, span{
		text:  trimmed,
		start: absStart,
		end:   absStart + len(trimmed),
	})
}

// splitParagraphs splits the normalized text on blank lines, keeping
// absolute offsets of each trimmed paragraph.
func splitParagraphs(normalized string) []span {
	var out []span
	cursor := 0
	for _, block := range strings.Split(normalized, "\n\n") {
		trimmed := strings.TrimSpace(block)
		if trimmed == "" {
			cursor += len(block) + 2
			continue
		}
		start := strings.Index(normalized[cursor:], trimmed)
		if start < 0 {
			start = 0
		}
		start += cursor
		out = append(out, span{
			text:  trimmed,
			start: start,
			end:   start + len(trimmed),
		})
		cursor = start + len(trimmed)
	}
	return out
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
