package chunking

import (
	"errors"
	"strings"

	"github.com/pldubois/ragdoc/internal/core/domain"
)

const (
	DefaultChunkSize    = 500
	DefaultOverlap      = 100
	DefaultMinChunkSize = 40
)

// Config controls how text is segmented. ChunkSize and Overlap are measured
// in the unit of Measure (runes by default).
type Config struct {
	ChunkSize    int
	Overlap      int
	MinChunkSize int
	Measure      Measure
	Sentences    SentenceSplitter
}

// Segmenter splits raw text into sentence-aligned, measure-bounded chunks
// with overlap carried over between consecutive chunks.
type Segmenter struct {
	chunkSize    int
	overlap      int
	minChunkSize int
	measure      Measure
	sentences    SentenceSplitter
}

func New(cfg Config) (*Segmenter, error) {
	if cfg.ChunkSize <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "new segmenter", errors.New("chunk size must be positive"))
	}
	if cfg.Overlap < 0 {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "new segmenter", errors.New("overlap must be non-negative"))
	}
	if cfg.Overlap >= cfg.ChunkSize {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "new segmenter", errors.New("overlap must be smaller than chunk size"))
	}
	if cfg.MinChunkSize < 0 {
		cfg.MinChunkSize = 0
	}
	if cfg.Measure == nil {
		cfg.Measure = MeasureRunes
	}
	if cfg.Sentences == nil {
		cfg.Sentences = splitSentences
	}
	return &Segmenter{
		chunkSize:    cfg.ChunkSize,
		overlap:      cfg.Overlap,
		minChunkSize: cfg.MinChunkSize,
		measure:      cfg.Measure,
		sentences:    cfg.Sentences,
	}, nil
}

// Segment chunks text. Offsets in the returned chunks index the document
// after newline normalization; chunk text is the trimmed verbatim slice
// [start:end] of that document, never a re-join of sentence fragments.
func (s *Segmenter) Segment(text, source string) ([]domain.Chunk, error) {
	normalized := normalizeNewlines(text)
	if strings.TrimSpace(normalized) == "" {
		return nil, nil
	}

	var segments []measuredSpan
	for _, paragraph := range splitParagraphs(normalized) {
		for _, sentence := range s.sentences(paragraph.text, paragraph.start) {
			size := s.measure(sentence.text)
			if size == 0 {
				continue
			}
			if size > s.chunkSize {
				segments = append(segments, s.splitOversized(sentence)...)
				continue
			}
			segments = append(segments, measuredSpan{span: sentence, size: size})
		}
	}

	var (
		chunks  []domain.Chunk
		current []measuredSpan
		total   int
	)
	for _, seg := range segments {
		if total+seg.size > s.chunkSize && len(current) > 0 {
			if chunk, ok := s.finalize(normalized, source, current, total); ok {
				chunks = append(chunks, chunk)
			}
			current, total = s.carryOverlap(current)
			// The carried seed plus the incoming sentence must still fit the
			// chunk budget; oldest carried sentences yield first.
			for len(current) > 0 && total+seg.size > s.chunkSize {
				total -= current[0].size
				current = current[1:]
			}
		}
		current = append(current, seg)
		total += seg.size
	}
	if len(current) > 0 {
		if chunk, ok := s.finalize(normalized, source, current, total); ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

type measuredSpan struct {
	span
	size int
}

// splitOversized windows a too-long sentence on whitespace word boundaries
// into sub-segments each within the chunk size.
func (s *Segmenter) splitOversized(sentence span) []measuredSpan {
	var out []measuredSpan
	text := sentence.text

	wordStart := -1
	partStart := -1
	partEnd := -1
	partSize := 0

	flush := func() {
		if partStart < 0 || partEnd <= partStart {
			return
		}
		part := text[partStart:partEnd]
		out = append(out, measuredSpan{
			span: span{
				text:  part,
				start: sentence.start + partStart,
				end:   sentence.start + partEnd,
			},
			size: partSize,
		})
		partStart, partEnd, partSize = -1, -1, 0
	}

	emitWord := func(start, end int) {
		word := text[start:end]
		size := s.measure(word)
		if size == 0 {
			return
		}
		// Close the running window when the next word would overflow it.
		if partStart >= 0 && partSize+size > s.chunkSize {
			flush()
		}
		if partStart < 0 {
			partStart = start
		}
		partEnd = end
		partSize += size
	}

	for i := 0; i <= len(text); i++ {
		atBoundary := i == len(text) || text[i] == ' ' || text[i] == '\t' || text[i] == '\n'
		if atBoundary {
			if wordStart >= 0 {
				emitWord(wordStart, i)
				wordStart = -1
			}
			continue
		}
		if wordStart < 0 {
			wordStart = i
		}
	}
	flush()
	return out
}

func (s *Segmenter) finalize(normalized, source string, segs []measuredSpan, total int) (domain.Chunk, bool) {
	start := segs[0].start
	end := segs[len(segs)-1].end
	raw := normalized[start:end]
	lead := len(raw) - len(strings.TrimLeft(raw, " \t\n"))
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || total < s.minChunkSize {
		return domain.Chunk{}, false
	}
	return domain.Chunk{
		Text:   trimmed,
		Start:  start + lead,
		End:    start + lead + len(trimmed),
		Tokens: total,
		Source: source,
	}, true
}

// carryOverlap keeps the trailing sentences of the closed chunk whose
// combined size stays within the overlap budget, preserving document order.
// A sentence that would push the carry past the budget is not taken.
func (s *Segmenter) carryOverlap(segs []measuredSpan) ([]measuredSpan, int) {
	if s.overlap == 0 || len(segs) == 0 {
		return nil, 0
	}
	carried := 0
	kept := 0
	for i := len(segs) - 1; i >= 0; i-- {
		if carried+segs[i].size > s.overlap {
			break
		}
		carried += segs[i].size
		kept++
	}
	tail := make([]measuredSpan, kept)
	copy(tail, segs[len(segs)-kept:])
	return tail, carried
}
