// Package flat implements a brute-force vector index over squared Euclidean
// distance, persisted as a binary vector blob plus a JSON metadata array.
//
// Vectors and metadata live in one ordered collection of entries, so the
// pairing between a vector and its record is structural and cannot drift.
package flat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pldubois/ragdoc/internal/core/domain"
)

type entry struct {
	vector []float32
	record domain.MetadataRecord
}

// Index is a fixed-dimension append-only vector index. A zero dim is fixed
// by the first added batch. Writes are exclusive, searches share a read lock.
type Index struct {
	mu      sync.RWMutex
	dir     string
	dim     int
	entries []entry
}

// Open loads a previously persisted index from dir if present. A vector blob
// without a readable, count-matching metadata file is a fatal integrity
// error, never silently ignored.
func Open(dir string, dim int) (*Index, error) {
	idx := &Index{dir: dir, dim: dim}
	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

func (idx *Index) Dim() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dim
}

// Add appends vectors and their metadata records in lock-step and persists.
// The batch is validated up front: on any error the index is unchanged, in
// memory and on disk.
func (idx *Index) Add(_ context.Context, vectors [][]float32, records []domain.MetadataRecord) error {
	if len(vectors) != len(records) {
		return domain.WrapError(domain.ErrInvalidArgument, "index add",
			fmt.Errorf("vectors/records mismatch: %d/%d", len(vectors), len(records)))
	}
	if len(vectors) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	dim := idx.dim
	if dim == 0 {
		dim = len(vectors[0])
		if dim == 0 {
			return domain.WrapError(domain.ErrInvalidArgument, "index add", errors.New("empty vector"))
		}
	}
	for i, v := range vectors {
		if len(v) != dim {
			return domain.WrapError(domain.ErrDimensionMismatch, "index add",
				fmt.Errorf("vector %d has dim %d, index has dim %d", i, len(v), dim))
		}
	}

	prior := len(idx.entries)
	priorDim := idx.dim
	idx.dim = dim
	for i := range vectors {
		idx.entries = append(idx.entries, entry{vector: vectors[i], record: records[i]})
	}

	if err := idx.persist(); err != nil {
		idx.entries = idx.entries[:prior]
		idx.dim = priorDim
		return fmt.Errorf("persist index: %w", err)
	}
	return nil
}

// Search returns up to k nearest neighbors ordered by ascending squared
// Euclidean distance. Callers must tolerate fewer than k results.
func (idx *Index) Search(_ context.Context, vector []float32, k int) ([]domain.Neighbor, error) {
	if k < 1 {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "index search", fmt.Errorf("k must be >= 1, got %d", k))
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.entries) == 0 {
		return nil, nil
	}
	if len(vector) != idx.dim {
		return nil, domain.WrapError(domain.ErrDimensionMismatch, "index search",
			fmt.Errorf("query has dim %d, index has dim %d", len(vector), idx.dim))
	}

	ordinals := make([]int, len(idx.entries))
	distances := make([]float64, len(idx.entries))
	for i := range idx.entries {
		ordinals[i] = i
		distances[i] = squaredL2(idx.entries[i].vector, vector)
	}
	sort.SliceStable(ordinals, func(a, b int) bool {
		return distances[ordinals[a]] < distances[ordinals[b]]
	})

	if k > len(ordinals) {
		k = len(ordinals)
	}
	out := make([]domain.Neighbor, 0, k)
	for _, ord := range ordinals[:k] {
		out = append(out, domain.Neighbor{
			Distance: distances[ord],
			Ordinal:  ord,
			Record:   idx.entries[ord].record,
		})
	}
	return out, nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
