package flat

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pldubois/ragdoc/internal/core/domain"
)

const (
	vectorsFile  = "vectors.bin"
	metadataFile = "metadata.json"
)

// vectors.bin layout: 4-byte magic, uint32 dim, uint32 count, then
// count*dim little-endian float32 values.
var blobMagic = [4]byte{'R', 'D', 'X', '1'}

// Save persists the current vectors and metadata. Idempotent.
func (idx *Index) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.persist()
}

// persist writes both artifacts through temp files and renames them into
// place, so a failure mid-write leaves the prior on-disk pair intact.
// Callers must hold the write lock.
func (idx *Index) persist() error {
	if err := os.MkdirAll(idx.dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	vecPath := filepath.Join(idx.dir, vectorsFile)
	metaPath := filepath.Join(idx.dir, metadataFile)

	vecTmp, err := idx.writeVectorsTemp()
	if err != nil {
		return err
	}
	metaTmp, err := idx.writeMetadataTemp()
	if err != nil {
		_ = os.Remove(vecTmp)
		return err
	}

	if err := os.Rename(vecTmp, vecPath); err != nil {
		_ = os.Remove(vecTmp)
		_ = os.Remove(metaTmp)
		return fmt.Errorf("rename vector blob: %w", err)
	}
	if err := os.Rename(metaTmp, metaPath); err != nil {
		_ = os.Remove(metaTmp)
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

func (idx *Index) writeVectorsTemp() (string, error) {
	f, err := os.CreateTemp(idx.dir, vectorsFile+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create vector temp: %w", err)
	}
	w := bufio.NewWriter(f)

	write := func() error {
		if _, err := w.Write(blobMagic[:]); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(idx.dim)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(idx.entries))); err != nil {
			return err
		}
		for _, e := range idx.entries {
			if err := binary.Write(w, binary.LittleEndian, e.vector); err != nil {
				return err
			}
		}
		return w.Flush()
	}

	if err := write(); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write vector blob: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close vector blob: %w", err)
	}
	return f.Name(), nil
}

func (idx *Index) writeMetadataTemp() (string, error) {
	records := make([]domain.MetadataRecord, 0, len(idx.entries))
	for _, e := range idx.entries {
		records = append(records, e.record)
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	f, err := os.CreateTemp(idx.dir, metadataFile+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create metadata temp: %w", err)
	}
	if _, err := f.Write(raw); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write metadata: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close metadata: %w", err)
	}
	return f.Name(), nil
}

func (idx *Index) load() error {
	vecPath := filepath.Join(idx.dir, vectorsFile)
	metaPath := filepath.Join(idx.dir, metadataFile)

	vecExists := fileExists(vecPath)
	metaExists := fileExists(metaPath)
	if !vecExists && !metaExists {
		return nil
	}
	if vecExists != metaExists {
		return domain.WrapError(domain.ErrIndexIntegrity, "load index",
			fmt.Errorf("persisted pair incomplete: vectors=%t metadata=%t", vecExists, metaExists))
	}

	dim, vectors, err := readVectorBlob(vecPath)
	if err != nil {
		return domain.WrapError(domain.ErrIndexIntegrity, "load index", err)
	}

	rawMeta, err := os.ReadFile(metaPath)
	if err != nil {
		return domain.WrapError(domain.ErrIndexIntegrity, "load index", err)
	}
	var records []domain.MetadataRecord
	if err := json.Unmarshal(rawMeta, &records); err != nil {
		return domain.WrapError(domain.ErrIndexIntegrity, "load index", fmt.Errorf("decode metadata: %w", err))
	}

	if len(records) != len(vectors) {
		return domain.WrapError(domain.ErrIndexIntegrity, "load index",
			fmt.Errorf("metadata/vector count mismatch: %d/%d", len(records), len(vectors)))
	}
	if idx.dim != 0 && dim != 0 && dim != idx.dim {
		return domain.WrapError(domain.ErrIndexIntegrity, "load index",
			fmt.Errorf("persisted dim %d differs from configured dim %d", dim, idx.dim))
	}

	idx.dim = dim
	idx.entries = make([]entry, len(vectors))
	for i := range vectors {
		idx.entries[i] = entry{vector: vectors[i], record: records[i]}
	}
	return nil
}

func readVectorBlob(path string) (int, [][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return 0, nil, fmt.Errorf("read blob header: %w", err)
	}
	if magic != blobMagic {
		return 0, nil, errors.New("unrecognized vector blob format")
	}

	var dim, count uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return 0, nil, fmt.Errorf("read blob dim: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return 0, nil, fmt.Errorf("read blob count: %w", err)
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return 0, nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return int(dim), vectors, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
