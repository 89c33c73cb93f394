// Package vectorstore implements the durable, append-only nearest-neighbor
// store backing semantic document retrieval. Embedding vectors and chunk
// records live in parallel arrays that are persisted and loaded as a unit.
package vectorstore

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ErrIndexCorrupted means the vector array and record array disagree. The
// index must not serve retrieval in that state; callers treat it as fatal.
var ErrIndexCorrupted = errors.New("vector index corrupted")

// Record is the retrievable payload stored alongside each embedding.
type Record struct {
	Content     string    `json:"content"`
	SourceURL   string    `json:"source_url"`
	Title       string    `json:"title"`
	ChunkIndex  int       `json:"chunk_index"`
	TotalChunks int       `json:"total_chunks"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// Match is one search hit. Similarity is 1/(1+distance) over L2 distance,
// so identical vectors score 1.0 and the score stays within (0, 1].
type Match struct {
	Record     Record  `json:"record"`
	Similarity float64 `json:"similarity"`
}

// Index is safe for concurrent reads; appends take the write lock, so
// ingestion should run under a single-writer discipline.
type Index struct {
	mu        sync.RWMutex
	path      string
	dimension int
	vectors   [][]float32
	records   []Record
}

func New(path string, dimension int) *Index {
	return &Index{path: path, dimension: dimension}
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}

func (ix *Index) Dimension() int {
	return ix.dimension
}

// Add appends one embedding and its record at the same ordinal position.
// Entries are never mutated afterwards.
func (ix *Index) Add(vector []float32, record Record) error {
	if len(vector) != ix.dimension {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vector), ix.dimension)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if len(ix.vectors) != len(ix.records) {
		return fmt.Errorf("%w: %d vectors, %d records", ErrIndexCorrupted, len(ix.vectors), len(ix.records))
	}

	owned := make([]float32, len(vector))
	copy(owned, vector)
	ix.vectors = append(ix.vectors, owned)
	ix.records = append(ix.records, record)
	return nil
}

// Search returns up to k records ranked by similarity. An empty index yields
// an empty result, not an error.
func (ix *Index) Search(query []float32, k int) ([]Match, error) {
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), ix.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if len(ix.vectors) != len(ix.records) {
		return nil, fmt.Errorf("%w: %d vectors, %d records", ErrIndexCorrupted, len(ix.vectors), len(ix.records))
	}
	if len(ix.vectors) == 0 {
		return nil, nil
	}

	matches := make([]Match, len(ix.vectors))
	for i, vec := range ix.vectors {
		matches[i] = Match{
			Record:     ix.records[i],
			Similarity: 1.0 / (1.0 + l2Distance(query, vec)),
		}
	}
	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Similarity > matches[b].Similarity
	})
	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

type snapshot struct {
	Dimension int
	Vectors   [][]float32
	Records   []Record
}

// Persist writes the full store to disk as one snapshot. The file is written
// to a temp path and renamed so a crash mid-write never leaves a torn
// snapshot visible to a later Load.
func (ix *Index) Persist() error {
	ix.mu.RLock()
	snap := snapshot{
		Dimension: ix.dimension,
		Vectors:   ix.vectors,
		Records:   ix.records,
	}
	ix.mu.RUnlock()

	if len(snap.Vectors) != len(snap.Records) {
		return fmt.Errorf("%w: %d vectors, %d records", ErrIndexCorrupted, len(snap.Vectors), len(snap.Records))
	}

	if dir := filepath.Dir(ix.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create index directory failed: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(ix.path), filepath.Base(ix.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp index file failed: %w", err)
	}
	tmpName := tmp.Name()

	if err := gob.NewEncoder(tmp).Encode(snap); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encode index snapshot failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp index file failed: %w", err)
	}
	if err := os.Rename(tmpName, ix.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace index file failed: %w", err)
	}
	return nil
}

// Load replaces the in-memory store with the persisted snapshot. A missing
// file leaves the index empty. A count mismatch in the snapshot is
// ErrIndexCorrupted and must not be auto-repaired.
func (ix *Index) Load() error {
	f, err := os.Open(ix.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open index file failed: %w", err)
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return fmt.Errorf("decode index snapshot failed: %w", err)
	}
	if len(snap.Vectors) != len(snap.Records) {
		return fmt.Errorf("%w: snapshot has %d vectors, %d records", ErrIndexCorrupted, len(snap.Vectors), len(snap.Records))
	}
	if snap.Dimension != ix.dimension {
		return fmt.Errorf("index file dimension %d does not match configured dimension %d", snap.Dimension, ix.dimension)
	}

	ix.mu.Lock()
	ix.vectors = snap.Vectors
	ix.records = snap.Records
	ix.mu.Unlock()
	return nil
}

// Reset discards all entries and removes the persisted file. Used by the
// ingestion tool before a full rebuild; there is no per-entry deletion.
func (ix *Index) Reset() error {
	ix.mu.Lock()
	ix.vectors = nil
	ix.records = nil
	ix.mu.Unlock()

	if err := os.Remove(ix.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove index file failed: %w", err)
	}
	return nil
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
