package domain

import (
	"fmt"
	"math"
)

// IndexVersion is bumped whenever the on-disk artifact layout changes.
const IndexVersion = 1

// ChunkStrategy selects how documents are cut into chunks.
type ChunkStrategy string

const (
	ChunkStrategyParagraph ChunkStrategy = "paragraph"
	ChunkStrategyWindow    ChunkStrategy = "window"
)

// IsValidChunkStrategy reports whether s is a known chunk strategy.
func IsValidChunkStrategy(s ChunkStrategy) bool {
	switch s {
	case ChunkStrategyParagraph, ChunkStrategyWindow:
		return true
	}
	return false
}

// Index is the persisted artifact produced by a build. Vectors is either
// empty (lexical-only index) or parallel to Chunks.
type Index struct {
	Version    int           `json:"version"`
	Strategy   ChunkStrategy `json:"strategy"`
	Model      string        `json:"model,omitempty"`
	Dimensions int           `json:"dimensions,omitempty"`
	Chunks     []Chunk       `json:"chunks"`
	Vectors    [][]float32   `json:"vectors,omitempty"`
}

// HasVectors reports whether the index carries embeddings.
func (idx *Index) HasVectors() bool {
	return idx != nil && len(idx.Vectors) > 0
}

// Sources returns the distinct chunk sources in first-seen order.
func (idx *Index) Sources() []string {
	if idx == nil {
		return nil
	}
	seen := make(map[string]struct{})
	out := make([]string, 0, 8)
	for _, c := range idx.Chunks {
		if _, ok := seen[c.Source]; ok {
			continue
		}
		seen[c.Source] = struct{}{}
		out = append(out, c.Source)
	}
	return out
}

// ChunksBySource groups chunk positions by source.
func (idx *Index) ChunksBySource() map[string][]int {
	out := make(map[string][]int)
	if idx == nil {
		return out
	}
	for i, c := range idx.Chunks {
		out[c.Source] = append(out[c.Source], i)
	}
	return out
}

// ValidateIndex checks the structural invariants of an index artifact.
func ValidateIndex(idx *Index) error {
	if idx == nil {
		return NewDomainErrorWithCause(ErrCodeValidation, ErrInvalidIndex.Message, fmt.Errorf("index cannot be nil"))
	}
	invalid := func(format string, args ...any) error {
		return NewDomainErrorWithCause(ErrCodeValidation, ErrInvalidIndex.Message, fmt.Errorf(format, args...))
	}

	if idx.Version != IndexVersion {
		return invalid("unsupported version %d", idx.Version)
	}
	if !IsValidChunkStrategy(idx.Strategy) {
		return invalid("unknown chunk strategy %q", idx.Strategy)
	}
	for i := range idx.Chunks {
		if err := ValidateChunk(&idx.Chunks[i]); err != nil {
			return invalid("chunk %d: %v", i, err)
		}
	}

	if len(idx.Vectors) == 0 {
		return nil
	}
	if len(idx.Vectors) != len(idx.Chunks) {
		return invalid("%d vectors for %d chunks", len(idx.Vectors), len(idx.Chunks))
	}
	if idx.Dimensions <= 0 {
		return invalid("vectors present but dimensions is %d", idx.Dimensions)
	}
	if idx.Model == "" {
		return invalid("vectors present but model is empty")
	}
	for i, v := range idx.Vectors {
		if len(v) != idx.Dimensions {
			return invalid("vector %d has %d dimensions, expected %d", i, len(v), idx.Dimensions)
		}
		if !isUnitVector(v) {
			return invalid("vector %d is not normalized", i)
		}
	}
	return nil
}

func isUnitVector(v []float32) bool {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	// zero vectors are kept as-is by normalisation
	if sum == 0 {
		return true
	}
	return math.Abs(math.Sqrt(sum)-1) < 1e-3
}
