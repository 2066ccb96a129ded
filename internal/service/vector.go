package service

import (
	"math"
	"sort"
)

// normalizeL2 returns a unit-length copy of v. Zero vectors are returned
// unchanged.
func normalizeL2(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// vectorHit is a position in a FlatIndex with its inner-product score.
type vectorHit struct {
	Pos   int
	Score float64
}

// FlatIndex is an exact inner-product index over unit vectors. With
// normalised inputs the score is the cosine similarity.
type FlatIndex struct {
	dims    int
	vectors [][]float32
}

func NewFlatIndex(dims int, vectors [][]float32) *FlatIndex {
	return &FlatIndex{dims: dims, vectors: vectors}
}

func (f *FlatIndex) Len() int {
	return len(f.vectors)
}

// Search scans every vector and returns the k best positions by descending
// score. Ties keep index order.
func (f *FlatIndex) Search(query []float32, k int) []vectorHit {
	if len(query) != f.dims || k <= 0 {
		return nil
	}
	hits := make([]vectorHit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = vectorHit{Pos: i, Score: dot(query, v)}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}
