package service

import (
	"context"
	"sync/atomic"
)

// SearchHolder serves queries from the current SearchService and lets a
// rebuilt one replace it without interrupting in-flight queries.
type SearchHolder struct {
	current atomic.Pointer[SearchService]
}

func NewSearchHolder(initial *SearchService) *SearchHolder {
	h := &SearchHolder{}
	h.current.Store(initial)
	return h
}

// Swap installs next. Queries already running keep the service they started with.
func (h *SearchHolder) Swap(next *SearchService) {
	h.current.Store(next)
}

// Current returns the service new queries are sent to.
func (h *SearchHolder) Current() *SearchService {
	return h.current.Load()
}

func (h *SearchHolder) Search(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	return h.Current().Search(ctx, input)
}

func (h *SearchHolder) Stats() IndexStats {
	return h.Current().Stats()
}
