package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/imtdakar/imtbot/internal/domain"
	"github.com/imtdakar/imtbot/internal/service"
	"github.com/imtdakar/imtbot/internal/telemetry"
)

// IndexSource is an index repository that can tell cheaply whether the
// stored index changed.
type IndexSource interface {
	Load(ctx context.Context) (*domain.Index, error)
	Fingerprint(ctx context.Context) (string, error)
}

// SearchFactory turns a freshly loaded index into a ready SearchService.
type SearchFactory func(idx *domain.Index) (*service.SearchService, error)

// IndexReloader swaps in a new SearchService whenever the stored index
// changes. It implements JobProcessor so a Worker can poll it.
type IndexReloader struct {
	source  IndexSource
	holder  *service.SearchHolder
	factory SearchFactory

	mu   sync.Mutex
	last string
}

// NewIndexReloader creates an IndexReloader. loaded is the fingerprint of the
// index the holder currently serves.
func NewIndexReloader(source IndexSource, holder *service.SearchHolder, factory SearchFactory, loaded string) *IndexReloader {
	return &IndexReloader{
		source:  source,
		holder:  holder,
		factory: factory,
		last:    loaded,
	}
}

// ProcessJobs implements the JobProcessor interface. On any failure the
// current index keeps serving and the reload is retried on the next tick.
func (r *IndexReloader) ProcessJobs(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fp, err := r.source.Fingerprint(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrIndexNotBuilt) {
			return nil
		}
		return fmt.Errorf("failed to read index fingerprint: %w", err)
	}
	if fp == r.last {
		return nil
	}

	ctx, span := telemetry.StartTransaction(ctx, "IndexReloader.Reload", "index.reload")
	defer span.End()

	idx, err := r.source.Load(ctx)
	if err != nil {
		err = fmt.Errorf("failed to load changed index: %w", err)
		telemetry.CaptureError(ctx, err)
		return err
	}
	svc, err := r.factory(idx)
	if err != nil {
		err = fmt.Errorf("failed to prepare changed index: %w", err)
		telemetry.CaptureError(ctx, err)
		return err
	}

	r.holder.Swap(svc)
	r.last = fp
	telemetry.AddBreadcrumb(ctx, "index", "reloaded index "+fp)
	log.Printf("Index reloaded: %d chunks from %d sources", len(idx.Chunks), len(idx.Sources()))
	return nil
}
