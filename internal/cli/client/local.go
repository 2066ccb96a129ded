package client

import (
	"context"
	"fmt"

	"github.com/imtdakar/imtbot/internal/cli"
	"github.com/imtdakar/imtbot/internal/config"
	"github.com/imtdakar/imtbot/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// runtime is what a local command needs: the resolved config, the index
// store and, when configured, the embedder and database pool.
type runtime struct {
	cfg      *config.Config
	store    cli.IndexStore
	embedder service.EmbeddingClient
	pool     *pgxpool.Pool
	closers  []func()
}

// openRuntime loads the environment, applies cmd's flags and opens the index
// store. Call close when done.
func openRuntime(ctx context.Context, cmd *cobra.Command, withEmbedder bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cli.ApplyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg}
	if cfg.IndexBackend == "postgres" {
		pool, err := cli.OpenDatabase(ctx, cfg, true)
		if err != nil {
			return nil, err
		}
		rt.pool = pool
		rt.closers = append(rt.closers, pool.Close)
	}

	rt.store, err = cli.OpenIndexStore(cfg, rt.pool)
	if err != nil {
		rt.close()
		return nil, err
	}

	if withEmbedder {
		embedder, closer, err := cli.NewEmbedder(ctx, cfg)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.embedder = embedder
		rt.closers = append(rt.closers, closer)
	}
	return rt, nil
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// searchService loads the stored index and prepares it for queries.
func (rt *runtime) searchService(ctx context.Context) (*service.SearchService, error) {
	idx, err := rt.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load index (run 'imtbot index build' first): %w", err)
	}
	sc, err := cli.SearchConfig(rt.cfg)
	if err != nil {
		return nil, err
	}
	return service.NewSearchService(idx, rt.embedder, sc)
}
