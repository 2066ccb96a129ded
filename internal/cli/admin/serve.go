package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/imtdakar/imtbot/internal/api/handlers"
	"github.com/imtdakar/imtbot/internal/api/middleware"
	"github.com/imtdakar/imtbot/internal/cli"
	"github.com/imtdakar/imtbot/internal/config"
	"github.com/imtdakar/imtbot/internal/domain"
	"github.com/imtdakar/imtbot/internal/jobs"
	"github.com/imtdakar/imtbot/internal/repository"
	"github.com/imtdakar/imtbot/internal/server"
	"github.com/imtdakar/imtbot/internal/service"
	"github.com/imtdakar/imtbot/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the search API server",
		Long: `Loads the index and serves POST /search and GET /index.

The server refuses to start without a usable index. With --pull the index is
first downloaded from S3.`,
		RunE: runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides IMTBOT_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("pull", false, "Download the index from S3 before loading it")
	cmd.Flags().Duration("reload", 0, "Poll the index for changes at this interval (overrides IMTBOT_RELOAD_INTERVAL)")
	cli.AddIndexFlags(cmd)
	cli.AddRetrievalFlags(cmd)

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cli.ApplyFlags(cmd, cfg); err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	if cmd.Flags().Changed("reload") {
		cfg.ReloadInterval, _ = cmd.Flags().GetDuration("reload")
	}

	if cfg.HasSentry() {
		// 10% of traces in production, all of them elsewhere
		sampleRate := 1.0
		if cfg.Environment == "production" {
			sampleRate = 0.1
		}
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	var pool *pgxpool.Pool
	if cfg.HasDatabase() {
		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		pool, err = cli.OpenDatabase(ctx, cfg, !noMigrate)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
	}

	store, err := cli.OpenIndexStore(cfg, pool)
	if err != nil {
		return err
	}

	if pull, _ := cmd.Flags().GetBool("pull"); pull {
		if err := pullIndex(ctx, cfg, store); err != nil {
			return fmt.Errorf("failed to pull index: %w", err)
		}
	}

	embedder, closeEmbedder, err := cli.NewEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeEmbedder()

	searchCfg, err := cli.SearchConfig(cfg)
	if err != nil {
		return err
	}
	factory := func(idx *domain.Index) (*service.SearchService, error) {
		return service.NewSearchService(idx, embedder, searchCfg)
	}

	// Fingerprint before Load so a concurrent rebuild is picked up by the
	// first reload tick rather than missed.
	fingerprint, err := store.Fingerprint(ctx)
	if err != nil {
		return fmt.Errorf("index unavailable (run 'imtbot index build' or 'imtbot index pull'): %w", err)
	}
	idx, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("index unavailable (run 'imtbot index build' or 'imtbot index pull'): %w", err)
	}
	svc, err := factory(idx)
	if err != nil {
		return err
	}
	holder := service.NewSearchHolder(svc)

	stats := svc.Stats()
	log.Printf("index loaded: %d chunks from %d sources (semantic=%t)", stats.Chunks, len(stats.Sources), stats.Semantic)

	var searchLogs service.SearchLogRepository
	if pool != nil {
		searchLogs = repository.NewSearchLogRepository(pool)
	}

	routerCfg := server.RouterConfig{
		SearchHandler: handlers.NewSearchHandler(holder, searchLogs),
	}
	if len(cfg.APIKeys) > 0 {
		keys := middleware.NewStaticKeys(cfg.APIKeys)
		routerCfg.AuthValidator = keys
		log.Printf("api key auth enabled (%d keys)", keys.Len())
	}

	var reloadWorker *jobs.Worker
	if cfg.ReloadInterval > 0 {
		reloader := jobs.NewIndexReloader(store, holder, factory, fingerprint)
		reloadWorker = jobs.NewWorker("reloader", reloader, cfg.ReloadInterval)
		go reloadWorker.Start(ctx)
		log.Printf("index reloader started (every %s)", cfg.ReloadInterval)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if reloadWorker != nil {
		reloadWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// pullIndex installs the S3 artifact into store. The download is checked
// before it replaces anything.
func pullIndex(ctx context.Context, cfg *config.Config, store cli.IndexStore) error {
	s3Client, err := cli.NewS3Client(ctx, cfg)
	if err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "imtbotd-pull-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	staged := repository.NewFileIndexRepository(filepath.Join(tmpDir, "index.json"))
	key := cli.IndexKey(cfg)
	n, err := s3Client.PullFile(ctx, key, staged.Path())
	if err != nil {
		return err
	}
	idx, err := staged.Load(ctx)
	if err != nil {
		return err
	}
	if err := store.Save(ctx, idx); err != nil {
		return err
	}
	log.Printf("pulled index from s3://%s/%s (%d bytes)", s3Client.Bucket(), key, n)
	return nil
}
