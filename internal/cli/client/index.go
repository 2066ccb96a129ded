package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/imtdakar/imtbot/internal/cli"
	"github.com/imtdakar/imtbot/internal/repository"
	"github.com/imtdakar/imtbot/internal/service"
	"github.com/spf13/cobra"
)

// IndexCmd groups the commands that build and distribute the index.
func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build, inspect and distribute the search index",
	}

	cmd.AddCommand(indexBuildCmd())
	cmd.AddCommand(indexStatsCmd())
	cmd.AddCommand(indexPushCmd())
	cmd.AddCommand(indexPullCmd())

	return cmd
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func indexBuildCmd() *cobra.Command {
	var (
		dataDir string
		noEmbed bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rebuild the index from the scraped text files",
		Long: `Chunks every .txt file of the data directory and, when an embedding
endpoint is configured, embeds the chunks. The previous index is replaced
only once the new one is complete.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			outputJSON, _ := cmd.Flags().GetBool("output")

			rt, err := openRuntime(ctx, cmd, !noEmbed)
			if err != nil {
				return err
			}
			defer rt.close()

			if dataDir == "" {
				dataDir = rt.cfg.DataDir
			}

			indexer := service.NewIndexService(cli.ChunkConfig(rt.cfg), rt.embedder)
			idx, err := indexer.Build(ctx, dataDir)
			if err != nil {
				return err
			}
			if err := rt.store.Save(ctx, idx); err != nil {
				return err
			}

			sc, err := cli.SearchConfig(rt.cfg)
			if err != nil {
				return err
			}
			svc, err := service.NewSearchService(idx, rt.embedder, sc)
			if err != nil {
				return err
			}
			return printStats(os.Stdout, svc.Stats(), outputJSON)
		},
	}

	cmd.Flags().StringVarP(&dataDir, "data", "d", "", "Directory of scraped .txt files (overrides IMTBOT_DATA_DIR)")
	cmd.Flags().BoolVar(&noEmbed, "no-embed", false, "Build a lexical-only index even if embeddings are configured")
	cli.AddIndexFlags(cmd)

	return cmd
}

func indexStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Describe the stored index",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			outputJSON, _ := cmd.Flags().GetBool("output")

			rt, err := openRuntime(ctx, cmd, true)
			if err != nil {
				return err
			}
			defer rt.close()

			svc, err := rt.searchService(ctx)
			if err != nil {
				return err
			}
			return printStats(os.Stdout, svc.Stats(), outputJSON)
		},
	}

	cli.AddIndexFlags(cmd)
	return cmd
}

func indexPushCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Upload the index to S3",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)

			rt, err := openRuntime(ctx, cmd, false)
			if err != nil {
				return err
			}
			defer rt.close()
			if key == "" {
				key = cli.IndexKey(rt.cfg)
			}

			s3Client, err := cli.NewS3Client(ctx, rt.cfg)
			if err != nil {
				return err
			}
			if err := s3Client.EnsureBucket(ctx); err != nil {
				return err
			}

			// The artifact is always the file form; export a database index first.
			path := rt.cfg.IndexPath
			if rt.cfg.IndexBackend == "postgres" {
				tmpDir, err := os.MkdirTemp("", "imtbot-push-*")
				if err != nil {
					return err
				}
				defer os.RemoveAll(tmpDir)

				idx, err := rt.store.Load(ctx)
				if err != nil {
					return err
				}
				path = filepath.Join(tmpDir, "index.json")
				if err := repository.NewFileIndexRepository(path).Save(ctx, idx); err != nil {
					return err
				}
			} else if _, err := rt.store.Load(ctx); err != nil {
				return err
			}

			n, err := s3Client.PushFile(ctx, path, key)
			if err != nil {
				return err
			}
			fmt.Printf("Pushed %d bytes to s3://%s/%s\n", n, s3Client.Bucket(), key)
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Object key (overrides IMTBOT_S3_INDEX_KEY)")
	cli.AddIndexFlags(cmd)
	return cmd
}

func indexPullCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Download the index from S3",
		Long: `Downloads the index artifact and checks it before installing it. With the
postgres backend the artifact is imported into the database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)

			rt, err := openRuntime(ctx, cmd, false)
			if err != nil {
				return err
			}
			defer rt.close()
			if key == "" {
				key = cli.IndexKey(rt.cfg)
			}

			s3Client, err := cli.NewS3Client(ctx, rt.cfg)
			if err != nil {
				return err
			}

			tmpDir, err := os.MkdirTemp("", "imtbot-pull-*")
			if err != nil {
				return err
			}
			defer os.RemoveAll(tmpDir)

			staged := repository.NewFileIndexRepository(filepath.Join(tmpDir, "index.json"))
			n, err := s3Client.PullFile(ctx, key, staged.Path())
			if err != nil {
				return err
			}
			idx, err := staged.Load(ctx)
			if err != nil {
				return fmt.Errorf("downloaded index is unusable: %w", err)
			}
			if err := rt.store.Save(ctx, idx); err != nil {
				return err
			}

			fmt.Printf("Pulled %d bytes from s3://%s/%s (%d chunks)\n", n, s3Client.Bucket(), key, len(idx.Chunks))
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Object key (overrides IMTBOT_S3_INDEX_KEY)")
	cli.AddIndexFlags(cmd)
	return cmd
}

func printStats(w io.Writer, stats service.IndexStats, outputJSON bool) error {
	if outputJSON {
		encoded, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(encoded))
		return nil
	}

	fmt.Fprintf(w, "Chunks:   %d (%s)\n", stats.Chunks, stats.ChunkStrategy)
	fmt.Fprintf(w, "Sources:  %d\n", len(stats.Sources))
	for _, s := range stats.Sources {
		fmt.Fprintf(w, "  - %s\n", s)
	}
	if stats.Model != "" {
		fmt.Fprintf(w, "Model:    %s (%d dims)\n", stats.Model, stats.Dimensions)
	}
	if stats.Semantic {
		fmt.Fprintln(w, "Semantic: available")
	} else {
		fmt.Fprintf(w, "Semantic: unavailable (%s)\n", stats.SemanticReason)
	}
	return nil
}
