package main

import (
	"fmt"
	"os"

	"github.com/imtdakar/imtbot/internal/cli"
	"github.com/imtdakar/imtbot/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "imtbot",
		Short: "IMT Dakar assistant - corpus, index and search tooling",
		Long: `imtbot scrapes the IMT Dakar website, builds the search index and answers
questions from it, locally or through a running imtbotd.

Environment variables (IMTBOT_ prefix, .env is read when present):
  IMTBOT_DATA_DIR         Scraped text files (default: data)
  IMTBOT_INDEX_PATH       Index file (default: index/index.json)
  IMTBOT_OPENAI_API_KEY   Enables semantic search
  IMTBOT_API_URL          imtbotd base URL for --remote (default: http://localhost:8080)
  IMTBOT_API_KEY          imtbotd API key for --remote`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for --remote (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL for --remote (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.ScrapeCmd())
	rootCmd.AddCommand(client.IndexCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.EvalCmd())
	rootCmd.AddCommand(client.RemoteCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
