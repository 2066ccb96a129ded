package main

import (
	"fmt"
	"os"

	"github.com/imtdakar/imtbot/internal/cli"
	"github.com/imtdakar/imtbot/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "imtbotd",
		Short: "IMT Dakar search daemon",
		Long:  "imtbotd serves the IMT Dakar search index over HTTP and manages its database",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.MigrateCmd())
	rootCmd.AddCommand(admin.SearchLogStatsCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
