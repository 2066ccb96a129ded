package client

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/imtdakar/imtbot/internal/config"
	"github.com/imtdakar/imtbot/internal/scraper"
	"github.com/spf13/cobra"
)

// ScrapeCmd creates the scrape command.
func ScrapeCmd() *cobra.Command {
	var (
		outDir  string
		baseURL string
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Fetch the IMT Dakar pages into the data directory",
		Long: `Downloads the institutional pages and writes one cleaned .txt file per page.
A page that cannot be fetched is reported and skipped. Run 'imtbot index build'
afterwards to refresh the index.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = cfg.DataDir
			}
			if baseURL == "" {
				baseURL = cfg.ScrapeBaseURL
			}

			s := scraper.New(scraper.Config{
				BaseURL:           baseURL,
				Timeout:           cfg.ScrapeTimeout,
				RequestsPerSecond: cfg.ScrapeRPS,
			})
			res, err := s.Scrape(cmdContext(cmd), outDir)
			if err != nil {
				return err
			}
			return printScrape(res, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (overrides IMTBOT_DATA_DIR)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Site root (overrides IMTBOT_SCRAPE_BASE_URL)")

	return cmd
}

type scrapeOutput struct {
	Written []string          `json:"written"`
	Empty   []string          `json:"empty,omitempty"`
	Failed  map[string]string `json:"failed,omitempty"`
}

func printScrape(res *scraper.Result, outputJSON bool) error {
	failed := make([]string, 0, len(res.Failed))
	for name := range res.Failed {
		failed = append(failed, name)
	}
	sort.Strings(failed)

	if outputJSON {
		out := scrapeOutput{Written: res.Written, Empty: res.Empty, Failed: map[string]string{}}
		for _, name := range failed {
			out.Failed[name] = res.Failed[name].Error()
		}
		encoded, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	}

	fmt.Printf("Wrote %d files\n", len(res.Written))
	for _, f := range res.Written {
		fmt.Printf("  %s\n", f)
	}
	for _, name := range res.Empty {
		fmt.Printf("No content: %s\n", name)
	}
	for _, name := range failed {
		fmt.Fprintf(os.Stderr, "Failed: %s: %v\n", name, res.Failed[name])
	}
	return nil
}
